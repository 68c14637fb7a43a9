//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/sajid-hossain/apptsched/libs/db"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *db.Pool, _ *storage.Repository) error {
	return nil
}
