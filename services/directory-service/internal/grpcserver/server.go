//go:build protogen

package grpcserver

import (
	"context"
	"log/slog"

	"github.com/sajid-hossain/apptsched/libs/db"
	"github.com/sajid-hossain/apptsched/libs/grpcx"
	directoryv1 "github.com/sajid-hossain/apptsched/protos/gen/directory/v1"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type server struct {
	directoryv1.UnimplementedDirectoryServiceServer
	pool   *db.Pool
	repo   *storage.Repository
	logger *slog.Logger
}

func Register(grpcServer *grpc.Server, pool *db.Pool, repo *storage.Repository, logger *slog.Logger) {
	directoryv1.RegisterDirectoryServiceServer(grpcServer, &server{pool: pool, repo: repo, logger: logger})
}

func (s *server) GetService(ctx context.Context, req *directoryv1.GetServiceRequest) (*directoryv1.GetServiceResponse, error) {
	if req.GetOwnerId() == "" || req.GetServiceId() == "" {
		return nil, status.Error(codes.InvalidArgument, "owner_id and service_id required")
	}
	svc, err := s.repo.GetService(ctx, req.GetOwnerId(), req.GetServiceId())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "service not found")
		}
		s.logger.Error("service lookup failed", "request_id", grpcx.RequestIDFromContext(ctx), "err", err)
		return nil, status.Error(codes.Internal, "service lookup failed")
	}
	return &directoryv1.GetServiceResponse{
		Service: &directoryv1.Service{
			Id:              svc.ID,
			OwnerId:         svc.OwnerID,
			Name:            svc.Name,
			DurationMinutes: int32(svc.DurationMinutes),
			StaffType:       svc.StaffType,
			CreatedAt:       timestamppb.New(svc.CreatedAt),
		},
	}, nil
}

func (s *server) ListStaff(ctx context.Context, req *directoryv1.ListStaffRequest) (*directoryv1.ListStaffResponse, error) {
	if req.GetOwnerId() == "" {
		return nil, status.Error(codes.InvalidArgument, "owner_id required")
	}
	staff, err := s.repo.ListStaff(ctx, req.GetOwnerId(), int(req.GetLimit()))
	if err != nil {
		s.logger.Error("staff lookup failed", "request_id", grpcx.RequestIDFromContext(ctx), "err", err)
		return nil, status.Error(codes.Internal, "staff lookup failed")
	}
	resp := &directoryv1.ListStaffResponse{}
	for _, m := range staff {
		resp.Staff = append(resp.Staff, &directoryv1.Staff{
			Id:                 m.ID,
			OwnerId:            m.OwnerID,
			Name:               m.Name,
			ServiceType:        m.ServiceType,
			DailyCapacity:      int32(m.DailyCapacity),
			AvailabilityStatus: m.AvailabilityStatus,
			CreatedAt:          timestamppb.New(m.CreatedAt),
		})
	}
	return resp, nil
}
