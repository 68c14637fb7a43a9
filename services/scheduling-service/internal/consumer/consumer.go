// Package consumer reacts to directory events. When a staff member is
// updated to AVAILABLE the waiting queue is drained onto them: eligible
// waiting appointments are assigned one at a time until no eligible
// entry remains.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sajid-hossain/apptsched/libs/kafkax"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/appointments"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TopicStaffUpdated is emitted by directory-service whenever a staff
// record changes.
const TopicStaffUpdated = "directory.staff.updated.v1"

type staffUpdatedEvent struct {
	OwnerID            string `json:"owner_id"`
	StaffID            string `json:"staff_id"`
	AvailabilityStatus string `json:"availability_status"`
}

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	inbox  *inbox.Repository
	svc    *appointments.Service
}

type Config struct {
	Brokers string
	GroupID string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, svc *appointments.Service, cfg Config) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    TopicStaffUpdated,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, logger: logger, inbox: inboxRepo, svc: svc}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID)
			span.End()
			continue
		}

		if err := c.handle(ctxSpan, msg); err != nil {
			c.logger.Error("staff update handling failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
		}
		span.End()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var evt staffUpdatedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return err
	}
	if evt.AvailabilityStatus != "AVAILABLE" || evt.OwnerID == "" || evt.StaffID == "" {
		return nil
	}

	// Assign until no eligible waiting appointment remains. Conflicts
	// terminate the drain; anything else is a real failure.
	for {
		res, err := c.svc.AssignFromQueue(ctx, evt.OwnerID, evt.StaffID)
		if err != nil {
			if appointments.KindOf(err) != 0 {
				return nil
			}
			return err
		}
		c.logger.Info("assigned from queue",
			"appointment_id", res.Appointment.ID,
			"staff_id", evt.StaffID,
		)
	}
}
