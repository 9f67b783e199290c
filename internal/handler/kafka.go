package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"shiptrack/internal/config"
	"shiptrack/internal/entities"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
)

// TrackingEvent is a carrier status update for one shipment.
type TrackingEvent struct {
	Tracking string `json:"tracking" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=PREPARING IN_TRANSIT DELIVERED"`
}

type StatusUpdater interface {
	UpdateShipmentStatusByTracking(ctx context.Context, tracking string, status entities.ShipmentStatus) error
}

type kafkaHandler struct {
	dlq      *kafka.Writer
	reader   *kafka.Reader
	logger   *slog.Logger
	validate *validator.Validate
	updater  StatusUpdater
}

func NewKafkaHandler(logger *slog.Logger, cfg config.Kafka, updater StatusUpdater) *kafkaHandler {
	return &kafkaHandler{
		logger: logger.With(slog.String("handler", "kafka")),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.Topic,
			MaxWait: cfg.ReaderMaxWait,
		}),
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		validate: validator.New(),
		updater:  updater,
	}
}

func (h *kafkaHandler) Consume(ctx context.Context) {
	for {
		m, err := h.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			h.logger.Error("failed to fetch message", slog.Any("error", err))
			continue
		}

		// Transient store errors are retried inside the service.
		if err := h.handleTrackingEvent(ctx, m); err != nil {
			h.logger.Error("failed to handle tracking event", slog.Any("error", err))
			eventsFailed.Inc()

			if err := h.writeToDLQ(ctx, m); err != nil {
				h.logger.Error("failed to write message to DLQ", slog.Any("error", err))
				continue
			}
		} else {
			eventsProcessed.Inc()
		}

		if err := h.reader.CommitMessages(ctx, m); err != nil {
			h.logger.Error("failed to commit message", slog.Any("error", err))
		}
	}
}

func (h *kafkaHandler) handleTrackingEvent(ctx context.Context, m kafka.Message) error {
	var event TrackingEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal tracking event: %w", err)
	}

	if err := h.validate.Struct(event); err != nil {
		return fmt.Errorf("invalid tracking event: %w", err)
	}

	return h.updater.UpdateShipmentStatusByTracking(ctx, event.Tracking, entities.ShipmentStatus(event.Status))
}

func (h *kafkaHandler) writeToDLQ(ctx context.Context, m kafka.Message) error {
	m.Topic = fmt.Sprintf("%s-dlq", m.Topic)
	return h.dlq.WriteMessages(ctx, m)
}

func (h *kafkaHandler) Close() error {
	if err := h.reader.Close(); err != nil {
		return err
	}
	return h.dlq.Close()
}
