package usecase

import (
	"context"
	"encoding/json"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	applogger "EconDash/pkg/logger"
)

// RefreshCommand is the optional payload of a refresh message.
type RefreshCommand struct {
	Reason string `json:"reason"`
}

// Builder rebuilds the table.
type Builder interface {
	Build(ctx context.Context) (*models.TableSnapshot, error)
}

// RefreshHandler rebuilds the table for every message on the refresh topic.
type RefreshHandler struct {
	topic   string
	builder Builder
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewRefreshHandler(topic string, builder Builder, metrics domrepo.Metrics, l *applogger.Logger) *RefreshHandler {
	return &RefreshHandler{topic: topic, builder: builder, metrics: metrics, l: l}
}

func (h *RefreshHandler) Topic() string { return h.topic }

// Handle accepts any payload; a JSON body may carry a reason for the logs.
func (h *RefreshHandler) Handle(ctx context.Context, b []byte) error {
	var cmd RefreshCommand
	if len(b) > 0 {
		if err := json.Unmarshal(b, &cmd); err != nil {
			cmd.Reason = "unstructured"
		}
	}
	h.l.Info("refresh requested", applogger.String("topic", h.topic), applogger.String("reason", cmd.Reason))

	snap, err := h.builder.Build(ctx)
	if err != nil {
		h.metrics.RecordError("refresh_command")
		return err
	}
	h.l.Debug("refresh completed", applogger.Uint64("version", snap.Version))
	return nil
}
