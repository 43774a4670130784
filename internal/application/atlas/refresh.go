package atlas

import (
	"context"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
)

// EventMetrics observes consumed change events.
type EventMetrics interface {
	ListingEvent(eventType string, err error)
}

// Republisher regenerates sprites after a bulk reload.
type Republisher interface {
	Publish(ctx context.Context) (*Manifest, error)
}

// RefreshHandler keeps the read model current from listing change events.
type RefreshHandler struct {
	svc       Service
	publisher Republisher
	metrics   EventMetrics
	logger    logging.Logger
}

// NewRefreshHandler builds a handler.  publisher and metrics may be nil.
func NewRefreshHandler(svc Service, publisher Republisher, metrics EventMetrics, logger logging.Logger) *RefreshHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RefreshHandler{svc: svc, publisher: publisher, metrics: metrics, logger: logger.Named("refresh")}
}

// Handle is a kafka.MessageHandler.  Undecodable events are returned as
// errors so the consumer dead-letters them.
func (h *RefreshHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	ev, err := kafka.DecodeChangeEvent(msg)
	if err != nil {
		h.observe("invalid", err)
		return err
	}
	err = h.Apply(ctx, ev)
	h.observe(string(ev.Type), err)
	return err
}

// Apply invalidates caches for ev and republishes sprites on bulk reloads.
func (h *RefreshHandler) Apply(ctx context.Context, ev property.ChangeEvent) error {
	if err := h.svc.Invalidate(ctx); err != nil {
		return err
	}
	h.logger.Info("listing change applied",
		logging.String("event_id", ev.ID),
		logging.String("type", string(ev.Type)),
		logging.String("city", ev.City),
		logging.String("property_id", ev.PropertyID))

	if ev.Type != property.ChangeBulkReload || h.publisher == nil {
		return nil
	}
	manifest, err := h.publisher.Publish(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("sprites republished after bulk reload", logging.Int("icons", len(manifest.Icons)))
	return nil
}

// MessageHandler adapts Handle for kafka.Consumer.Subscribe.
func (h *RefreshHandler) MessageHandler() kafka.MessageHandler {
	return h.Handle
}

func (h *RefreshHandler) observe(eventType string, err error) {
	if h.metrics != nil {
		h.metrics.ListingEvent(eventType, err)
	}
}

//Personal.AI order the ending
