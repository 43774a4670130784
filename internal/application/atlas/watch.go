package atlas

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
)

// DefaultWatchInterval is how often VersionWatcher polls the repository.
const DefaultWatchInterval = 30 * time.Second

// VersionWatcher polls the listing version and hands the fresh CityData to
// onChange whenever it moves.  The first poll only records the version.
type VersionWatcher struct {
	svc      Service
	interval time.Duration
	onChange func(ctx context.Context, data plotmap.CityData)
	logger   logging.Logger

	mu   sync.Mutex
	last string
}

func NewVersionWatcher(svc Service, interval time.Duration, onChange func(context.Context, plotmap.CityData), logger logging.Logger) *VersionWatcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &VersionWatcher{svc: svc, interval: interval, onChange: onChange, logger: logger.Named("watch")}
}

// Poll checks the version once and reports whether onChange ran.
func (w *VersionWatcher) Poll(ctx context.Context) (bool, error) {
	version, err := w.svc.Version(ctx)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	prev := w.last
	w.last = version
	w.mu.Unlock()
	if prev == "" || prev == version {
		return false, nil
	}

	data, err := w.svc.CityData(ctx)
	if err != nil {
		return false, err
	}
	w.logger.Info("listing version changed",
		logging.String("from", prev),
		logging.String("to", version),
		logging.Int("plots", data.Len()),
	)
	if w.onChange != nil {
		w.onChange(ctx, data)
	}
	return true, nil
}

// Run polls until ctx is done.  Poll errors are logged and retried on the
// next tick.
func (w *VersionWatcher) Run(ctx context.Context) {
	if _, err := w.Poll(ctx); err != nil {
		w.logger.Warn("listing version poll failed", logging.Err(err))
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				w.logger.Warn("listing version poll failed", logging.Err(err))
			}
		}
	}
}

//Personal.AI order the ending
