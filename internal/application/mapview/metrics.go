package mapview

import "time"

// Metrics receives controller observations.  The prometheus collector in
// internal/infrastructure/monitoring/prometheus implements it.
type Metrics interface {
	StateTransition(from, to string)
	PopupOpened()
	DeferredUpdate()
	IconsLoaded(count int, elapsed time.Duration, err error)
	SessionsActive(n int)
}

type nopMetrics struct{}

func (nopMetrics) StateTransition(string, string)        {}
func (nopMetrics) PopupOpened()                          {}
func (nopMetrics) DeferredUpdate()                       {}
func (nopMetrics) IconsLoaded(int, time.Duration, error) {}
func (nopMetrics) SessionsActive(int)                    {}

// NopMetrics discards everything.
func NopMetrics() Metrics { return nopMetrics{} }

//Personal.AI order the ending
