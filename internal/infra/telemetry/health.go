package telemetry

import (
	"sort"
	"sync"
	"time"
)

// HealthReport is the /healthz payload.
type HealthReport struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth is the last reported state of one component.
type ComponentHealth struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HealthTracker aggregates component health reported by long-running loops.
type HealthTracker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	now        func() time.Time
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		components: make(map[string]ComponentHealth),
		now:        time.Now,
	}
}

// Set records the state of a component; a nil err marks it healthy.
func (h *HealthTracker) Set(component string, err error) {
	if h == nil {
		return
	}
	state := ComponentHealth{Status: "ok", UpdatedAt: h.now()}
	if err != nil {
		state.Status = "error"
		state.Error = err.Error()
	}
	h.mu.Lock()
	h.components[component] = state
	h.mu.Unlock()
}

// Report returns "ok" only when every component is healthy.
func (h *HealthTracker) Report() HealthReport {
	report := HealthReport{Status: "ok"}
	if h == nil {
		return report
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.components) == 0 {
		return report
	}
	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)
	report.Components = make(map[string]ComponentHealth, len(names))
	for _, name := range names {
		state := h.components[name]
		report.Components[name] = state
		if state.Status != "ok" {
			report.Status = "degraded"
		}
	}
	return report
}
