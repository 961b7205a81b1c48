// Package health aggregates component checks for textexpanderd and serves
// them over HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status is the health of a component or of the whole daemon.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   Status        `json:"status"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Check returns nil when the component is healthy.
type Check func(ctx context.Context) error

type component struct {
	name     string
	critical bool
	check    Check
}

// Checker runs registered checks.
type Checker struct {
	mu         sync.RWMutex
	components []component
	started    time.Time
	ready      bool
	timeout    time.Duration
	version    string
}

// NewChecker creates a Checker.
func NewChecker(version string) *Checker {
	return &Checker{started: time.Now(), timeout: 2 * time.Second, version: version}
}

// Register adds a check. A failing critical check makes the daemon
// unhealthy; any other failure degrades it.
func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component{name: name, critical: critical, check: check})
}

// SetReady marks the daemon as accepting key events.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// IsReady reports the readiness flag.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Response is the JSON body of the health endpoint.
type Response struct {
	Status     Status                 `json:"status"`
	Ready      bool                   `json:"ready"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime"`
	Components map[string]CheckResult `json:"components,omitempty"`
}

// Run executes every check and aggregates the result.
func (c *Checker) Run(ctx context.Context) Response {
	c.mu.RLock()
	comps := append([]component(nil), c.components...)
	ready := c.ready
	c.mu.RUnlock()

	sort.Slice(comps, func(i, j int) bool { return comps[i].name < comps[j].name })

	resp := Response{
		Status:     StatusHealthy,
		Ready:      ready,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Components: make(map[string]CheckResult, len(comps)),
	}
	for _, comp := range comps {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		err := comp.check(cctx)
		cancel()

		res := CheckResult{Status: StatusHealthy, Critical: comp.critical, Duration: time.Since(start)}
		if err != nil {
			res.Error = err.Error()
			res.Status = StatusDegraded
			if comp.critical {
				res.Status = StatusUnhealthy
			}
		}
		resp.Components[comp.name] = res
		resp.Status = worse(resp.Status, res.Status)
	}
	return resp
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// HealthHandler serves Run as JSON; unhealthy answers 503.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})
}

// ReadinessHandler answers 200 once SetReady(true) was called.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})
}
