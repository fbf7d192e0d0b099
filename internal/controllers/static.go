package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rahul4469/ct-referral-assistant/internal/services"
)

// HealthCheck is one dependency probed by /healthz. A failing critical
// check turns the response into 503.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthController reports process and dependency health for monitoring.
type HealthController struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthController(checks ...HealthCheck) *HealthController {
	return &HealthController{
		checks:  checks,
		timeout: 3 * time.Second,
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns the health status as JSON.
func (c *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(c.checks) > 0 {
		resp.Checks = make(map[string]string, len(c.checks))
	}

	for _, hc := range c.checks {
		if err := hc.Check(ctx); err != nil {
			resp.Checks[hc.Name] = "error: " + err.Error()
			if hc.Critical {
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
			} else if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[hc.Name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// PlatformStatus is the sidebar connection line.
type PlatformStatus struct {
	Backend   string
	Connected bool
	Detail    string
}

// PlatformStatusChecker pings the inference platform and caches the answer
// so page loads do not each wait on the remote API.
type PlatformStatusChecker struct {
	backend string
	pinger  services.Pinger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu         sync.Mutex
	checked    time.Time
	last       PlatformStatus
	refreshing bool
}

func NewPlatformStatusChecker(backend string, pinger services.Pinger, ttl time.Duration) *PlatformStatusChecker {
	return &PlatformStatusChecker{
		backend: backend,
		pinger:  pinger,
		ttl:     ttl,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

// Status returns the cached status, refreshing it when older than the ttl.
// The ping runs without the lock held; callers arriving while a refresh is
// in flight get the previous answer.
func (s *PlatformStatusChecker) Status(ctx context.Context) PlatformStatus {
	if s == nil || s.pinger == nil {
		return PlatformStatus{Backend: "unknown"}
	}

	s.mu.Lock()
	fresh := !s.checked.IsZero() && s.now().Sub(s.checked) < s.ttl
	if fresh || s.refreshing {
		last := s.last
		if s.checked.IsZero() {
			last = PlatformStatus{Backend: s.backend, Detail: "status check in progress"}
		}
		s.mu.Unlock()
		return last
	}
	s.refreshing = true
	s.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status := PlatformStatus{Backend: s.backend, Connected: true}
	if err := s.pinger.Ping(pingCtx); err != nil {
		status.Connected = false
		status.Detail = err.Error()
	}

	s.mu.Lock()
	s.last = status
	s.checked = s.now()
	s.refreshing = false
	s.mu.Unlock()
	return status
}
