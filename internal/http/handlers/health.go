package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks    map[string]Pinger
	startTime time.Time
	version   string
}

func NewHealthHandler(checks map[string]Pinger, version string) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		version:   version,
	}
}

type CheckResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version,omitempty"`
	Uptime        string                 `json:"uptime,omitempty"`
	Timestamp     string                 `json:"timestamp"`
	MemoryAllocMB string                 `json:"memory_alloc_mb,omitempty"`
	Checks        map[string]CheckResult `json:"checks,omitempty"`
}

// probe pings every dependency concurrently and reports each one
func (h *HealthHandler) probe(ctx context.Context) (map[string]CheckResult, bool) {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(h.checks))
		healthy = true
	)

	g, gctx := errgroup.WithContext(ctx)
	for name, p := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := p.Ping(gctx)
			res := CheckResult{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "unhealthy"
				res.Error = err.Error()
			}

			mu.Lock()
			results[name] = res
			if err != nil {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, healthy
}

// Liveness answers as long as the process serves requests
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports every store dependency; 503 when any is down
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results, healthy := h.probe(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		MemoryAllocMB: strconv.FormatFloat(float64(m.Alloc)/1024/1024, 'f', 2, 64),
		Checks:        results,
	}
	code := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// Health is the short form of Readiness for load balancers
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results, healthy := h.probe(ctx)
	if !healthy {
		var down []string
		for name, r := range results {
			if r.Status != "healthy" {
				down = append(down, name)
			}
		}
		sort.Strings(down)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "unavailable": down})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}
