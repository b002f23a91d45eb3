// Package http exposes the daily ledger over a JSON API.
package http

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sitebook/internal/core"
	"sitebook/internal/services"
	"sitebook/internal/storage"
)

const (
	cacheTTL       = 5 * time.Minute
	cacheMaxSize   = 100
	rateLimitMax   = 60
	rateLimitWin   = time.Minute
	cleanupPeriod  = 10 * time.Minute
	requestIDBytes = 8
)

// lruCache is a small TTL'd LRU keyed by string.
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
}

type cacheEntry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[T])
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return entry.value, true
}

func (c *lruCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry[T])
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry[T]).key)
		}
	}

	elem := c.order.PushFront(&cacheEntry[T]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[key] = elem
}

func (c *lruCache[T]) CleanExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for elem := c.order.Back(); elem != nil; {
		entry := elem.Value.(*cacheEntry[T])
		prev := elem.Prev()
		if now.After(entry.expiresAt) {
			c.order.Remove(elem)
			delete(c.items, entry.key)
		}
		elem = prev
	}
}

// rateLimiter tracks request timestamps per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	max      int
	window   time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
		max:      max,
		window:   window,
	}
}

func (rl *rateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	recent := rl.requests[ip][:0]
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.max {
		rl.requests[ip] = recent
		return false
	}

	rl.requests[ip] = append(recent, now)
	return true
}

func (rl *rateLimiter) CleanStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for ip, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.requests, ip)
		}
	}
}

// Server wires the ledger services behind a JSON API with report caching.
type Server struct {
	http.Server

	entries *services.EntryService
	billing *services.BillingService
	copier  *services.DayCopyService
	masters *services.MastersService
	store   storage.Store

	reportCache *lruCache[core.Report]
	billCache   *lruCache[core.Bill]
	dashCache   *lruCache[[]core.SiteSnapshot]

	// dataVersion is folded into every cache key and bumped on each
	// write, so stale reports age out immediately instead of after TTL.
	dataVersion atomic.Int64

	limiter          *rateLimiter
	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

func NewServer(
	addr string,
	entries *services.EntryService,
	billing *services.BillingService,
	copier *services.DayCopyService,
	masters *services.MastersService,
	store storage.Store,
) *Server {
	s := &Server{
		entries:          entries,
		billing:          billing,
		copier:           copier,
		masters:          masters,
		store:            store,
		reportCache:      newLRUCache[core.Report](cacheMaxSize, cacheTTL),
		billCache:        newLRUCache[core.Bill](cacheMaxSize, cacheTTL),
		dashCache:        newLRUCache[[]core.SiteSnapshot](cacheMaxSize, cacheTTL),
		limiter:          newRateLimiter(rateLimitMax, rateLimitWin),
		stopCacheCleanup: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/day", s.handleDay)
	mux.HandleFunc("/day/reset", s.handleDayReset)
	mux.HandleFunc("/day/copy", s.handleDayCopy)

	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/bills/team", s.handleTeamBill)
	mux.HandleFunc("/bills/department", s.handleDepartmentBill)
	mux.HandleFunc("/bills/agent", s.handleAgentBill)
	mux.HandleFunc("/bills/expense", s.handleExpenseBill)

	mux.HandleFunc("/sites", s.handleSites)
	mux.HandleFunc("/sites/delete", s.handleSiteDelete)
	mux.HandleFunc("/teams", s.handleTeams)
	mux.HandleFunc("/teams/delete", s.handleTeamDelete)
	mux.HandleFunc("/teams/rates", s.handleTeamRates)
	mux.HandleFunc("/teams/rates/lock", s.handleTeamRateLock)
	mux.HandleFunc("/departments", s.handleDepartments)
	mux.HandleFunc("/departments/delete", s.handleDepartmentDelete)
	mux.HandleFunc("/departments/rates", s.handleDepartmentRates)

	s.Server = http.Server{
		Addr:         addr,
		Handler:      s.withSecurityHeaders(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.cacheCleanupLoop()

	return s
}

// invalidateCaches makes every cached report, bill and dashboard key
// unreachable. Called after any successful write.
func (s *Server) invalidateCaches() {
	s.dataVersion.Add(1)
}

func (s *Server) cacheKey(parts ...string) string {
	return fmt.Sprintf("v%d|%s", s.dataVersion.Load(), strings.Join(parts, "|"))
}

func (s *Server) cacheCleanupLoop() {
	ticker := time.NewTicker(cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportCache.CleanExpired()
			s.billCache.CleanExpired()
			s.dashCache.CleanExpired()
			s.limiter.CleanStale()
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutine and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
	})
	return s.Server.Shutdown(ctx)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

func generateRequestID() string {
	b := make([]byte, requestIDBytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		ip := clientIP(r)

		if r.Method == http.MethodPost && !s.limiter.Allow(ip) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"request_id", requestID, "ip", ip, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		slog.InfoContext(r.Context(), "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"ip", ip)

		next.ServeHTTP(rw, r)

		slog.InfoContext(r.Context(), "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListSites(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
