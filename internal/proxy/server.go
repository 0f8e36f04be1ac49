package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hunyuanocr/hunyuanocr-go/internal/config"
	"github.com/hunyuanocr/hunyuanocr-go/internal/metrics"
)

// Hop-by-hop headers must not be forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Server is the proxy HTTP surface.
type Server struct {
	cfg     config.ProxyConfig
	backend *Backend
	forward *http.Client
	log     zerolog.Logger
}

func NewServer(cfg config.ProxyConfig, backend *Backend, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		backend: backend,
		// Long timeouts: a single inference on a large document can run
		// for minutes.
		forward: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
			},
		},
		log: log,
	}
}

// Router builds the chi router: proxy self-endpoints, metrics, and a
// catch-all that forwards everything else to the backend.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/proxy/health", s.handleHealth)
	r.Get("/proxy/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/*", s.handleProxy)
	return r
}

// handleHealth reports the proxy's own liveness, which is unconditional.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "proxy",
	})
}

type backendStatus struct {
	Container string `json:"container"`
	Running   bool   `json:"running"`
	Healthy   bool   `json:"healthy"`
	Starting  bool   `json:"starting"`
}

type idleStatus struct {
	Seconds   float64 `json:"seconds"`
	Timeout   float64 `json:"timeout"`
	Remaining float64 `json:"remaining"`
}

type statusResponse struct {
	Proxy   string        `json:"proxy"`
	Backend backendStatus `json:"backend"`
	Idle    idleStatus    `json:"idle"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := s.backend.IsContainerRunning(r.Context())
	healthy := false
	if running {
		healthy = s.backend.CheckHealth(r.Context())
	}

	idle := s.backend.IdleFor().Seconds()
	timeout := s.cfg.IdleTimeout().Seconds()
	s.writeJSON(w, http.StatusOK, statusResponse{
		Proxy: "healthy",
		Backend: backendStatus{
			Container: s.cfg.ContainerName,
			Running:   running,
			Healthy:   healthy,
			Starting:  s.backend.Starting(),
		},
		Idle: idleStatus{
			Seconds:   idle,
			Timeout:   timeout,
			Remaining: max(0, timeout-idle),
		},
	})
}

// handleProxy forwards one request to the backend, cold-starting it if
// necessary.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := s.log.With().
		Str("request_id", uuid.NewString()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Logger()

	s.backend.RecordActivity()

	if err := s.backend.EnsureReady(r.Context()); err != nil {
		log.Error().Err(err).Msg("backend failed to start")
		s.writeError(w, http.StatusServiceUnavailable, "backend server failed to start")
		metrics.ProxyRequest(r.Method, strconv.Itoa(http.StatusServiceUnavailable), time.Since(start))
		return
	}

	url := s.backend.url + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		log.Error().Err(err).Msg("failed to build backend request")
		s.writeError(w, http.StatusBadGateway, "backend request failed")
		metrics.ProxyRequest(r.Method, strconv.Itoa(http.StatusBadGateway), time.Since(start))
		return
	}
	copyHeaders(out.Header, r.Header)

	resp, err := s.forward.Do(out)
	if err != nil {
		code := http.StatusBadGateway
		msg := "backend request failed"
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
			msg = "backend request timeout"
		} else {
			// Backend may have crashed mid-request.
			s.backend.MarkUnhealthy()
		}
		log.Error().Err(err).Msg(msg)
		s.writeError(w, code, msg)
		metrics.ProxyRequest(r.Method, strconv.Itoa(code), time.Since(start))
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	// io.Copy streams chunked and event-stream bodies as they arrive.
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn().Err(err).Msg("response copy interrupted")
	}

	metrics.ProxyRequest(r.Method, strconv.Itoa(resp.StatusCode), time.Since(start))
	log.Info().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("proxied")
}

// MonitorIdle stops the backend container once it has been idle for the
// configured timeout. Blocks until ctx is cancelled.
func (s *Server) MonitorIdle(ctx context.Context) {
	interval := s.cfg.CheckInterval()
	timeout := s.cfg.IdleTimeout()
	s.log.Info().
		Dur("timeout", timeout).
		Dur("interval", interval).
		Msg("idle monitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// A starting backend is busy loading the model, and a stopped
		// one has nothing left to shut down.
		if s.backend.Starting() || !s.backend.Healthy() {
			continue
		}

		idle := s.backend.IdleFor()
		metrics.SetIdleSeconds(idle.Seconds())
		remaining := timeout - idle

		switch {
		case remaining <= 0:
			s.log.Warn().
				Dur("idle", idle).
				Dur("timeout", timeout).
				Msg("idle timeout reached, stopping backend")
			if err := s.backend.StopContainer(ctx); err != nil {
				s.log.Error().Err(err).Msg("idle shutdown failed")
			}
		case remaining <= time.Minute:
			s.log.Info().
				Dur("idle", idle).
				Dur("remaining", remaining).
				Msg("backend shutting down soon")
		default:
			s.log.Debug().Dur("idle", idle).Msg("backend active")
		}
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
