// Package proxy implements the smart watchdog proxy placed in front of
// the vLLM inference server. It forwards every request, starts the
// backend container on demand, gates on the health endpoint while the
// model loads, and stops the container again after an idle timeout to
// free VRAM.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hunyuanocr/hunyuanocr-go/internal/metrics"
)

const healthProbeTimeout = 5 * time.Second

// Backend tracks the state of the inference container behind the proxy.
type Backend struct {
	url            string
	containerName  string
	startupTimeout time.Duration
	probeClient    *http.Client
	log            zerolog.Logger

	// mu serializes ensure-ready so only one request drives a cold start.
	mu           sync.Mutex
	healthy      atomic.Bool
	starting     atomic.Bool
	lastActivity atomic.Int64

	// runCommand is swappable for tests.
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

func NewBackend(url, containerName string, startupTimeout time.Duration, log zerolog.Logger) *Backend {
	b := &Backend{
		url:            strings.TrimSuffix(url, "/"),
		containerName:  containerName,
		startupTimeout: startupTimeout,
		probeClient:    &http.Client{Timeout: healthProbeTimeout},
		log:            log,
		runCommand:     runCommand,
	}
	b.lastActivity.Store(time.Now().UnixNano())
	return b
}

// RecordActivity marks now as the last time a request passed through.
func (b *Backend) RecordActivity() {
	b.lastActivity.Store(time.Now().UnixNano())
}

// IdleFor returns how long the backend has gone without a request.
func (b *Backend) IdleFor() time.Duration {
	return time.Since(time.Unix(0, b.lastActivity.Load()))
}

func (b *Backend) Healthy() bool  { return b.healthy.Load() }
func (b *Backend) Starting() bool { return b.starting.Load() }

// MarkUnhealthy forces a health re-check on the next request. Used when
// a forwarded request fails mid-flight.
func (b *Backend) MarkUnhealthy() {
	b.healthy.Store(false)
}

// CheckHealth probes the backend's health endpoint.
func (b *Backend) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := b.probeClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IsContainerRunning asks Docker whether the backend container is up.
func (b *Backend) IsContainerRunning(ctx context.Context) bool {
	out, err := b.runCommand(ctx, "docker", "inspect", "-f", "{{.State.Running}}", b.containerName)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to check container status")
		return false
	}
	return strings.EqualFold(strings.TrimSpace(out), "true")
}

// StartContainer starts the backend container.
func (b *Backend) StartContainer(ctx context.Context) error {
	b.log.Info().Str("container", b.containerName).Msg("starting container")
	out, err := b.runCommand(ctx, "docker", "start", b.containerName)
	if err != nil {
		return fmt.Errorf("failed to start container: %w: %s", err, strings.TrimSpace(out))
	}
	metrics.BackendStarted()
	return nil
}

// StopContainer stops the backend container to free VRAM.
func (b *Backend) StopContainer(ctx context.Context) error {
	b.log.Info().Str("container", b.containerName).Msg("stopping container to free VRAM")
	out, err := b.runCommand(ctx, "docker", "stop", b.containerName)
	if err != nil {
		return fmt.Errorf("failed to stop container: %w: %s", err, strings.TrimSpace(out))
	}
	b.healthy.Store(false)
	metrics.BackendStopped()
	return nil
}

// EnsureReady makes sure the backend is running and healthy, starting
// the container when needed and polling the health endpoint until the
// model has loaded. Polling backs off from 2s to 5s after the first 30
// seconds of startup.
func (b *Backend) EnsureReady(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.healthy.Load() && b.CheckHealth(ctx) {
		return nil
	}

	b.healthy.Store(false)
	b.starting.Store(true)
	defer b.starting.Store(false)

	if !b.IsContainerRunning(ctx) {
		b.log.Info().Msg("backend not running, starting it")
		if err := b.StartContainer(ctx); err != nil {
			return err
		}
	}

	b.log.Info().Msg("waiting for backend to become healthy")
	start := time.Now()
	checks := 0
	for time.Since(start) < b.startupTimeout {
		checks++
		if b.CheckHealth(ctx) {
			b.log.Info().
				Dur("elapsed", time.Since(start)).
				Int("checks", checks).
				Msg("backend healthy")
			b.healthy.Store(true)
			b.RecordActivity()
			return nil
		}

		wait := 2 * time.Second
		if time.Since(start) >= 30*time.Second {
			wait = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("backend failed to become healthy within %s", b.startupTimeout)
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}
