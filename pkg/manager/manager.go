// Package manager controls the lifecycle of a HunyuanOCR Docker
// deployment so the model's VRAM can be reclaimed when idle. It starts
// and stops the container through docker compose, gates on the client's
// health probe, and can auto-stop the server after a period without OCR
// activity.
package manager

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
)

// Options tunes a Manager beyond the client configuration.
type Options struct {
	// ComposeDir is the directory holding docker-compose.yml. Falls back
	// to Config.ComposeDir, then to the current directory.
	ComposeDir string

	// IdleTimeout enables auto-shutdown after this much inactivity.
	// Zero disables the watchdog.
	IdleTimeout time.Duration

	// IdleCheckInterval controls how often idleness is checked.
	IdleCheckInterval time.Duration

	// SkipWaitForReady starts the container without blocking on the
	// health probe.
	SkipWaitForReady bool

	Logger zerolog.Logger
}

// GPUMemory is a point-in-time reading from nvidia-smi, in megabytes.
type GPUMemory struct {
	Used  int
	Total int
}

// Manager owns a client plus the Docker lifecycle of the server it talks
// to.
type Manager struct {
	cfg        ocr.Config
	composeDir string
	wait       bool
	log        zerolog.Logger

	mu          sync.Mutex
	client      *ocr.Client
	tracked     ocr.Service
	watchdog    *IdleWatchdog
	startedByUs bool

	// runCommand is swappable for tests.
	runCommand func(ctx context.Context, dir, name string, args ...string) (string, error)
}

// New builds a manager. The zero Options value gives manual start/stop
// control with readiness gating and no auto-shutdown.
func New(cfg ocr.Config, opts Options) *Manager {
	cfg = cfg.WithDefaults()
	composeDir := opts.ComposeDir
	if composeDir == "" {
		composeDir = cfg.ComposeDir
	}
	if composeDir == "" {
		composeDir = "."
	}

	m := &Manager{
		cfg:        cfg,
		composeDir: composeDir,
		wait:       !opts.SkipWaitForReady,
		log:        opts.Logger,
		runCommand: runCommand,
	}
	if opts.IdleTimeout > 0 {
		m.watchdog = NewIdleWatchdog(opts.IdleTimeout, opts.IdleCheckInterval, m.onIdleShutdown)
	}
	return m
}

func (m *Manager) onIdleShutdown() {
	m.log.Info().Msg("auto-shutdown triggered due to inactivity")
	if err := m.Stop(); err != nil {
		m.log.Error().Err(err).Msg("idle shutdown failed")
	}
}

// Client returns the OCR service. When auto-shutdown is enabled the
// returned service tracks activity so requests keep the server alive.
func (m *Manager) Client() ocr.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		m.client = ocr.NewClient(m.cfg)
		m.client.SetLogger(m.log)
		if m.watchdog != nil {
			m.tracked = &trackingService{inner: m.client, watchdog: m.watchdog}
		}
	}
	if m.tracked != nil {
		return m.tracked
	}
	return m.client
}

// IsRunning reports whether the server container is currently running.
func (m *Manager) IsRunning(ctx context.Context) bool {
	out, err := m.runCommand(ctx, "", "docker",
		"container", "inspect", "-f", "{{.State.Running}}", m.cfg.ContainerName)
	return err == nil && strings.TrimSpace(out) == "true"
}

// GPUMemory reads current GPU memory usage through nvidia-smi. The
// second return value is false when nvidia-smi is unavailable or its
// output cannot be parsed.
func (m *Manager) GPUMemory(ctx context.Context) (GPUMemory, bool) {
	out, err := m.runCommand(ctx, "", "nvidia-smi",
		"--query-gpu=memory.used,memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return GPUMemory{}, false
	}
	fields := strings.Split(strings.TrimSpace(out), ", ")
	if len(fields) != 2 {
		return GPUMemory{}, false
	}
	used, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
	total, err2 := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err1 != nil || err2 != nil {
		return GPUMemory{}, false
	}
	return GPUMemory{Used: used, Total: total}, true
}

// Start brings the server container up and, unless disabled, blocks
// until the health probe reports ready. Model loading can take minutes.
func (m *Manager) Start(ctx context.Context) error {
	if m.IsRunning(ctx) {
		m.log.Info().Msg("server already running")
		if m.wait {
			return m.Client().WaitForReady(ctx, 0, 0)
		}
		return nil
	}

	m.log.Info().Str("container", m.cfg.ContainerName).Msg("starting server")
	if mem, ok := m.GPUMemory(ctx); ok {
		m.log.Info().Int("used_mb", mem.Used).Int("total_mb", mem.Total).Msg("gpu memory before start")
	}

	out, err := m.runCommand(ctx, m.composeDir, "docker", "compose", "up", "-d", m.cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("failed to start server: %w: %s", err, strings.TrimSpace(out))
	}
	m.mu.Lock()
	m.startedByUs = true
	m.mu.Unlock()

	if m.wait {
		m.log.Info().Msg("waiting for server to be ready (model loading, may take minutes)")
		if err := m.Client().WaitForReady(ctx, 0, 0); err != nil {
			return err
		}
		if mem, ok := m.GPUMemory(ctx); ok {
			m.log.Info().Int("used_mb", mem.Used).Int("total_mb", mem.Total).Msg("gpu memory after start")
		}
		m.log.Info().Msg("server is ready")
	}

	if m.watchdog != nil {
		m.watchdog.Start()
	}
	return nil
}

// Stop halts the server container, releasing the model's GPU memory.
func (m *Manager) Stop() error {
	m.log.Info().Str("container", m.cfg.ContainerName).Msg("stopping server to free VRAM")
	out, err := m.runCommand(context.Background(), m.composeDir, "docker", "compose", "stop", m.cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("failed to stop server: %w: %s", err, strings.TrimSpace(out))
	}
	m.mu.Lock()
	m.startedByUs = false
	m.mu.Unlock()
	m.log.Info().Msg("server stopped, VRAM freed")
	return nil
}

// Restart stops and starts the server container.
func (m *Manager) Restart(ctx context.Context) error {
	if err := m.Stop(); err != nil {
		return err
	}
	return m.Start(ctx)
}

// Close stops the watchdog, stops the container if this manager started
// it, and closes the client. Safe to call more than once.
func (m *Manager) Close() error {
	if m.watchdog != nil {
		m.watchdog.Stop()
	}

	m.mu.Lock()
	startedByUs := m.startedByUs
	client := m.client
	m.mu.Unlock()

	var err error
	if startedByUs {
		err = m.Stop()
	}
	if client != nil {
		client.Close()
	}
	return err
}

func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
