package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.ServerURL != "http://localhost:8000" {
		t.Errorf("ServerURL = %q", cfg.Client.ServerURL)
	}
	if cfg.Client.Model != "tencent/HunyuanOCR" {
		t.Errorf("Model = %q", cfg.Client.Model)
	}
	if cfg.Client.APIKey != "EMPTY" {
		t.Errorf("APIKey = %q", cfg.Client.APIKey)
	}
	if cfg.Client.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d", cfg.Client.MaxWorkers)
	}
	if cfg.Cache.Enable {
		t.Error("cache enabled by default")
	}
	if cfg.Cache.Addr != "localhost:6379" {
		t.Errorf("Redis addr = %q", cfg.Cache.Addr)
	}
	if cfg.Proxy.Port != 8000 {
		t.Errorf("proxy port = %d", cfg.Proxy.Port)
	}
	if cfg.Proxy.IdleTimeout() != 300*time.Second {
		t.Errorf("idle timeout = %v", cfg.Proxy.IdleTimeout())
	}
	if cfg.Proxy.CheckInterval() != 30*time.Second {
		t.Errorf("check interval = %v", cfg.Proxy.CheckInterval())
	}
	if cfg.Proxy.StartupTimeout() != 600*time.Second {
		t.Errorf("startup timeout = %v", cfg.Proxy.StartupTimeout())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OCR_SERVER_URL", "http://gpu-box:9000")
	t.Setenv("OCR_MAX_TOKENS", "4096")
	t.Setenv("OCR_READ_TIMEOUT", "90s")
	t.Setenv("CACHE_ENABLE", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("IDLE_TIMEOUT", "60")
	t.Setenv("CONTAINER_NAME", "custom-ocr")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.ServerURL != "http://gpu-box:9000" {
		t.Errorf("ServerURL = %q", cfg.Client.ServerURL)
	}
	if cfg.Client.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", cfg.Client.MaxTokens)
	}
	if cfg.Client.ReadTimeout != 90*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Client.ReadTimeout)
	}
	if !cfg.Cache.Enable || cfg.Cache.Addr != "redis:6379" {
		t.Errorf("cache config = %+v", cfg.Cache)
	}
	if cfg.Proxy.IdleTimeout() != time.Minute {
		t.Errorf("idle timeout = %v", cfg.Proxy.IdleTimeout())
	}
	// CONTAINER_NAME feeds both the client and the proxy.
	if cfg.Client.ContainerName != "custom-ocr" || cfg.Proxy.ContainerName != "custom-ocr" {
		t.Errorf("container names = %q/%q", cfg.Client.ContainerName, cfg.Proxy.ContainerName)
	}
}

func TestOCRConfigMapping(t *testing.T) {
	t.Setenv("OCR_MODEL", "custom/model")
	t.Setenv("OCR_MAX_WORKERS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	oc := cfg.Client.OCRConfig()
	if oc.Model != "custom/model" {
		t.Errorf("Model = %q", oc.Model)
	}
	if oc.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d", oc.MaxWorkers)
	}
	if oc.ServerURL != cfg.Client.ServerURL {
		t.Errorf("ServerURL not carried over: %q", oc.ServerURL)
	}
}
