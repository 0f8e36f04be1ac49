// Package hunyuanocr provides a client for HunyuanOCR inference servers.
//
// The server exposes an OpenAI-compatible chat-completion endpoint; this
// package encodes images as base64 data URLs, issues structured OCR
// prompts and decodes the extracted text together with token-usage
// metadata.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
//	)
//
//	func main() {
//		client := ocr.NewClient(ocr.DefaultConfig())
//		defer client.Close()
//
//		result, err := client.OCRImage(context.Background(),
//			ocr.FromFile("document.png"),
//			&ocr.Options{Task: ocr.Document})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(result.Text)
//		fmt.Printf("tokens: %d prompt, %d completion\n",
//			result.PromptTokens, result.CompletionTokens)
//	}
//
// The package consists of three main components:
//
// 1. Client (pkg/ocr): request construction, health gating, batch fan-out
// 2. Manager (pkg/manager): Docker lifecycle control and idle shutdown
// 3. Cache (pkg/cache): optional Redis-backed result cache
//
// Batch runs are bounded by a worker cap and come in three flavors:
// order-preserving, completion-ordered, and callback-driven with
// per-item error isolation. The manager can start the server container
// on demand and stop it after a period of inactivity so the model's
// VRAM is only held while OCR work is flowing.
package hunyuanocr

import (
	"context"

	"github.com/hunyuanocr/hunyuanocr-go/pkg/manager"
	"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
)

// Version of the HunyuanOCR client library
const Version = "1.0.0"

// Re-exported aliases so simple programs only import this package.
type (
	Config  = ocr.Config
	Options = ocr.Options
	Result  = ocr.Result
	Task    = ocr.Task
)

// DefaultConfig returns the library defaults (local server, published
// model identifier, no authentication).
func DefaultConfig() Config {
	return ocr.DefaultConfig()
}

// NewClient builds a transport client owning its connection pool.
func NewClient(cfg Config) *ocr.Client {
	return ocr.NewClient(cfg)
}

// Session couples a running server (via the lifecycle manager) with a
// ready-to-use client.
type Session struct {
	Manager *manager.Manager
	Client  ocr.Service

	stopOnClose bool
}

// SessionOptions tunes OpenSession.
type SessionOptions struct {
	Manager manager.Options

	// KeepServer leaves the container running when the session closes.
	// Useful together with Manager.IdleTimeout, which hands shutdown to
	// the watchdog instead.
	KeepServer bool
}

// OpenSession starts the OCR server (when not already running), waits
// for it to become ready, and returns a session whose Close stops the
// server again unless KeepServer is set.
func OpenSession(ctx context.Context, cfg Config, opts SessionOptions) (*Session, error) {
	mgr := manager.New(cfg, opts.Manager)
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, err
	}
	return &Session{
		Manager:     mgr,
		Client:      mgr.Client(),
		stopOnClose: !opts.KeepServer,
	}, nil
}

// Close tears the session down.
func (s *Session) Close() error {
	if s.stopOnClose {
		return s.Manager.Close()
	}
	return s.Client.Close()
}

// GetVersion returns the library version.
func GetVersion() string {
	return Version
}
