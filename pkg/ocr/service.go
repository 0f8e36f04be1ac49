package ocr

import (
	"context"
	"time"
)

// Options overrides per-request generation settings. A nil *Options means
// all defaults: the catalog's default task, the configured max token
// budget and the configured temperature.
type Options struct {
	// Task selects a catalog prompt. Ignored when Prompt is set.
	Task Task

	// Prompt is a literal instruction string bypassing the catalog.
	Prompt string

	// MaxTokens overrides the configured output token budget when > 0.
	MaxTokens int

	// Temperature overrides the configured sampling temperature when
	// non-nil. A pointer because 0.0 is a meaningful override.
	Temperature *float64
}

// BatchOptions carries per-request settings plus the batch worker bound.
type BatchOptions struct {
	Options

	// Workers caps the number of requests in flight. Zero falls back to
	// the configured MaxWorkers; a negative value is a configuration
	// error.
	Workers int
}

// BatchCallbacks receives per-item outcomes from OCRBatchFunc.
type BatchCallbacks struct {
	// OnResult is invoked with the input index and its result.
	OnResult func(index int, res *Result)

	// OnError is invoked with the input index and the failure. The
	// failure is isolated to that item; sibling items keep running.
	OnError func(index int, err error)
}

// Service is the capability set shared by the transport client and any
// wrapper around it (such as the lifecycle manager's activity-tracking
// client).
type Service interface {
	// HealthCheck probes the server. It never fails: every failure class
	// is folded into the returned status.
	HealthCheck(ctx context.Context) ServerStatus

	// WaitForReady polls HealthCheck until the server is healthy, the
	// timeout elapses (ErrNotReady) or ctx is cancelled (ctx.Err()).
	// Zero timeout or interval fall back to the configured values.
	WaitForReady(ctx context.Context, timeout, interval time.Duration) error

	// OCRImage performs one OCR exchange.
	OCRImage(ctx context.Context, img Image, opts *Options) (*Result, error)

	// OCRBatch runs OCRImage over imgs under the worker bound, returning
	// results in input order.
	OCRBatch(ctx context.Context, imgs []Image, opts *BatchOptions) ([]*Result, error)

	// OCRBatchUnordered collects results in completion order.
	OCRBatchUnordered(ctx context.Context, imgs []Image, opts *BatchOptions) ([]*Result, error)

	// OCRBatchFunc reports per-item outcomes through cbs. A failed item
	// leaves a nil slot in the returned slice.
	OCRBatchFunc(ctx context.Context, imgs []Image, cbs BatchCallbacks, opts *BatchOptions) ([]*Result, error)

	// Close releases client-owned resources. Safe to call more than once.
	Close() error
}

// Cache stores OCR results keyed by request fingerprint. Implementations
// must be safe for concurrent use. pkg/cache provides a Redis-backed one.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// prompt resolves the instruction string for a request.
func (o *Options) prompt() string {
	if o != nil && o.Prompt != "" {
		return o.Prompt
	}
	if o != nil && o.Task != "" {
		return o.Task.Instruction()
	}
	return DefaultTask.Instruction()
}
