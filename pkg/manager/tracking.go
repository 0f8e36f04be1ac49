package manager

import (
	"context"
	"time"

	"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
)

// trackingService wraps an ocr.Service so every OCR call refreshes the
// idle watchdog. Health probes deliberately do not count as activity:
// polling must not keep the server alive.
type trackingService struct {
	inner    ocr.Service
	watchdog *IdleWatchdog
}

var _ ocr.Service = (*trackingService)(nil)

func (t *trackingService) HealthCheck(ctx context.Context) ocr.ServerStatus {
	return t.inner.HealthCheck(ctx)
}

func (t *trackingService) WaitForReady(ctx context.Context, timeout, interval time.Duration) error {
	return t.inner.WaitForReady(ctx, timeout, interval)
}

func (t *trackingService) OCRImage(ctx context.Context, img ocr.Image, opts *ocr.Options) (*ocr.Result, error) {
	t.watchdog.RecordActivity()
	res, err := t.inner.OCRImage(ctx, img, opts)
	t.watchdog.RecordActivity()
	return res, err
}

func (t *trackingService) OCRBatch(ctx context.Context, imgs []ocr.Image, opts *ocr.BatchOptions) ([]*ocr.Result, error) {
	t.watchdog.RecordActivity()
	res, err := t.inner.OCRBatch(ctx, imgs, opts)
	t.watchdog.RecordActivity()
	return res, err
}

func (t *trackingService) OCRBatchUnordered(ctx context.Context, imgs []ocr.Image, opts *ocr.BatchOptions) ([]*ocr.Result, error) {
	t.watchdog.RecordActivity()
	res, err := t.inner.OCRBatchUnordered(ctx, imgs, opts)
	t.watchdog.RecordActivity()
	return res, err
}

func (t *trackingService) OCRBatchFunc(ctx context.Context, imgs []ocr.Image, cbs ocr.BatchCallbacks, opts *ocr.BatchOptions) ([]*ocr.Result, error) {
	t.watchdog.RecordActivity()
	res, err := t.inner.OCRBatchFunc(ctx, imgs, cbs, opts)
	t.watchdog.RecordActivity()
	return res, err
}

func (t *trackingService) Close() error {
	return t.inner.Close()
}
