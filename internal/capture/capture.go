// Package capture takes PNG snapshots of the HTML calendar with a
// headless Chromium driven by chromedp.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Viewport defaults fit a full year of week columns plus the summary.
const (
	DefaultWidth   = 1024
	DefaultHeight  = 360
	DefaultTimeout = 30 * time.Second
)

// ReadySelector matches the calendar root once it has rendered.
const ReadySelector = `[data-ready="true"]`

// Options defines one snapshot.
type Options struct {
	// URL of the calendar page, e.g. "http://127.0.0.1:8080/calendar".
	URL string

	// Width and Height of the viewport. Zero uses the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Settle is an extra wait after the ready marker appears.
	Settle time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// CapturePNG navigates to opts.URL, waits for ReadySelector and returns a
// full-page PNG.
func CapturePNG(parent context.Context, opts Options) ([]byte, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
	}
	if opts.Settle > 0 {
		tasks = append(tasks, chromedp.Sleep(opts.Settle))
	}
	tasks = append(tasks, chromedp.FullScreenshot(&png, 100))

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return png, nil
}

// CaptureFile captures and writes the PNG to path, creating its directory.
func CaptureFile(ctx context.Context, opts Options, path string) error {
	if path == "" {
		return errors.New("capture: output path is required")
	}
	png, err := CapturePNG(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
