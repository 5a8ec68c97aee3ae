package capture

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/calendar"}
	if err := o.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Fatalf("normalize() = %+v", o)
	}

	custom := Options{URL: "x", Width: 800, Height: 200, Timeout: time.Second}
	if err := custom.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if custom.Width != 800 || custom.Height != 200 || custom.Timeout != time.Second {
		t.Fatalf("normalize() overwrote explicit values: %+v", custom)
	}
}

func TestCaptureRequiresURLAndPath(t *testing.T) {
	if _, err := CapturePNG(context.Background(), Options{}); err == nil {
		t.Fatal("CapturePNG() without URL expected error")
	}
	if err := CaptureFile(context.Background(), Options{URL: "http://x"}, ""); err == nil {
		t.Fatal("CaptureFile() without path expected error")
	}
}
