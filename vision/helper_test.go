package vision

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLineDecoder(t *testing.T) {
	input := strings.Join([]string{
		`{"ready":true}`,
		``,
		`garbage`,
		`{"t":1500,"hands":[[{"x":0.1,"y":0.2,"z":0}]]}`,
		`{"error":"lost camera"}`,
	}, "\n")

	dec := newLineDecoder(strings.NewReader(input))

	first, err := dec.Next()
	if err != nil || !first.Ready {
		t.Fatalf("first = %+v, %v, want ready", first, err)
	}

	frameLine, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	f := frameLine.frame()
	if !f.Timestamp.Equal(time.UnixMilli(1500)) {
		t.Errorf("Timestamp = %v, want 1500ms", f.Timestamp)
	}
	if len(f.Hands) != 1 || f.Hands[0][0].Y != 0.2 {
		t.Errorf("Hands = %+v", f.Hands)
	}

	errLine, err := dec.Next()
	if err != nil || errLine.Error != "lost camera" {
		t.Errorf("error line = %+v, %v", errLine, err)
	}

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end error = %v, want io.EOF", err)
	}
}

func TestHelperOpenWithoutCommand(t *testing.T) {
	h := NewHelper(nil)
	if _, err := h.Open(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("Open() error = %v, want ErrCameraUnavailable", err)
	}
}

func TestHelperOpenReportsDenial(t *testing.T) {
	h := NewHelper([]string{"sh", "-c", `echo '{"error":"camera permission denied"}'`})
	_, err := h.Open(context.Background())
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("Open() error = %v, want ErrCameraUnavailable", err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("error = %q, want helper message", err)
	}
}

func TestHelperStreamsFrames(t *testing.T) {
	h := NewHelper([]string{"sh", "-c", `printf '%s\n' '{"ready":true}' '{"t":5,"hands":[]}'`})

	stream, err := h.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	select {
	case f, ok := <-stream.Frames():
		if !ok {
			t.Fatal("frames closed before first frame")
		}
		if !f.Timestamp.Equal(time.UnixMilli(5)) {
			t.Errorf("Timestamp = %v, want 5ms", f.Timestamp)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for frame")
	}

	if err := stream.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
