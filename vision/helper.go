package vision

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// maxLineSize bounds one JSON line from the helper.
const maxLineSize = 1 << 20

// Helper runs an external landmark process that owns the camera and prints
// one JSON object per line:
//
//	{"ready":true}
//	{"t":1712345678901,"hands":[[{"x":0.5,"y":0.4,"z":0}, ...]]}
//	{"error":"camera permission denied"}
//
// It is both the Camera and the Detector: frames arrive with landmarks
// already attached.
type Helper struct {
	argv []string

	readyOnce sync.Once
	ready     chan struct{}
}

// NewHelper creates a helper that will run argv on Open.
func NewHelper(argv []string) *Helper {
	return &Helper{
		argv:  argv,
		ready: make(chan struct{}),
	}
}

// Open starts the helper and waits for its first status line.
func (h *Helper) Open(ctx context.Context) (FrameStream, error) {
	if len(h.argv) == 0 {
		return nil, fmt.Errorf("%w: no landmark helper configured", ErrCameraUnavailable)
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, h.argv[0], h.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	dec := newLineDecoder(stdout)
	first, err := dec.Next()
	if err == nil && first.Error != "" {
		err = errors.New(first.Error)
	}
	if err != nil {
		cancel()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	h.markReady()

	s := &helperStream{
		cmd:    cmd,
		cancel: cancel,
		frames: make(chan Frame, 4),
		done:   make(chan struct{}),
	}
	go s.pump(dec, first)
	return s, nil
}

// Init waits until the helper reports readiness.
func (h *Helper) Init(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detect returns the landmarks the helper attached to f.
func (h *Helper) Detect(f Frame) ([]Hand, error) {
	return f.Hands, nil
}

func (h *Helper) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

type helperStream struct {
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (s *helperStream) Frames() <-chan Frame { return s.frames }

// Close stops the helper, releasing the camera. Safe to call repeatedly.
func (s *helperStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *helperStream) pump(dec *lineDecoder, first helperLine) {
	defer close(s.done)
	defer close(s.frames)

	line := first
	for {
		if !line.Ready && line.Error == "" {
			s.deliver(line.frame())
		}
		if line.Error != "" {
			slog.Warn("landmark helper error", "error", line.Error)
		}

		var err error
		line, err = dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("landmark helper stream ended", "error", err)
			}
			break
		}
	}
	_ = s.cmd.Wait()
}

// deliver drops the frame when the consumer is behind.
func (s *helperStream) deliver(f Frame) {
	select {
	case s.frames <- f:
	default:
	}
}

type helperLine struct {
	Ready bool   `json:"ready,omitempty"`
	Error string `json:"error,omitempty"`
	T     int64  `json:"t,omitempty"`
	Hands []Hand `json:"hands,omitempty"`
}

func (l helperLine) frame() Frame {
	ts := time.Now()
	if l.T > 0 {
		ts = time.UnixMilli(l.T)
	}
	return Frame{Timestamp: ts, Hands: l.Hands}
}

type lineDecoder struct {
	scanner *bufio.Scanner
}

func newLineDecoder(r io.Reader) *lineDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineDecoder{scanner: sc}
}

// Next returns the next well-formed line. Blank and malformed lines are skipped.
func (d *lineDecoder) Next() (helperLine, error) {
	for d.scanner.Scan() {
		raw := d.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line helperLine
		if err := json.Unmarshal(raw, &line); err != nil {
			slog.Debug("skip malformed landmark line", "error", err)
			continue
		}
		return line, nil
	}
	if err := d.scanner.Err(); err != nil {
		return helperLine{}, err
	}
	return helperLine{}, io.EOF
}
