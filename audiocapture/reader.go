package audiocapture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// readerCapturer decodes signed 16-bit little-endian PCM from a stream.
type readerCapturer struct {
	r      io.Reader
	closer func() error
	cfg    Config

	mu      sync.Mutex
	running bool
	stopped bool
	done    chan struct{}
}

// NewReader returns a capturer reading s16le interleaved PCM from r.
// Stop closes r.
func NewReader(r io.ReadCloser, cfg Config) Capturer {
	return newReaderCapturer(r, r.Close, cfg)
}

func newReaderCapturer(r io.Reader, closer func() error, cfg Config) *readerCapturer {
	return &readerCapturer{
		r:      r,
		closer: closer,
		cfg:    cfg.withDefaults(),
		done:   make(chan struct{}),
	}
}

func (c *readerCapturer) SampleRate() int { return c.cfg.SampleRate }
func (c *readerCapturer) Channels() int   { return c.cfg.Channels }

func (c *readerCapturer) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.running {
		return ErrRunning
	}
	c.running = true

	go c.readLoop(handler)
	return nil
}

func (c *readerCapturer) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	running := c.running
	c.mu.Unlock()

	err := c.closer()
	if running {
		<-c.done
	}
	return err
}

func (c *readerCapturer) readLoop(handler AudioHandler) {
	defer close(c.done)

	chunk := make([]byte, c.cfg.frameBytes())
	for {
		n, err := io.ReadFull(c.r, chunk)
		if n >= 2 {
			handler(decodeS16LE(chunk[:n-n%2]))
		}
		if err != nil {
			c.mu.Lock()
			stopped := c.stopped
			c.mu.Unlock()
			if !stopped {
				slog.Warn("audio stream ended", "error", err)
			}
			return
		}
	}
}

func decodeS16LE(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
	}
	return out
}

// CommandSource captures audio from an external process writing s16le PCM
// to stdout, for example:
//
//	ffmpeg -f pulse -i default.monitor -ac 1 -ar 48000 -f s16le -
type CommandSource struct {
	argv []string
	cfg  Config
}

// NewCommandSource creates a source that runs argv on Open.
func NewCommandSource(argv []string, cfg Config) *CommandSource {
	return &CommandSource{argv: argv, cfg: cfg.withDefaults()}
}

// Name implements Source.
func (s *CommandSource) Name() string { return "command" }

// Open starts the process and waits for the first 20 ms of audio.
func (s *CommandSource) Open(ctx context.Context) (Capturer, error) {
	if len(s.argv) == 0 {
		return nil, fmt.Errorf("%w: no capture command configured", ErrNoAudioTrack)
	}

	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrNoAudioTrack, s.argv[0], err)
	}

	kill := func() error {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil
	}

	br := bufio.NewReaderSize(stdout, 64*1024)
	stop := context.AfterFunc(ctx, func() { _ = cmd.Process.Kill() })
	_, err = br.Peek(s.cfg.frameBytes())
	stop()
	if err != nil {
		_ = kill()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s produced no audio: %v", ErrNoAudioTrack, s.argv[0], err)
	}

	return newReaderCapturer(br, kill, s.cfg), nil
}
