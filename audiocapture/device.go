package audiocapture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// DeviceKind selects which device a DeviceSource opens.
type DeviceKind int

const (
	// KindLoopback captures what the system is playing (meeting audio).
	// Only some backends support it; others fail on Open.
	KindLoopback DeviceKind = iota
	// KindMicrophone captures the default input device.
	KindMicrophone
)

func (k DeviceKind) String() string {
	switch k {
	case KindLoopback:
		return "loopback"
	case KindMicrophone:
		return "microphone"
	default:
		return fmt.Sprintf("DeviceKind(%d)", int(k))
	}
}

// DeviceSource opens audio devices through miniaudio.
type DeviceSource struct {
	kind DeviceKind
	cfg  Config
}

// NewDeviceSource creates a device source.
func NewDeviceSource(kind DeviceKind, cfg Config) *DeviceSource {
	return &DeviceSource{kind: kind, cfg: cfg.withDefaults()}
}

// Name implements Source.
func (s *DeviceSource) Name() string { return s.kind.String() }

// Open initializes the device without starting it.
func (s *DeviceSource) Open(ctx context.Context) (Capturer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceType := malgo.Capture
	if s.kind == KindLoopback {
		deviceType = malgo.Loopback
	}
	dc := malgo.DefaultDeviceConfig(deviceType)
	dc.Capture.Format = malgo.FormatF32
	dc.Capture.Channels = uint32(s.cfg.Channels)
	dc.SampleRate = uint32(s.cfg.SampleRate)

	c := &deviceCapturer{ctx: mctx, cfg: s.cfg}
	dev, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{Data: c.onData})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoAudioTrack, s.kind, err)
	}
	c.dev = dev
	return c, nil
}

type deviceCapturer struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device
	cfg Config

	mu      sync.Mutex
	handler AudioHandler
	running bool
	stopped bool
}

func (c *deviceCapturer) SampleRate() int { return c.cfg.SampleRate }
func (c *deviceCapturer) Channels() int   { return c.cfg.Channels }

func (c *deviceCapturer) Start(handler AudioHandler) error {
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
	c.handler = handler
	if err := c.dev.Start(); err != nil {
		c.handler = nil
		return fmt.Errorf("start capture device: %w", err)
	}
	c.running = true
	return nil
}

func (c *deviceCapturer) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.handler = nil
	c.mu.Unlock()

	// Uninit stops the device and waits for the callback to return.
	c.dev.Uninit()
	err := c.ctx.Uninit()
	c.ctx.Free()
	return err
}

func (c *deviceCapturer) onData(_, input []byte, _ uint32) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil || len(input) < 4 {
		return
	}

	samples := make([]float32, len(input)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}
	h(samples)
}
