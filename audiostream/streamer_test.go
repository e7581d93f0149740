package audiostream

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.aimuz.me/signal/audiocapture"
	"go.aimuz.me/signal/clip"
)

// fakeTrack feeds a constant tone every few milliseconds once started.
type fakeTrack struct {
	rate     int
	startErr error

	mu      sync.Mutex
	handler audiocapture.AudioHandler
	stops   atomic.Int32
	quit    chan struct{}
}

func newFakeTrack(rate int) *fakeTrack {
	return &fakeTrack{rate: rate, quit: make(chan struct{})}
}

func (f *fakeTrack) SampleRate() int { return f.rate }
func (f *fakeTrack) Channels() int   { return 1 }

func (f *fakeTrack) Start(h audiocapture.AudioHandler) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()

	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		chunk := make([]float32, f.rate/500)
		for i := range chunk {
			chunk[i] = 0.5
		}
		for {
			select {
			case <-f.quit:
				return
			case <-ticker.C:
				f.mu.Lock()
				h := f.handler
				f.mu.Unlock()
				if h != nil {
					h(chunk)
				}
			}
		}
	}()
	return nil
}

func (f *fakeTrack) Stop() error {
	if f.stops.Add(1) == 1 {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
		close(f.quit)
	}
	return nil
}

type fakeSender struct {
	open  atomic.Bool
	mu    sync.Mutex
	clips [][]byte
	err   error
}

func newFakeSender(open bool) *fakeSender {
	s := &fakeSender{}
	s.open.Store(open)
	return s
}

func (s *fakeSender) IsOpen() bool { return s.open.Load() }

func (s *fakeSender) SendBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.clips = append(s.clips, data)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

func wavConfig(d time.Duration) Config {
	return Config{ClipDuration: d, Formats: []string{clip.MIMEWAV}}
}

func waitDone(t *testing.T, s *Streamer) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("streamer loop did not exit")
	}
}

func TestStreamerSendsSelfContainedClips(t *testing.T) {
	track := newFakeTrack(8000)
	sender := newFakeSender(true)
	s, err := New(track, sender, wavConfig(30*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, clip.MIMEWAV, s.MIMEType())

	var observed atomic.Int32
	s.OnClip(func(c Clip) {
		observed.Add(1)
		assert.Equal(t, clip.MIMEWAV, c.MIMEType)
		assert.True(t, c.Voiced, "tone not detected as voice")
	})

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrStarted)

	require.Eventually(t, func() bool { return sender.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Speaking())
	s.Stop()
	waitDone(t, s)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	for i, c := range sender.clips {
		assert.True(t, bytes.HasPrefix(c, []byte("RIFF")), "clip %d has no header", i)
	}
	assert.EqualValues(t, len(sender.clips), observed.Load())
	assert.InDelta(t, 0.5, s.Level(), 1e-6)
	assert.Equal(t, int32(1), track.stops.Load())
}

func TestStreamerDropsWhileTransportClosed(t *testing.T) {
	track := newFakeTrack(8000)
	sender := newFakeSender(false)
	s, err := New(track, sender, wavConfig(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, sender.count())

	sender.open.Store(true)
	require.Eventually(t, func() bool { return sender.count() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStreamerSurvivesSendErrors(t *testing.T) {
	track := newFakeTrack(8000)
	sender := newFakeSender(true)
	sender.err = errors.New("broken pipe")
	s, err := New(track, sender, wavConfig(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	require.Eventually(t, func() bool { return sender.count() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStreamerHaltDiscardsInFlightClip(t *testing.T) {
	track := newFakeTrack(8000)
	sender := newFakeSender(true)
	s, err := New(track, sender, wavConfig(100*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return sender.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// Halt in the middle of the next segment.
	time.Sleep(40 * time.Millisecond)
	s.Halt()
	sentAtHalt := sender.count()

	waitDone(t, s)
	assert.Equal(t, sentAtHalt, sender.count(), "clip sent after halt")
	assert.Equal(t, int32(1), track.stops.Load(), "track not released")

	s.Stop()
	s.Halt()
	assert.Equal(t, int32(1), track.stops.Load())
}

func TestStreamerStopInterruptsSegment(t *testing.T) {
	track := newFakeTrack(8000)
	sender := newFakeSender(true)
	s, err := New(track, sender, wavConfig(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, sender.count())
	assert.Equal(t, int32(1), track.stops.Load())
}

func TestStreamerStopBeforeStart(t *testing.T) {
	s, err := New(newFakeTrack(8000), newFakeSender(true), wavConfig(0))
	require.NoError(t, err)
	s.Stop()
	assert.Equal(t, DefaultClipDuration, s.period)
}

func TestStreamerNoSupportedFormat(t *testing.T) {
	_, err := New(newFakeTrack(44100), newFakeSender(true), Config{Formats: []string{clip.MIMEOggOpus}})
	assert.ErrorIs(t, err, clip.ErrNoSupportedFormat)
}

func TestStreamerTrackStartFailure(t *testing.T) {
	track := newFakeTrack(8000)
	track.startErr = errors.New("device busy")
	s, err := New(track, newFakeSender(true), wavConfig(time.Second))
	require.NoError(t, err)

	require.Error(t, s.Start())
	waitDone(t, s)
	assert.Equal(t, int32(1), track.stops.Load())
	s.Stop()
}
