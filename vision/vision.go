// Package vision defines the camera and hand-landmark detector contracts used
// by gesture recognition.
package vision

import (
	"context"
	"errors"
	"time"
)

// ErrCameraUnavailable is returned when the camera cannot be opened.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Landmark is a normalized keypoint. Y grows downward.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand is the ordered set of 21 landmarks of one detected hand.
type Hand []Landmark

// HandLandmarkCount is the number of keypoints per hand.
const HandLandmarkCount = 21

// Frame is one video frame. Hands is filled by sources that detect
// landmarks out of process; Pixels may be empty for such sources.
type Frame struct {
	Timestamp time.Time
	Width     int
	Height    int
	Pixels    []byte
	Hands     []Hand
}

// Camera opens a video stream from the front-facing camera.
type Camera interface {
	Open(ctx context.Context) (FrameStream, error)
}

// FrameStream delivers frames at the device's native rate.
type FrameStream interface {
	Frames() <-chan Frame
	Close() error
}

// Detector finds hand landmarks in a frame. Init must complete before the
// first Detect.
type Detector interface {
	Init(ctx context.Context) error
	Detect(f Frame) ([]Hand, error)
}
