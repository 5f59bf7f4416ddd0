// Package media manages scoped access to capture hardware. A capture
// session is acquired for the duration of one user flow and every track it
// holds is released on every exit path, success or not.
package media

import (
	"errors"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrSessionClosed is returned when capturing on a closed session.
var ErrSessionClosed = errors.New("media: capture session closed")

// CameraFailureAlert is shown when the camera cannot be acquired.
const CameraFailureAlert = "无法启动摄像头，请检查权限。"

// Track is one live hardware stream inside a capture session.
type Track interface {
	Stop()
}

// Device acquires capture sessions from the host.
type Device interface {
	// Acquire opens the capture hardware and returns its live tracks.
	Acquire() ([]Track, error)
}

// Frame is one captured still, encoded as base64 JPEG data without a
// format prefix.
type Frame struct {
	MediaType string
	Data      string
}

// Capturer produces frames from an open device.
type Capturer interface {
	Capture(tracks []Track) (*Frame, error)
}

// Notifier surfaces acquisition failures to the user.
type Notifier interface {
	Alert(message string)
}

// CaptureSession owns the tracks of one camera acquisition. Close stops
// every track and is safe to call multiple times.
type CaptureSession struct {
	tracks   []Track
	capturer Capturer

	mu     sync.Mutex
	closed bool
}

// Controller hands out capture sessions lazily; the hardware is only
// touched when a flow actually opens the camera.
type Controller struct {
	device   Device
	capturer Capturer
	notifier Notifier
	logger   *log.Logger
}

// NewController wires a camera controller over the host device.
func NewController(device Device, capturer Capturer, notifier Notifier) *Controller {
	return &Controller{
		device:   device,
		capturer: capturer,
		notifier: notifier,
		logger:   log.NewWithOptions(os.Stderr, log.Options{Prefix: "media"}),
	}
}

// Open acquires the camera. On failure the user is alerted and no session
// is returned; there is nothing for the caller to clean up.
func (c *Controller) Open() (*CaptureSession, error) {
	tracks, err := c.device.Acquire()
	if err != nil {
		c.logger.Error("failed to acquire camera", "error", err)
		c.notifier.Alert(CameraFailureAlert)
		return nil, err
	}
	return &CaptureSession{tracks: tracks, capturer: c.capturer}, nil
}

// Capture grabs one frame. The session stays open; callers close it when
// the flow ends, whether or not a frame was taken.
func (s *CaptureSession) Capture() (*Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	tracks := s.tracks
	s.mu.Unlock()

	return s.capturer.Capture(tracks)
}

// Close stops every track. Subsequent calls are no-ops.
func (s *CaptureSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, t := range s.tracks {
		t.Stop()
	}
	s.tracks = nil
}
