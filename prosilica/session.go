package prosilica

import (
	"time"

	"github.com/google/uuid"

	"github.com/areaDetector/ADProsilica/camera"
)

// Unbounded is the Remaining count of a continuous acquisition
const Unbounded = -1

// Session tracks one acquisition from start to its last frame
type Session struct {
	// ID distinguishes acquisitions in logs
	ID uuid.UUID

	Mode  camera.ImageMode
	State camera.DetectorState

	// Remaining is the number of frames still expected, Unbounded for continuous
	Remaining int

	Started time.Time
}

// Start moves the session from Idle to Acquiring.  numImages below one is treated as one.
func (s *Session) Start(mode camera.ImageMode, numImages int) error {
	if s.State == camera.Acquiring {
		return ErrAlreadyAcquiring
	}
	switch mode {
	case camera.Single:
		s.Remaining = 1
	case camera.Multiple:
		if numImages < 1 {
			numImages = 1
		}
		s.Remaining = numImages
	case camera.Continuous:
		s.Remaining = Unbounded
	default:
		return ErrOutOfRange
	}
	s.ID = uuid.New()
	s.Mode = mode
	s.State = camera.Acquiring
	s.Started = time.Now()
	return nil
}

// Complete counts a successful frame and reports if it finished the acquisition
func (s *Session) Complete() bool {
	if s.State != camera.Acquiring || s.Remaining <= 0 {
		return false
	}
	s.Remaining--
	if s.Remaining == 0 {
		s.State = camera.Idle
		return true
	}
	return false
}

// Stop moves the session to Idle
func (s *Session) Stop() {
	s.State = camera.Idle
	s.Remaining = 0
}

// Acquiring reports if the session is running
func (s Session) Acquiring() bool {
	return s.State == camera.Acquiring
}
