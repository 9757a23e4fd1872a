package pvapi

import (
	"errors"
	"fmt"
)

// Err is a status code returned by the camera SDK
type Err int

const (
	// Success is the benign status code
	Success Err = iota
	ErrCameraFault
	ErrInternalFault
	ErrBadHandle
	ErrBadParameter
	ErrBadSequence
	ErrNotFound
	ErrAccessDenied
	ErrUnplugged
	ErrInvalidSetup
	ErrResources
	ErrBandwidth
	ErrQueueFull
	ErrBufferTooSmall
	ErrCancelled
	ErrDataLost
	ErrDataMissing
	ErrTimeout
	ErrOutOfRange
	ErrWrongType
	ErrForbidden
	ErrUnavailable
	ErrFirewall
)

var (
	// ErrCodes maps status codes to their SDK names
	ErrCodes = map[Err]string{
		0:  "ePvErrSuccess",
		1:  "ePvErrCameraFault",
		2:  "ePvErrInternalFault",
		3:  "ePvErrBadHandle",
		4:  "ePvErrBadParameter",
		5:  "ePvErrBadSequence",
		6:  "ePvErrNotFound",
		7:  "ePvErrAccessDenied",
		8:  "ePvErrUnplugged",
		9:  "ePvErrInvalidSetup",
		10: "ePvErrResources",
		11: "ePvErrBandwidth",
		12: "ePvErrQueueFull",
		13: "ePvErrBufferTooSmall",
		14: "ePvErrCancelled",
		15: "ePvErrDataLost",
		16: "ePvErrDataMissing",
		17: "ePvErrTimeout",
		18: "ePvErrOutOfRange",
		19: "ePvErrWrongType",
		20: "ePvErrForbidden",
		21: "ePvErrUnavailable",
		22: "ePvErrFirewall",
	}

	// ErrUnknownAttribute is generated when an attribute is not in the Attributes table
	ErrUnknownAttribute = errors.New("attribute not found in Attributes table")
)

func (e Err) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", int(e), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", int(e))
}

// Code returns nil on the success code or an Err on any other
func Code(code int) error {
	if code == 0 {
		return nil
	}
	return Err(code)
}

// OpError carries the SDK procedure or attribute a status code came from
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap exposes the status code to errors.Is and errors.As
func (e *OpError) Unwrap() error {
	return e.Err
}

// Enrich tags err with the procedure that produced it.  nil stays nil.
func Enrich(err error, op string) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// IsCode reports if err carries the given status code
func IsCode(err error, code Err) bool {
	var e Err
	if errors.As(err, &e) {
		return e == code
	}
	return false
}
