package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed matches every decode or validation failure
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is reported for frames carrying an unrecognised tag
	ErrUnknownType = errors.New("unknown message type")
)

// DecodeError describes why a frame could not be turned into a message
type DecodeError struct {
	Type   string // tag, if it could be read
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decoding frame"
	if e.Type != "" {
		msg = fmt.Sprintf("decoding %s frame", e.Type)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match ErrMalformed
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(tag, format string, args ...any) *DecodeError {
	return &DecodeError{Type: tag, Reason: fmt.Sprintf(format, args...)}
}
