package session

import (
	"errors"
	"fmt"
)

// Reason says why a claim was rejected.
type Reason string

const (
	ReasonFull    Reason = "FULL"
	ReasonTaken   Reason = "TAKEN"
	ReasonInvalid Reason = "INVALID"
)

// RejectedError is returned when a name cannot be claimed. Two RejectedErrors
// match under errors.Is when their reasons are equal.
type RejectedError struct {
	Reason Reason
	Name   string
}

func (e *RejectedError) Error() string {
	switch e.Reason {
	case ReasonFull:
		return "room is full"
	case ReasonTaken:
		return fmt.Sprintf("name %q is already taken", e.Name)
	default:
		return fmt.Sprintf("invalid name %q", e.Name)
	}
}

func (e *RejectedError) Is(target error) bool {
	t, ok := target.(*RejectedError)
	return ok && t.Reason == e.Reason
}

var (
	ErrRoomFull    = &RejectedError{Reason: ReasonFull}
	ErrNameTaken   = &RejectedError{Reason: ReasonTaken}
	ErrInvalidName = &RejectedError{Reason: ReasonInvalid}
)

// Reasons an inbound event was dropped. None of them are reported to clients.
var (
	ErrUnbound          = errors.New("connection has no bound identity")
	ErrRoomNotFull      = errors.New("room is not full")
	ErrNoPeer           = errors.New("no peer connection to deliver to")
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed chat payload")
	ErrEmptyMessage     = errors.New("empty chat message")
	ErrMessageTooLong   = errors.New("chat message too long")
)

// RejectionReason extracts the claim rejection reason from err, if any.
func RejectionReason(err error) (Reason, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason, true
	}
	return "", false
}
