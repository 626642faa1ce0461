// Package apperror implements the stable error taxonomy of the event core:
// every fallible operation returns (or wraps) one of these kinds so a
// transport adapter can map it to a response status without inspecting
// error strings.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is one of the stable taxonomy strings from the specification. Kinds
// are never renamed once shipped — transport adapters and clients match on
// them directly.
type Kind string

const (
	KindRoomNotFound      Kind = "room_not_found"
	KindRoomClosed        Kind = "room_closed"
	KindEditionNotFound   Kind = "edition_not_found"
	KindChangeNotFound    Kind = "change_not_found"
	KindInvalidRoomTime   Kind = "invalid_room_time"
	KindInvalidEvent      Kind = "invalid_event"
	KindInvalidPayload    Kind = "invalid_payload"
	KindPayloadTooLarge   Kind = "payload_size_exceeded"
	KindTransientEvent    Kind = "transient_event_creation_failed"
	KindAccessDenied      Kind = "access_denied"
	KindAuthnFailed       Kind = "authentication_failed"
	KindDBQueryFailed     Kind = "db_query_failed"
	KindDBConnAcquisition Kind = "db_conn_acquisition_failed"
	KindRoomAdjustFailed  Kind = "room_adjust_task_failed"
	KindEditionCommitFail Kind = "edition_commit_task_failed"
	KindS3UploadFailed    Kind = "s3_upload_failed"
	KindNATSSubscribe     Kind = "nats_subscription_failed"
	KindNATSPublish       Kind = "nats_publish_failed"
	KindNATSHandling      Kind = "nats_message_handling_failed"
	KindInternalNATS      Kind = "internal_nats_error"
)

// httpStatus maps each kind to the HTTP-style status the spec pins it to.
var httpStatus = map[Kind]int{
	KindRoomNotFound:      404,
	KindRoomClosed:        404,
	KindEditionNotFound:   404,
	KindChangeNotFound:    404,
	KindInvalidRoomTime:   422,
	KindInvalidEvent:      422,
	KindInvalidPayload:    400,
	KindPayloadTooLarge:   413,
	KindTransientEvent:    422,
	KindAccessDenied:      403,
	KindAuthnFailed:       401,
	KindDBQueryFailed:     422,
	KindDBConnAcquisition: 503,
	KindRoomAdjustFailed:  422,
	KindEditionCommitFail: 422,
	KindS3UploadFailed:    422,
}

// Error is the typed envelope every core operation fails with.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind wrapping err (err may be nil).
func New(kind Kind, err error) *Error {
	status, ok := httpStatus[kind]
	if !ok {
		status = 500
	}
	return &Error{Kind: kind, Status: status, Err: err}
}

// Is reports whether err carries the given taxonomy kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
