package booking

import (
	"context"
)

// Locker serializes commands on one booking across goroutines or instances.
// unlock must be safe to call once the command finishes, whatever its outcome.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Recorder receives lifecycle events for metrics.
type Recorder interface {
	TransitionApplied(from, to Status, actor ActorType)
	PaymentApplied(duplicate bool)
	CompletionRecorded(side Side, fully bool)
	OperationFailed(op string, kind string)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type nopRecorder struct{}

func (nopRecorder) TransitionApplied(Status, Status, ActorType) {}
func (nopRecorder) PaymentApplied(bool)                         {}
func (nopRecorder) CompletionRecorded(Side, bool)               {}
func (nopRecorder) OperationFailed(string, string)              {}
