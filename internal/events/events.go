package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	// KindAccess is emitted for every RFID check decision.
	KindAccess Kind = "access"
	// KindKeycard is emitted when a keycard is issued or revoked.
	KindKeycard Kind = "keycard"
	// KindScan follows a scan handshake through its states.
	KindScan Kind = "scan"
	// KindDoorAllowed tells controllers to re-fetch a door's allowed list.
	KindDoorAllowed Kind = "door.allowed"
)

type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	At         time.Time `json:"at"`
	DoorID     int64     `json:"door_id,omitempty"`
	LockUserID int64     `json:"lock_user_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

func New(kind Kind, at time.Time, payload any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, At: at.UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	select {
	case r.ch <- ev:
	default:
	}
	return nil
}

// Drain returns every event recorded so far, oldest first.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
