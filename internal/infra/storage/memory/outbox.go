package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "rentspace/internal/app/outbox"
	infraoutbox "rentspace/internal/infra/outbox"
)

type outboxItem struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	next      time.Time
	lastError string
}

// Outbox keeps committed event records until the relay worker publishes them.
type Outbox struct {
	mu    sync.Mutex
	items []*outboxItem
	wake  chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{wake: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, &outboxItem{record: record, state: infraoutbox.StateNew, next: time.Now().UTC()})
	return nil
}

// Flush wakes the relay without waiting for its next poll.
func (o *Outbox) Flush(ctx context.Context) error {
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func (o *Outbox) Wake() <-chan struct{} { return o.wake }

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, it := range o.items {
		if (it.state == infraoutbox.StateNew || it.state == infraoutbox.StateFailed) && !it.next.After(now) {
			it.state = infraoutbox.StateClaimed
			return &infraoutbox.Message{
				ID:         it.record.ID,
				Name:       it.record.Name,
				Payload:    it.record.Payload,
				OccurredAt: it.record.OccurredAt,
				Aggregate:  it.record.Aggregate,
				Headers:    it.record.Headers,
				Attempts:   it.attempts,
			}, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.items[:0]
	for _, it := range o.items {
		if it.record.ID != id {
			kept = append(kept, it)
		}
	}
	o.items = kept
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, it := range o.items {
		if it.record.ID == id {
			it.state = infraoutbox.StateFailed
			it.attempts++
			it.next = next
			it.lastError = errMsg
		}
	}
	return nil
}

// Pending returns records not yet relayed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.items))
	for _, it := range o.items {
		out = append(out, it.record)
	}
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Store = (*Outbox)(nil)
