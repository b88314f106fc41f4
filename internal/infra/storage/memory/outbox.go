package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	appoutbox "dogshare/internal/app/outbox"
	infraoutbox "dogshare/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxEntry struct {
	doc infraoutbox.EventDocument
}

// Outbox keeps events in memory and serves them to the relay worker the same
// way the mongo store does.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	o.entries = append(o.entries, &outboxEntry{doc: infraoutbox.EventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     slices.Clone(record.Payload),
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     cloneHeaders(record.Headers),
		State:       stateNew,
		NextAttempt: now,
	}})
	return nil
}

// Flush drops records the relay already delivered.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = slices.DeleteFunc(o.entries, func(e *outboxEntry) bool {
		return e.doc.State == stateSent
	})
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	for _, e := range o.entries {
		if e.doc.State != stateNew && e.doc.State != stateFailed {
			continue
		}
		if e.doc.NextAttempt.After(now) {
			continue
		}
		e.doc.State = stateClaimed
		e.doc.ClaimedBy = workerID
		e.doc.ClaimedAt = now
		doc := e.doc
		doc.Headers = cloneHeaders(e.doc.Headers)
		return &doc, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.doc.State = stateSent
		e.doc.SentAt = o.now().UTC()
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.doc.State = stateFailed
		e.doc.NextAttempt = next
		e.doc.LastError = errMsg
		e.doc.Attempts++
	}
	return nil
}

// Records returns a snapshot of everything not yet flushed.
func (o *Outbox) Records() []infraoutbox.EventDocument {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]infraoutbox.EventDocument, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.doc)
	}
	return out
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, e := range o.entries {
		if e.doc.ID == id {
			return e
		}
	}
	return nil
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

var (
	_ appoutbox.Outbox   = (*Outbox)(nil)
	_ infraoutbox.Source = (*Outbox)(nil)
)
