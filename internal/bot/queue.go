package bot

import (
	"context"

	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

// mailbox holds the events of one user that arrived while an earlier event
// of the same user was still being handled.
type mailbox struct {
	pending []Event
}

func (m *mailbox) push(ev Event) {
	m.pending = append(m.pending, ev)
}

func (m *mailbox) popOldest() (Event, bool) {
	if len(m.pending) == 0 {
		return Event{}, false
	}
	ev := m.pending[0]
	m.pending[0] = Event{}
	m.pending = m.pending[1:]
	return ev, true
}

// dispatch hands ev to the user's worker, starting one if the user has none.
// A user's events are handled in arrival order; different users run in
// parallel. The worker exits once its mailbox is empty.
func (b *Bot) dispatch(ctx context.Context, ev Event) {
	b.queueMu.Lock()
	if mb, busy := b.queues[ev.UserID]; busy {
		mb.push(ev)
		b.queueMu.Unlock()
		return
	}
	b.queues[ev.UserID] = &mailbox{}
	b.queueMu.Unlock()

	b.wg.Add(1)
	go b.drain(ctx, ev.UserID, ev)
}

func (b *Bot) drain(ctx context.Context, userID models.UserID, ev Event) {
	defer b.wg.Done()

	for {
		b.Handle(ctx, ev)

		b.queueMu.Lock()
		mb := b.queues[userID]
		if ctx.Err() != nil && len(mb.pending) > 0 {
			b.logger.Debug(ctx, "dropping queued events", "user_id", userID, "count", len(mb.pending))
			mb.pending = nil
		}
		next, ok := mb.popOldest()
		if !ok {
			delete(b.queues, userID)
			b.queueMu.Unlock()
			return
		}
		b.queueMu.Unlock()
		ev = next
	}
}
