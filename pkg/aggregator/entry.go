package aggregator

import (
	"sort"
	"time"

	"carelink-chat/pkg/client"

	"github.com/google/uuid"
)

// Entry is one transcript line: either Pending or Confirmed.
type Entry interface {
	isEntry()
}

// Pending is a locally composed message awaiting the server's response.
// TempID doubles as the client_message_id sent with it.
type Pending struct {
	TempID    string
	Content   string
	CreatedAt time.Time
}

// Confirmed is a message the server has stored.
type Confirmed struct {
	Message client.Message
}

func (Pending) isEntry()   {}
func (Confirmed) isEntry() {}

func (p Pending) MatchesClientID(id *string) bool {
	return id != nil && *id == p.TempID
}

// transcript keeps confirmed messages ordered by created_at then id, with pending
// entries always last.
type transcript struct {
	confirmed []client.Message
	pending   []Pending
}

func (t *transcript) reset() {
	t.confirmed = nil
	t.pending = nil
}

func (t *transcript) has(id uuid.UUID) bool {
	for _, m := range t.confirmed {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (t *transcript) addPending(p Pending) {
	t.pending = append(t.pending, p)
}

func (t *transcript) removePending(tempID string) bool {
	for i, p := range t.pending {
		if p.TempID == tempID {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (t *transcript) remove(id uuid.UUID) bool {
	for i, m := range t.confirmed {
		if m.ID == id {
			t.confirmed = append(t.confirmed[:i], t.confirmed[i+1:]...)
			return true
		}
	}
	return false
}

// merge inserts or replaces messages by id and drops pending entries they confirm.
// It returns the messages that were not present before.
func (t *transcript) merge(msgs []client.Message) []client.Message {
	index := make(map[uuid.UUID]int, len(t.confirmed))
	for i, m := range t.confirmed {
		index[m.ID] = i
	}
	var added []client.Message
	for _, m := range msgs {
		if i, ok := index[m.ID]; ok {
			t.confirmed[i] = m
			continue
		}
		index[m.ID] = len(t.confirmed)
		t.confirmed = append(t.confirmed, m)
		added = append(added, m)
		if m.ClientMessageID != nil {
			t.removePending(*m.ClientMessageID)
		}
	}
	sort.SliceStable(t.confirmed, func(i, j int) bool {
		a, b := t.confirmed[i], t.confirmed[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return added
}

func (t *transcript) entries() []Entry {
	out := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, m := range t.confirmed {
		out = append(out, Confirmed{Message: m})
	}
	for _, p := range t.pending {
		out = append(out, p)
	}
	return out
}
