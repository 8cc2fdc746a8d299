package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutboxEvent_Due(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := New("message.new", "conversation", "c1", []byte(`{}`), now)

	assert.Equal(t, StatusPending, e.Status)
	assert.True(t, e.Due(now))
	assert.False(t, e.Due(now.Add(-time.Millisecond)))

	e.RetryCount = 3
	assert.True(t, e.Exhausted(3))
	assert.False(t, e.Exhausted(4))
}
