package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueReplacesSameMember(t *testing.T) {
	q := NewQueue()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	q.Enqueue(&RetrySync{MemberID: "m1", RetryAt: now, RetryCount: 0, MaxRetries: 3})
	q.Enqueue(&RetrySync{MemberID: "m1", RetryAt: now.Add(time.Minute), RetryCount: 1, MaxRetries: 3})

	assert.Equal(t, 1, q.Size())
	req, ok := q.Get("m1")
	assert.True(t, ok)
	assert.Equal(t, 1, req.RetryCount)
}

func TestDequeueDueOnlyReturnsDueEntries(t *testing.T) {
	q := NewQueue()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	q.Enqueue(&RetrySync{MemberID: "later", RetryAt: now.Add(time.Hour)})
	q.Enqueue(&RetrySync{MemberID: "second", RetryAt: now})
	q.Enqueue(&RetrySync{MemberID: "first", RetryAt: now.Add(-time.Minute)})

	due := q.DequeueDue(now)

	assert.Len(t, due, 2)
	assert.Equal(t, "first", due[0].MemberID)
	assert.Equal(t, "second", due[1].MemberID)
	assert.Equal(t, 1, q.Size())

	_, ok := q.Get("later")
	assert.True(t, ok)
}

func TestRemoveAndGetAll(t *testing.T) {
	q := NewQueue()
	q.Enqueue(&RetrySync{MemberID: "b"})
	q.Enqueue(&RetrySync{MemberID: "a"})
	q.Enqueue(&RetrySync{MemberID: "c"})

	q.Remove("b")
	q.Remove("missing")

	all := q.GetAll()
	assert.Len(t, all, 2)
	assert.Equal(t, "a", all[0].MemberID)
	assert.Equal(t, "c", all[1].MemberID)
}

func TestExhausted(t *testing.T) {
	assert.False(t, (&RetrySync{RetryCount: 2, MaxRetries: 3}).Exhausted())
	assert.True(t, (&RetrySync{RetryCount: 3, MaxRetries: 3}).Exhausted())
}
