package queue

import (
	"sort"
	"sync"
	"time"
)

// RetrySync is a member whose suspension sync failed and is due for another try.
type RetrySync struct {
	MemberID   string
	LastError  string
	RetryAt    time.Time
	RetryCount int
	MaxRetries int
}

// Exhausted reports whether the entry has used all of its retries.
func (r *RetrySync) Exhausted() bool {
	return r.RetryCount >= r.MaxRetries
}

// Queue holds at most one pending entry per member.
type Queue struct {
	items map[string]*RetrySync
	mu    sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		items: make(map[string]*RetrySync),
	}
}

// Enqueue adds req, replacing an earlier entry for the same member.
func (q *Queue) Enqueue(req *RetrySync) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[req.MemberID] = req
}

// Remove drops the member's entry, if any.
func (q *Queue) Remove(memberID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, memberID)
}

// Get returns the member's pending entry.
func (q *Queue) Get(memberID string) (*RetrySync, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	req, ok := q.items[memberID]
	return req, ok
}

// DequeueDue removes and returns every entry whose retry time is not after now,
// earliest first.
func (q *Queue) DequeueDue(now time.Time) []*RetrySync {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*RetrySync
	for memberID, req := range q.items {
		if !req.RetryAt.After(now) {
			due = append(due, req)
			delete(q.items, memberID)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].RetryAt.Before(due[j].RetryAt)
	})
	return due
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) GetAll() []*RetrySync {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]*RetrySync, 0, len(q.items))
	for _, req := range q.items {
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].MemberID < result[j].MemberID
	})
	return result
}
