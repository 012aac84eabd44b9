// Package notify fans checklist changes out to other users of the same deal.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/fentz26/dealflow/internal/models"
)

// Event types.
const (
	EventChecklistCreated = "checklist.created"
	EventTaskCreated      = "task.created"
	EventTaskUpdated      = "task.updated"
	EventTaskDeleted      = "task.deleted"
	EventOverdue          = "overdue"
)

// Event is published on a deal's channel after a change.
type Event struct {
	Type      string            `json:"type"`
	DealID    string            `json:"deal_id"`
	TaskID    string            `json:"task_id,omitempty"`
	Status    models.TaskStatus `json:"status,omitempty"`
	Version   int64             `json:"version,omitempty"`
	Count     int               `json:"count,omitempty"`
	TaskIDs   []string          `json:"task_ids,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher delivers events to subscribers of a deal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
