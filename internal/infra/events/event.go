package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the interface that all domain events must implement.
type Event interface {
	// EventID returns the unique identifier for this event instance.
	EventID() uuid.UUID

	// EventType returns the type name of the event (e.g., "TaskUpdated").
	EventType() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the task or preset that produced this event.
	AggregateID() uuid.UUID
}

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Aggregate uuid.UUID `json:"aggregate_id"`
}

func (e BaseEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) AggregateID() uuid.UUID { return e.Aggregate }

// NewBaseEvent stamps a new event of eventType for aggregateID.
func NewBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Aggregate: aggregateID,
	}
}

// Task event types.
const (
	TaskUpdatedType  = "TaskUpdated"
	TaskProgressType = "TaskProgress"
	TaskRemovedType  = "TaskRemoved"
)

// TaskUpdated is published whenever a task record changes. Payload is the task
// snapshot as the API renders it.
type TaskUpdated struct {
	BaseEvent
	Status  string `json:"status"`
	Payload any    `json:"task"`
}

// NewTaskUpdated creates a TaskUpdated event.
func NewTaskUpdated(taskID uuid.UUID, status string, payload any) *TaskUpdated {
	return &TaskUpdated{
		BaseEvent: NewBaseEvent(TaskUpdatedType, taskID),
		Status:    status,
		Payload:   payload,
	}
}

// TaskProgress is published when the progress store value of a task changes.
type TaskProgress struct {
	BaseEvent
	Progress int `json:"progress"`
}

// NewTaskProgress creates a TaskProgress event.
func NewTaskProgress(taskID uuid.UUID, progress int) *TaskProgress {
	return &TaskProgress{
		BaseEvent: NewBaseEvent(TaskProgressType, taskID),
		Progress:  progress,
	}
}

// TaskRemoved is published when a task record is deleted.
type TaskRemoved struct {
	BaseEvent
}

// NewTaskRemoved creates a TaskRemoved event.
func NewTaskRemoved(taskID uuid.UUID) *TaskRemoved {
	return &TaskRemoved{BaseEvent: NewBaseEvent(TaskRemovedType, taskID)}
}
