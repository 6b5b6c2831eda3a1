// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the Kafka/channel topic all engine events are published to.
const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	// ExecutionStepAvailableEvent signals the worker that the execution has a
	// runnable current node. One visit is performed per event.
	ExecutionStepAvailableEvent EventType = "execution.step.available"
	ExecutionDeferredEvent      EventType = "execution.deferred"
	ExecutionCompletedEvent     EventType = "execution.completed"
	ExecutionFailedEvent        EventType = "execution.failed"
	ExecutionCancelledEvent     EventType = "execution.cancelled"

	// Lead membership events.
	LeadPausedEvent  EventType = "lead.paused"
	LeadResumedEvent EventType = "lead.resumed"
	LeadRemovedEvent EventType = "lead.removed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for an event.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type ExecutionRequested struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	LeadID      string         `json:"lead_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionRequested) GetType() EventType { return ExecutionRequestedEvent }

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	VersionID   string `json:"version_id"`
	LeadID      string `json:"lead_id"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionStepAvailable struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
}

func (e ExecutionStepAvailable) GetType() EventType { return ExecutionStepAvailableEvent }

type ExecutionDeferred struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	ResumeAt    time.Time `json:"resume_at"`
}

func (e ExecutionDeferred) GetType() EventType { return ExecutionDeferredEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	LeadID      string        `json:"lead_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	LeadID      string        `json:"lead_id"`
	NodeID      string        `json:"node_id,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	LeadID      string `json:"lead_id"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type LeadPaused struct {
	BaseEvent

	LeadID string `json:"lead_id"`
}

func (e LeadPaused) GetType() EventType { return LeadPausedEvent }

type LeadResumed struct {
	BaseEvent

	LeadID string `json:"lead_id"`
}

func (e LeadResumed) GetType() EventType { return LeadResumedEvent }

type LeadRemoved struct {
	BaseEvent

	LeadID string `json:"lead_id"`
}

func (e LeadRemoved) GetType() EventType { return LeadRemovedEvent }
