package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/queue"
	"github.com/cbodonnell/dropfour/pkg/repositories"
	"github.com/cbodonnell/dropfour/pkg/repositories/models"
)

// LifecycleEvent is one analytics event published by the live engine.
type LifecycleEvent struct {
	Type      string
	SessionID string
	Timestamp time.Time
	Data      interface{}
}

// LifecycleEventWorker periodically drains the event queue and records the
// events. Publication is fire-and-forget: errors are logged and the events
// dropped.
type LifecycleEventWorker struct {
	repository repositories.Repository
	eventQueue queue.Queue
	interval   time.Duration
}

// NewLifecycleEventWorkerOptions contains options for creating a new
// LifecycleEventWorker.
type NewLifecycleEventWorkerOptions struct {
	Repository repositories.Repository
	EventQueue queue.Queue
	Interval   time.Duration
}

func NewLifecycleEventWorker(opts NewLifecycleEventWorkerOptions) *LifecycleEventWorker {
	return &LifecycleEventWorker{
		repository: opts.Repository,
		eventQueue: opts.EventQueue,
		interval:   opts.Interval,
	}
}

func (w *LifecycleEventWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *LifecycleEventWorker) drain(ctx context.Context) {
	pending, err := w.eventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read lifecycle events: %v", err)
		return
	}

	for _, item := range pending {
		event, ok := item.(*LifecycleEvent)
		if !ok {
			log.Error("Unexpected item in event queue: %T", item)
			continue
		}
		w.record(ctx, event)
	}
}

func (w *LifecycleEventWorker) record(ctx context.Context, event *LifecycleEvent) {
	var data json.RawMessage
	if event.Data != nil {
		b, err := json.Marshal(event.Data)
		if err != nil {
			log.Error("Failed to marshal %s event data: %v", event.Type, err)
			return
		}
		data = b
	}

	record := models.EventRecord{
		EventType: event.Type,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
		Data:      data,
	}
	if err := w.repository.SaveEvent(ctx, record); err != nil {
		log.Error("Failed to save %s event for session %s: %v", event.Type, event.SessionID, err)
		return
	}
	log.Trace("Recorded %s event for session %s", event.Type, event.SessionID)
}
