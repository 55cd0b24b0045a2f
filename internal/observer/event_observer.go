package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

// SubmissionEvent describes one step of a widget submission lifecycle
type SubmissionEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	SubmissionID string                 `json:"submission_id,omitempty"`
	FileName     string                 `json:"file_name,omitempty"`
	Duration     time.Duration          `json:"duration,omitempty"`
	Success      bool                   `json:"success"`
	Err          error                  `json:"-"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of submission event
type EventType string

const (
	FileSelected        EventType = "file_selected"
	ValidationFailed    EventType = "validation_failed"
	SubmissionStarted   EventType = "submission_started"
	SubmissionSucceeded EventType = "submission_succeeded"
	SubmissionFailed    EventType = "submission_failed"
	SubmissionCancelled EventType = "submission_cancelled"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SubmissionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SubmissionEvent)
}

// ResultObserver receives the full response payload of every successful
// submission. It is called at most once per submission and never retried.
type ResultObserver interface {
	OnResult(ctx context.Context, prediction models.Prediction)
}

// ResultFunc adapts a plain function to ResultObserver.
type ResultFunc func(ctx context.Context, prediction models.Prediction)

// OnResult calls f.
func (f ResultFunc) OnResult(ctx context.Context, prediction models.Prediction) {
	f(ctx, prediction)
}

// NotifyResult calls obs in its own goroutine. A panicking observer is
// logged and otherwise ignored.
func NotifyResult(ctx context.Context, obs ResultObserver, prediction models.Prediction) {
	if obs == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("Result observer panicked")
			}
		}()
		obs.OnResult(ctx, prediction)
	}()
}

// LoggingObserver logs submission events. Failure causes are only ever
// visible here; the widget shows a generic message.
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles submission events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event SubmissionEvent) {
	fields := logrus.Fields{
		"event_type":    event.EventType,
		"submission_id": event.SubmissionID,
		"file":          event.FileName,
		"success":       event.Success,
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	if event.Err != nil {
		entry = entry.WithError(event.Err)
	}

	switch event.EventType {
	case FileSelected:
		entry.Debug("Image selected")
	case ValidationFailed:
		entry.Warn("Submission rejected before upload")
	case SubmissionStarted:
		entry.Info("Image submission started")
	case SubmissionSucceeded:
		entry.Info("Image classified")
	case SubmissionFailed:
		entry.Error("Image submission failed")
	case SubmissionCancelled:
		entry.Info("Image submission cancelled")
	default:
		entry.Info("Submission event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from submission events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalSubmissions    int64
	succeeded           int64
	failed              int64
	cancelled           int64
	validationFailures  int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles submission events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SubmissionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SubmissionStarted:
		o.totalSubmissions++
	case SubmissionSucceeded:
		o.succeeded++
		o.totalProcessingTime += event.Duration
	case SubmissionFailed:
		o.failed++
	case SubmissionCancelled:
		o.cancelled++
	case ValidationFailed:
		o.validationFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.succeeded > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.succeeded)
	}

	return map[string]interface{}{
		"total_submissions":     o.totalSubmissions,
		"succeeded":             o.succeeded,
		"failed":                o.failed,
		"cancelled":             o.cancelled,
		"validation_failures":   o.validationFailures,
		"total_processing_time": o.totalProcessingTime,
		"avg_processing_time":   avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SubmissionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logger.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
