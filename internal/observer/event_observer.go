package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionEvent represents a capture session event
type SessionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SessionID      string                 `json:"session_id"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of session event
type EventType string

const (
	// StateCommitted when the guidance state machine commits a new state
	StateCommitted EventType = "state_committed"
	// CountdownStarted when the capture countdown begins
	CountdownStarted EventType = "countdown_started"
	// CaptureTriggered when the countdown completes and a frame is taken
	CaptureTriggered EventType = "capture_triggered"
	// ProcessingCompleted when compositing finishes successfully
	ProcessingCompleted EventType = "processing_completed"
	// ProcessingFailed when compositing fails
	ProcessingFailed EventType = "processing_failed"
	// PhotoSaved when a finished photo lands in the library
	PhotoSaved EventType = "photo_saved"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SessionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SessionEvent)
}

// LoggingObserver logs session events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles session events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event SessionEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"session_id":      event.SessionID,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	if event.Metadata != nil {
		for k, v := range event.Metadata {
			fields[k] = v
		}
	}

	switch event.EventType {
	case StateCommitted:
		o.logger.WithFields(fields).Debug("Guidance state committed")
	case CountdownStarted:
		o.logger.WithFields(fields).Info("Capture countdown started")
	case CaptureTriggered:
		o.logger.WithFields(fields).Info("Capture triggered")
	case ProcessingCompleted:
		o.logger.WithFields(fields).Info("Photo processing completed")
	case ProcessingFailed:
		o.logger.WithFields(fields).Error("Photo processing failed")
	case PhotoSaved:
		o.logger.WithFields(fields).Info("Photo saved to library")
	default:
		o.logger.WithFields(fields).Info("Session event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from session events
type MetricsObserver struct {
	mu                  sync.RWMutex
	capturesTriggered   int64
	photosCompleted     int64
	photosFailed        int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles session events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SessionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case CaptureTriggered:
		o.capturesTriggered++
	case ProcessingCompleted:
		o.photosCompleted++
		o.totalProcessingTime += event.ProcessingTime
	case ProcessingFailed:
		o.photosFailed++
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
	if o.photosCompleted > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.photosCompleted)
	}

	return map[string]interface{}{
		"captures_triggered":    o.capturesTriggered,
		"photos_completed":      o.photosCompleted,
		"photos_failed":         o.photosFailed,
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
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SessionEvent) {
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
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
