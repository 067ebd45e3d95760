// Package notification provides the in-process notification center. Every
// pipeline failure and orphaned artifact surfaces here as a non-blocking
// notification; delivery to external services is best-effort via push.
package notification

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cattle-scans/backend/internal/logging"
)

// Type categorizes a notification.
type Type string

const (
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
	TypeSystem  Type = "system"
)

// Priority indicates how urgent a notification is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is a single user-visible event.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewNotification creates a notification with a fresh id and timestamp.
func NewNotification(typ Type, priority Priority, title, message string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithComponent tags the notification with the originating component.
func (n *Notification) WithComponent(component string) *Notification {
	n.Component = component
	return n
}

// WithMetadata attaches a metadata value.
func (n *Notification) WithMetadata(key string, value any) *Notification {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return n
}

// Service is the in-process notification center. It keeps a bounded list of
// recent notifications and fans new ones out to subscribers without ever
// blocking the producer.
type Service struct {
	mu          sync.RWMutex
	recent      []*Notification
	maxRecent   int
	subscribers map[chan *Notification]struct{}
	push        *PushSender
	logger      *slog.Logger
}

// NewService creates a notification service. push may be nil.
func NewService(maxRecent int, push *PushSender) *Service {
	if maxRecent <= 0 {
		maxRecent = 100
	}
	return &Service{
		maxRecent:   maxRecent,
		subscribers: make(map[chan *Notification]struct{}),
		push:        push,
		logger:      logging.ForService("notification"),
	}
}

// Notify records a notification and fans it out. Fan-out happens under the
// same mutex Unsubscribe closes channels under, so a send can never race a
// close. Sends never block, a full subscriber buffer drops the notification.
func (s *Service) Notify(n *Notification) {
	s.mu.Lock()
	s.recent = append(s.recent, n)
	if len(s.recent) > s.maxRecent {
		s.recent = s.recent[len(s.recent)-s.maxRecent:]
	}
	for ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			// Slow subscriber, drop rather than block the producer.
		}
	}
	s.mu.Unlock()

	s.logger.Info("notification",
		"type", n.Type,
		"priority", n.Priority,
		"title", n.Title,
		"component", n.Component)

	if s.push != nil {
		go s.push.Send(n)
	}
}

// Subscribe returns a channel receiving future notifications.
func (s *Service) Subscribe() chan *Notification {
	ch := make(chan *Notification, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel. Delete and close run
// under the same mutex Notify sends under.
func (s *Service) Unsubscribe(ch chan *Notification) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
	close(ch)
}

// Recent returns up to limit recent notifications, newest last.
func (s *Service) Recent(limit int) []*Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]*Notification, limit)
	copy(out, s.recent[len(s.recent)-limit:])
	return out
}
