package audit

import (
	"context"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/storetx"
	"doccontrol/pkg/requestcontext"
)

// Store persists audit events. Append is the only write.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, limit int) ([]Event, error)
	ListByDocument(ctx context.Context, documentID id.DocumentID, limit int) ([]Event, error)
}

// Recorder is the emitter interface injected into each component. Record is
// called within the same unit of work as the triggering mutation so the event
// commits or rolls back with it.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Service captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. The optional
// stream receives a best-effort copy of each committed event for off-process
// sinks; the store remains the record of truth.
type Service struct {
	store  Store
	stream chan<- Event
}

type Option func(*Service)

// WithStream attaches a channel drained by a background publisher. Sends
// never block: when the buffer is full the copy is dropped, not the write.
func WithStream(stream chan<- Event) Option {
	return func(s *Service) {
		s.stream = stream
	}
}

func NewService(store Store, opts ...Option) *Service {
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}
	if event.IPAddress == "" {
		event.IPAddress = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}

	if err := s.store.Append(ctx, event); err != nil {
		return err
	}

	// The stream carries committed events only: inside a unit of work the
	// offer waits for the commit, and a rollback drops it.
	if s.stream != nil {
		streamed := event
		storetx.AfterCommit(ctx, func() {
			select {
			case s.stream <- streamed:
			default:
			}
		})
	}
	return nil
}

// List returns events most recent first, bounded by limit.
func (s *Service) List(ctx context.Context, limit int) ([]Event, error) {
	return s.store.List(ctx, limit)
}

// ListByDocument returns a document's trail, most recent first.
func (s *Service) ListByDocument(ctx context.Context, documentID id.DocumentID, limit int) ([]Event, error) {
	return s.store.ListByDocument(ctx, documentID, limit)
}
