// Package lifecycle is the service layer above the store. It validates input,
// runs every mutation in one transaction, and emits change events only after
// the transaction commits.
package lifecycle

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mschirtzinger/taskboard/internal/anchor"
	"github.com/mschirtzinger/taskboard/internal/events"
	"github.com/mschirtzinger/taskboard/internal/store"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// AnchorConfigSource supplies the current anchor configuration snapshot.
// *anchor.Loader satisfies it.
type AnchorConfigSource interface {
	Current() anchor.Config
}

// Service is the task board's business logic.
type Service struct {
	db       *store.DB
	notifier events.Notifier
	resolver *anchor.Resolver
	anchors  AnchorConfigSource
	logger   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets where change events go.
func WithNotifier(n events.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithResolver sets the anchor resolver used for enrichment.
func WithResolver(r *anchor.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithAnchorConfig sets the anchor configuration source.
func WithAnchorConfig(src AnchorConfigSource) Option {
	return func(s *Service) {
		s.anchors = src
	}
}

// WithLogger sets the logger storage faults are reported to.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New returns a Service over db.
func New(db *store.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		notifier: events.Nop,
		anchors:  anchor.Static(anchor.Config{}),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = anchor.NewResolver("")
	}
	return s
}

// AnchorConfig returns the anchor configuration currently in effect.
func (s *Service) AnchorConfig() anchor.Config {
	return s.anchors.Current()
}

func (s *Service) emit(t events.Type, data any) {
	s.notifier.Notify(events.Event{Type: t, Data: data})
}

// fault logs err when it is a storage fault and returns it unchanged.
// Validation and not-found outcomes pass through silently.
func (s *Service) fault(op string, err error) error {
	if err != nil && !types.IsClientError(err) {
		s.logger.Error().Err(err).Str("op", op).Msg("storage fault")
	}
	return err
}

// requireProject fails with a validation error when id names no project.
func requireProject(ctx context.Context, tx *store.Tx, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := tx.Projects.Exists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewValidationError("project_id", "project %d does not exist", *id)
	}
	return nil
}

func validateIDs(ids []int64) error {
	if len(ids) == 0 {
		return types.NewValidationError("ids", "ids must be a non-empty array")
	}
	for _, id := range ids {
		if id <= 0 {
			return types.NewValidationError("ids", "invalid task id %d", id)
		}
	}
	return nil
}
