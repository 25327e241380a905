package postgres

import (
	"context"
	"errors"

	"papyrus/internal/core/tx"
	"papyrus/pkg/logger"
)

// Compile-time check that SessionFactory implements tx.Manager.
var _ tx.Manager = (*SessionFactory)(nil)

// SessionFactory builds unit-of-work sessions sharing one pool, one installed
// filter set and one invalidation notifier. One factory per process; one
// session per logical business operation.
type SessionFactory struct {
	db       DB
	filters  *FilterSet
	notifier ChangeNotifier
	trail    *AuditTrail
	log      *logger.Logger
}

// FactoryOption configures a SessionFactory.
type FactoryOption func(*SessionFactory)

// WithNotifier wires the post-commit cache-invalidation notifier.
func WithNotifier(n ChangeNotifier) FactoryOption {
	return func(f *SessionFactory) { f.notifier = n }
}

// WithAuditTrail wires the audit trail writer.
func WithAuditTrail(t *AuditTrail) FactoryOption {
	return func(f *SessionFactory) { f.trail = t }
}

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) FactoryOption {
	return func(f *SessionFactory) { f.log = l }
}

// NewSessionFactory creates a session factory.
func NewSessionFactory(db DB, filters *FilterSet, opts ...FactoryOption) *SessionFactory {
	f := &SessionFactory{
		db:      db,
		filters: filters,
		log:     logger.Default().WithComponent("storage"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewSession creates a fresh unit-of-work session.
func (f *SessionFactory) NewSession() *Session {
	return &Session{
		db:       f.db,
		log:      f.log,
		filters:  f.filters,
		notifier: f.notifier,
		trail:    f.trail,
		repos:    make(map[string]any),
	}
}

// RunInTransaction executes fn inside a dedicated session with an explicit
// transaction: staged changes are saved and committed when fn succeeds,
// rolled back when it fails. The session travels in the context.
func (f *SessionFactory) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s := f.NewSession()
	defer s.Close(context.Background())

	if err := s.Begin(ctx); err != nil {
		return err
	}

	ctx = WithSession(ctx, s)
	if err := fn(ctx); err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, ErrNoTransaction) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if _, err := s.SaveChanges(ctx); err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, ErrNoTransaction) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	return s.Commit(ctx)
}

// --- session-in-context helpers ---

type sessionKey struct{}

// WithSession adds the session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session from the context, or nil.
func SessionFrom(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s
	}
	return nil
}

// MustSession returns the session from the context, panicking when absent.
// Absence indicates a programming error (missing RunInTransaction wrapper).
func MustSession(ctx context.Context) *Session {
	s := SessionFrom(ctx)
	if s == nil {
		panic("no unit-of-work session in context")
	}
	return s
}
