// Package store provides storage backends for BrandOS sessions.
//
// Only the persisted subset of a session (models.SessionRecord) is stored. It includes an
// in-memory store for tests and ephemeral runs, an SQLite store and a PostgreSQL store.
package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/BrandOS/internal/models"
)

// Store persists session records.
type Store interface {
	// SaveSession inserts or replaces the record for rec.SessionID
	SaveSession(ctx context.Context, rec models.SessionRecord) error
	// GetSession returns the record for id, or nil when none exists
	GetSession(ctx context.Context, id string) (*models.SessionRecord, error)
	// ListSessions returns every record, most recently updated first
	ListSessions(ctx context.Context) ([]models.SessionRecord, error)
	Close() error
}

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres" for URLs and
// key=value connection strings, "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "=") && (strings.Contains(dsn, "host=") || strings.Contains(dsn, "user=") || strings.Contains(dsn, "dbname=")) {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps records in a map. It is safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionRecord
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.SessionRecord)}
}

func (s *InMemoryStore) SaveSession(_ context.Context, rec models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.sessions[rec.SessionID]; ok && !existing.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.QuestionnaireData = copyAnswers(rec.QuestionnaireData)
	s.sessions[rec.SessionID] = rec
	slog.Debug("InMemoryStore SaveSession succeeded", "sessionID", rec.SessionID, "phase", rec.Phase)
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	rec.QuestionnaireData = copyAnswers(rec.QuestionnaireData)
	return &rec, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context) ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		rec.QuestionnaireData = copyAnswers(rec.QuestionnaireData)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func copyAnswers(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
