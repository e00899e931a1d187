// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/blackcard-ai/concierge/internal/domain"
)

// ErrNotFound is returned by handlers when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// UserStore persists client profiles.
type UserStore interface {
	// GetUser retrieves a user by ID. Returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// ListClients returns clients assigned to trainerID, or all clients when trainerID is empty.
	ListClients(ctx context.Context, trainerID string) ([]*domain.User, error)
}

// EventStore is the append-only event log.
type EventStore interface {
	// AppendEvent stores an event and returns its ID.
	AppendEvent(ctx context.Context, event *domain.EventLog) (int64, error)

	// LatestEvent returns the newest event of eventType for a user. Returns nil, nil when absent.
	LatestEvent(ctx context.Context, userID, eventType string) (*domain.EventLog, error)

	// ListEvents returns the newest events first, optionally restricted to userIDs.
	ListEvents(ctx context.Context, limit int, userIDs ...string) ([]*domain.EventLog, error)

	// DeleteEventsBefore removes events created before cutoff.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CatalogStore is the exercise catalog.
type CatalogStore interface {
	// QueryExercises returns exercises matching filter in catalog order.
	QueryExercises(ctx context.Context, filter domain.ExerciseFilter) ([]domain.Exercise, error)

	// UpsertExercise inserts or updates an exercise keyed by name.
	UpsertExercise(ctx context.Context, exercise *domain.Exercise) error
}

// MetricStore persists performance metrics.
type MetricStore interface {
	InsertMetric(ctx context.Context, metric *domain.PerformanceMetric) error
	ListMetrics(ctx context.Context, userID, category string) ([]*domain.PerformanceMetric, error)
}

// ChunkStore persists knowledge base chunks and their embeddings.
type ChunkStore interface {
	// ReplaceChunks deletes existing chunks for source and inserts the given ones.
	ReplaceChunks(ctx context.Context, source string, chunks []domain.DocumentChunk) error

	// ListChunks returns chunks sharing at least one of tags, or all chunks when tags is empty.
	ListChunks(ctx context.Context, tags []string) ([]domain.DocumentChunk, error)
}

// Repository bundles every store the service uses.
type Repository interface {
	UserStore
	EventStore
	CatalogStore
	MetricStore
	ChunkStore

	// DeleteUserData wipes a user's events and metrics and resets the profile.
	DeleteUserData(ctx context.Context, userID string) (eventsDeleted int64, metricsDeleted int64, err error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
