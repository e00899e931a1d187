package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcard-ai/concierge/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetUserMissingReturnsNil(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	user, err := s.GetUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestInMemoryStoreSharesOneDatabase(t *testing.T) {
	t.Parallel()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.Equal(t, 1, s.db.Stats().MaxOpenConnections)

	ctx := context.Background()
	_, err = Seed(ctx, s)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ListEvents(ctx, 10)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestUpsertUserRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID:               "client-1",
		TrainerID:            "coach-1",
		CoachStyle:           domain.PersonaEmpoweredMum,
		IsTraveling:          true,
		OverrideInstructions: "No jumping",
		Profile:              map[string]string{"name": "Sam"},
	}))

	got, err := s.GetUser(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.RoleClient, got.Role)
	assert.Equal(t, domain.PersonaEmpoweredMum, got.CoachStyle)
	assert.True(t, got.IsTraveling)
	assert.Equal(t, "No jumping", got.OverrideInstructions)
	assert.Equal(t, "Sam", got.DisplayName())

	got.IsTraveling = false
	got.CoachStyle = "unknown"
	require.NoError(t, s.UpsertUser(ctx, got))

	again, err := s.GetUser(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, again.IsTraveling)
	assert.Equal(t, domain.DefaultPersona, again.CoachStyle)

	clients, err := s.ListClients(ctx, "coach-1")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "client-1", clients[0].UserID)
}

func TestLatestEventPicksNewest(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, score := range []int{40, 80, 60} {
		_, err := s.AppendEvent(ctx, &domain.EventLog{
			UserID:    "client-1",
			EventType: domain.EventTypeWearable,
			Payload:   json.RawMessage(`{"sleep_score":` + itoa(score) + `}`),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	latest, err := s.LatestEvent(ctx, "client-1", domain.EventTypeWearable)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.JSONEq(t, `{"sleep_score":60}`, string(latest.Payload))

	none, err := s.LatestEvent(ctx, "client-1", domain.EventTypeVision)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListEventsAndRetention(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	_, err := s.AppendEvent(ctx, &domain.EventLog{UserID: "a", EventType: domain.EventTypeChat, CreatedAt: old})
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, &domain.EventLog{UserID: "b", EventType: domain.EventTypeChat})
	require.NoError(t, err)

	all, err := s.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].UserID)

	onlyA, err := s.ListEvents(ctx, 10, "a")
	require.NoError(t, err)
	require.Len(t, onlyA, 1)

	deleted := PurgeExpiredEvents(ctx, s, 24*time.Hour, time.Now())
	assert.Equal(t, int64(1), deleted)

	remaining, err := s.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b", remaining[0].UserID)
}

func TestQueryExercisesFilters(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, err := Seed(ctx, s)
	require.NoError(t, err)

	hyrox, err := s.QueryExercises(ctx, domain.ExerciseFilter{Category: "Hyrox", HyroxOnly: true})
	require.NoError(t, err)
	assert.Len(t, hyrox, 9)

	legs, err := s.QueryExercises(ctx, domain.ExerciseFilter{Category: "Strength", MuscleGroup: "Legs"})
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, []string{"Barbell", "Rack"}, legs[0].Equipment)

	none, err := s.QueryExercises(ctx, domain.ExerciseFilter{Category: "Yoga"})
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := s.QueryExercises(ctx, domain.ExerciseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 30)
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	first, err := Seed(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Users)
	assert.Equal(t, 3, first.Events)

	second, err := Seed(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, second.Users)
	assert.Zero(t, second.Events)

	all, err := s.QueryExercises(ctx, domain.ExerciseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 30)
}

func TestDeleteUserDataWipesHistory(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID: "client-1", CoachStyle: domain.PersonaBioOptimizer, IsTraveling: true, OverrideInstructions: "rest",
	}))
	_, err := s.AppendEvent(ctx, &domain.EventLog{UserID: "client-1", EventType: domain.EventTypeChat})
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, &domain.EventLog{UserID: "client-2", EventType: domain.EventTypeChat})
	require.NoError(t, err)
	require.NoError(t, s.InsertMetric(ctx, &domain.PerformanceMetric{
		ID: "m1", UserID: "client-1", Category: "strength", Name: "Deadlift 1RM", Value: 180, Unit: "kg",
		LoggedBy: "coach-1", Timestamp: time.Now(),
	}))

	events, metrics, err := s.DeleteUserData(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), events)
	assert.Equal(t, int64(1), metrics)

	user, err := s.GetUser(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPersona, user.CoachStyle)
	assert.False(t, user.IsTraveling)
	assert.Empty(t, user.OverrideInstructions)

	others, err := s.ListEvents(ctx, 10, "client-2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestMetricsFilterByCategory(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.InsertMetric(ctx, &domain.PerformanceMetric{
		ID: "m1", UserID: "u", Category: "strength", Name: "Squat", Value: 140, Unit: "kg", LoggedBy: "u", Timestamp: now.Add(-time.Hour),
	}))
	require.NoError(t, s.InsertMetric(ctx, &domain.PerformanceMetric{
		ID: "m2", UserID: "u", Category: "engine", Name: "2k Row", Value: 420, Unit: "s", LoggedBy: "u", Timestamp: now,
	}))

	all, err := s.ListMetrics(ctx, "u", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "m2", all[0].ID)

	strength, err := s.ListMetrics(ctx, "u", "strength")
	require.NoError(t, err)
	require.Len(t, strength, 1)
	assert.Equal(t, "Squat", strength[0].Name)
}

func TestReplaceChunksAndTagFilter(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, "recovery.md", []domain.DocumentChunk{
		{Content: "Sleep drives HRV.", Tags: []string{"recovery"}, Embedding: []float32{0.5, -1.25, 3}},
		{Content: "Deload weeks.", Tags: []string{"recovery", "programming"}, ChunkIndex: 1},
	}))
	require.NoError(t, s.ReplaceChunks(ctx, "hyrox.md", []domain.DocumentChunk{
		{Content: "Sled technique.", Tags: []string{"hyrox"}},
	}))

	recovery, err := s.ListChunks(ctx, []string{"recovery"})
	require.NoError(t, err)
	require.Len(t, recovery, 2)
	assert.Equal(t, []float32{0.5, -1.25, 3}, recovery[0].Embedding)
	assert.Nil(t, recovery[1].Embedding)

	require.NoError(t, s.ReplaceChunks(ctx, "recovery.md", []domain.DocumentChunk{
		{Content: "Replaced.", Tags: []string{"recovery"}},
	}))
	all, err := s.ListChunks(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestVectorEncoding(t *testing.T) {
	t.Parallel()
	v := []float32{1, 0, -0.5, 42.25}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, decodeVector([]byte{1, 2, 3}))
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
