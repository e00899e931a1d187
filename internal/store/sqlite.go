package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	appendMaxRetries = 3
	appendBaseDelay  = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode lets the feed/list readers run alongside event appends.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each connection to :memory: opens its own empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'client',
		trainer_id TEXT,
		coach_style TEXT NOT NULL DEFAULT 'hyrox_competitor',
		is_traveling INTEGER NOT NULL DEFAULT 0,
		override_instructions TEXT NOT NULL DEFAULT '',
		profile_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_trainer ON users(trainer_id);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		agent_decision TEXT,
		agent_message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_type ON events(user_id, event_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);

	CREATE TABLE IF NOT EXISTS exercises (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		muscle_group TEXT NOT NULL DEFAULT '',
		equipment_json TEXT NOT NULL DEFAULT '[]',
		is_hyrox_station INTEGER NOT NULL DEFAULT 0,
		unilateral INTEGER NOT NULL DEFAULT 0,
		video_url TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_exercises_category ON exercises(category);

	CREATE TABLE IF NOT EXISTS metrics (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		value REAL NOT NULL,
		unit TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		logged_by TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_user ON metrics(user_id, category, timestamp);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		embedding BLOB,
		chunk_index INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON document_chunks(source);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const userColumns = `user_id, email, role, trainer_id, coach_style, is_traveling,
	override_instructions, profile_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var email, trainerID, profileJSON sql.NullString
	var coachStyle string
	var createdAt, updatedAt int64

	if err := row.Scan(
		&user.UserID, &email, &user.Role, &trainerID, &coachStyle, &user.IsTraveling,
		&user.OverrideInstructions, &profileJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	user.Email = email.String
	user.TrainerID = trainerID.String
	user.CoachStyle = domain.CoachPersona(coachStyle)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	if profileJSON.Valid && profileJSON.String != "" {
		if err := json.Unmarshal([]byte(profileJSON.String), &user.Profile); err != nil {
			slog.Warn("Ignoring malformed profile_json", "user_id", user.UserID, "error", err)
		}
	}
	return &user, nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (` + userColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		email = excluded.email,
		role = excluded.role,
		trainer_id = excluded.trainer_id,
		coach_style = excluded.coach_style,
		is_traveling = excluded.is_traveling,
		override_instructions = excluded.override_instructions,
		profile_json = excluded.profile_json,
		updated_at = excluded.updated_at`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	if user.Role == "" {
		user.Role = domain.RoleClient
	}
	user.CoachStyle = user.CoachStyle.OrDefault()

	var profileJSON any
	if len(user.Profile) > 0 {
		data, err := json.Marshal(user.Profile)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		profileJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, nullIfEmpty(user.Email), user.Role, nullIfEmpty(user.TrainerID),
		string(user.CoachStyle), user.IsTraveling, user.OverrideInstructions, profileJSON,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ListClients returns clients, optionally restricted to one trainer.
func (s *SQLiteStore) ListClients(ctx context.Context, trainerID string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ?`
	args := []any{domain.RoleClient}
	if trainerID != "" {
		query += ` AND trainer_id = ?`
		args = append(args, trainerID)
	}
	query += ` ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer closeRows(rows, "clients")

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return users, nil
}

// AppendEvent stores an event and returns its ID. Busy database errors are
// retried with backoff since concurrent webhooks can collide on the writer.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.EventLog) (int64, error) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	var id int64
	err := shared.RetryOnConflict(ctx, "append_event", appendMaxRetries, appendBaseDelay, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO events (user_id, event_type, payload, agent_decision, agent_message, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nullIfEmpty(event.UserID), event.EventType, string(payload),
			nullIfEmpty(event.AgentDecision), nullIfEmpty(event.AgentMessage),
			event.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	event.ID = id
	return id, nil
}

const eventColumns = `id, user_id, event_type, payload, agent_decision, agent_message, created_at`

func scanEvent(row rowScanner) (*domain.EventLog, error) {
	var event domain.EventLog
	var userID, decision, message sql.NullString
	var payload string
	var createdAt int64

	if err := row.Scan(&event.ID, &userID, &event.EventType, &payload, &decision, &message, &createdAt); err != nil {
		return nil, err
	}
	event.UserID = userID.String
	event.Payload = json.RawMessage(payload)
	event.AgentDecision = decision.String
	event.AgentMessage = message.String
	event.CreatedAt = time.UnixMilli(createdAt)
	return &event, nil
}

// LatestEvent returns the newest event of a type for a user.
func (s *SQLiteStore) LatestEvent(ctx context.Context, userID, eventType string) (*domain.EventLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE user_id = ? AND event_type = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, userID, eventType)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan latest event: %w", err)
	}
	return event, nil
}

// ListEvents returns the newest events first.
func (s *SQLiteStore) ListEvents(ctx context.Context, limit int, userIDs ...string) ([]*domain.EventLog, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if len(userIDs) > 0 {
		query += ` WHERE user_id IN (` + placeholders(len(userIDs)) + `)`
		for _, id := range userIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer closeRows(rows, "events")

	var events []*domain.EventLog
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore removes events created before cutoff.
func (s *SQLiteStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return result.RowsAffected()
}

// QueryExercises returns exercises matching filter in catalog order.
func (s *SQLiteStore) QueryExercises(ctx context.Context, filter domain.ExerciseFilter) ([]domain.Exercise, error) {
	query := `SELECT id, name, category, muscle_group, equipment_json, is_hyrox_station, unilateral, video_url
		FROM exercises WHERE 1 = 1`
	var args []any
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.MuscleGroup != "" {
		query += ` AND muscle_group = ?`
		args = append(args, filter.MuscleGroup)
	}
	if filter.HyroxOnly {
		query += ` AND is_hyrox_station = 1`
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer closeRows(rows, "exercises")

	var exercises []domain.Exercise
	for rows.Next() {
		var ex domain.Exercise
		var equipmentJSON string
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.Category, &ex.MuscleGroup, &equipmentJSON,
			&ex.IsHyroxStation, &ex.Unilateral, &ex.VideoURL); err != nil {
			return nil, fmt.Errorf("scan exercise row: %w", err)
		}
		if err := json.Unmarshal([]byte(equipmentJSON), &ex.Equipment); err != nil {
			return nil, fmt.Errorf("decode equipment for %s: %w", ex.Name, err)
		}
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return exercises, nil
}

// UpsertExercise inserts or updates an exercise keyed by name.
func (s *SQLiteStore) UpsertExercise(ctx context.Context, ex *domain.Exercise) error {
	equipment := ex.Equipment
	if equipment == nil {
		equipment = []string{}
	}
	equipmentJSON, err := json.Marshal(equipment)
	if err != nil {
		return fmt.Errorf("marshal equipment: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exercises (name, category, muscle_group, equipment_json, is_hyrox_station, unilateral, video_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			category = excluded.category,
			muscle_group = excluded.muscle_group,
			equipment_json = excluded.equipment_json,
			is_hyrox_station = excluded.is_hyrox_station,
			unilateral = excluded.unilateral,
			video_url = excluded.video_url`,
		ex.Name, ex.Category, ex.MuscleGroup, string(equipmentJSON), ex.IsHyroxStation, ex.Unilateral, ex.VideoURL,
	)
	if err != nil {
		return fmt.Errorf("upsert exercise %s: %w", ex.Name, err)
	}
	return nil
}

// InsertMetric stores a performance metric.
func (s *SQLiteStore) InsertMetric(ctx context.Context, m *domain.PerformanceMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (id, user_id, category, name, value, unit, notes, logged_by, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Category, m.Name, m.Value, m.Unit, m.Notes, m.LoggedBy, m.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// ListMetrics returns a user's metrics newest first, optionally filtered by category.
func (s *SQLiteStore) ListMetrics(ctx context.Context, userID, category string) ([]*domain.PerformanceMetric, error) {
	query := `SELECT id, user_id, category, name, value, unit, notes, logged_by, timestamp
		FROM metrics WHERE user_id = ?`
	args := []any{userID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer closeRows(rows, "metrics")

	var metrics []*domain.PerformanceMetric
	for rows.Next() {
		var m domain.PerformanceMetric
		var ts int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Category, &m.Name, &m.Value, &m.Unit, &m.Notes, &m.LoggedBy, &ts); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts)
		metrics = append(metrics, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return metrics, nil
}

// DeleteUserData wipes a user's events and metrics and resets the profile.
func (s *SQLiteStore) DeleteUserData(ctx context.Context, userID string) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin wipe: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback wipe", "user_id", userID, "error", rbErr)
		}
	}()

	eventRes, err := tx.ExecContext(ctx, `DELETE FROM events WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete user events: %w", err)
	}
	eventRows, err := eventRes.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("user events rows affected: %w", err)
	}

	metricRes, err := tx.ExecContext(ctx, `DELETE FROM metrics WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete user metrics: %w", err)
	}
	metricRows, err := metricRes.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("user metrics rows affected: %w", err)
	}

	// The account shell is kept; only personalisation is reset.
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET coach_style = ?, is_traveling = 0, override_instructions = '',
			profile_json = NULL, updated_at = ?
		WHERE user_id = ?`, string(domain.DefaultPersona), time.Now().Unix(), userID); err != nil {
		return 0, 0, fmt.Errorf("reset user profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit wipe: %w", err)
	}
	return eventRows, metricRows, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "table", what, "error", err)
	}
}
