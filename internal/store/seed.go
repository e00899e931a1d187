package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/blackcard-ai/concierge/internal/domain"
)

// DefaultCatalog is the exercise catalog loaded by Seed. Nine entries are
// Hyrox stations; Running is filed under Hyrox so the category lookup
// returns every station.
func DefaultCatalog() []domain.Exercise {
	return []domain.Exercise{
		{Name: "Sled Push", Category: "Hyrox", MuscleGroup: "Full Body", IsHyroxStation: true, Equipment: []string{"Sled"}},
		{Name: "Sled Pull", Category: "Hyrox", MuscleGroup: "Full Body", IsHyroxStation: true, Equipment: []string{"Sled", "Rope"}},
		{Name: "SkiErg", Category: "Hyrox", MuscleGroup: "Full Body", IsHyroxStation: true, Equipment: []string{"SkiErg"}},
		{Name: "Rowing", Category: "Hyrox", MuscleGroup: "Full Body", IsHyroxStation: true, Equipment: []string{"Rower"}},
		{Name: "Wall Balls", Category: "Hyrox", MuscleGroup: "Legs/Shoulders", IsHyroxStation: true, Equipment: []string{"Medicine Ball", "Target"}},
		{Name: "Burpee Broad Jump", Category: "Hyrox", MuscleGroup: "Full Body", IsHyroxStation: true, Equipment: []string{}},
		{Name: "Farmers Carry", Category: "Hyrox", MuscleGroup: "Grip/Core", IsHyroxStation: true, Equipment: []string{"Kettlebells"}},
		{Name: "Sandbag Lunges", Category: "Hyrox", MuscleGroup: "Legs", IsHyroxStation: true, Equipment: []string{"Sandbag"}},
		{Name: "Running", Category: "Hyrox", MuscleGroup: "Legs", IsHyroxStation: true, Equipment: []string{}},

		{Name: "Barbell Back Squat", Category: "Strength", MuscleGroup: "Legs", Equipment: []string{"Barbell", "Rack"}},
		{Name: "Deadlift", Category: "Strength", MuscleGroup: "Posterior Chain", Equipment: []string{"Barbell"}},
		{Name: "Bench Press", Category: "Strength", MuscleGroup: "Chest", Equipment: []string{"Barbell", "Bench"}},
		{Name: "Overhead Press", Category: "Strength", MuscleGroup: "Shoulders", Equipment: []string{"Barbell"}},
		{Name: "Pull Up", Category: "Strength", MuscleGroup: "Back", Equipment: []string{"Pull Up Bar"}},
		{Name: "Dumbbell Row", Category: "Strength", MuscleGroup: "Back", Unilateral: true, Equipment: []string{"Dumbbell", "Bench"}},
		{Name: "Bulgarian Split Squat", Category: "Strength", MuscleGroup: "Legs", Unilateral: true, Equipment: []string{"Dumbbell", "Bench"}},
		{Name: "Romanian Deadlift", Category: "Strength", MuscleGroup: "Posterior Chain", Equipment: []string{"Barbell"}},

		{Name: "Incline Dumbbell Press", Category: "Hypertrophy", MuscleGroup: "Chest", Equipment: []string{"Dumbbells", "Incline Bench"}},
		{Name: "Lateral Raise", Category: "Hypertrophy", MuscleGroup: "Shoulders", Equipment: []string{"Dumbbells"}},
		{Name: "Face Pull", Category: "Hypertrophy", MuscleGroup: "Rear Delts", Equipment: []string{"Cable"}},
		{Name: "Tricep Pushdown", Category: "Hypertrophy", MuscleGroup: "Arms", Equipment: []string{"Cable"}},
		{Name: "Bicep Curl", Category: "Hypertrophy", MuscleGroup: "Arms", Equipment: []string{"Dumbbells"}},
		{Name: "Leg Extension", Category: "Hypertrophy", MuscleGroup: "Legs", Equipment: []string{"Machine"}},
		{Name: "Leg Curl", Category: "Hypertrophy", MuscleGroup: "Legs", Equipment: []string{"Machine"}},
		{Name: "Calf Raise", Category: "Hypertrophy", MuscleGroup: "Legs", Equipment: []string{"Machine"}},

		{Name: "Plank", Category: "Core", MuscleGroup: "Core", Equipment: []string{}},
		{Name: "Hanging Leg Raise", Category: "Core", MuscleGroup: "Core", Equipment: []string{"Pull Up Bar"}},
		{Name: "Russian Twist", Category: "Core", MuscleGroup: "Core", Equipment: []string{"Medicine Ball"}},
		{Name: "90/90 Hip Switch", Category: "Mobility", MuscleGroup: "Hips", Equipment: []string{}},
		{Name: "Cat Cow", Category: "Mobility", MuscleGroup: "Spine", Equipment: []string{}},
	}
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Exercises int
	Users     int
	Events    int
}

// Seed loads the exercise catalog plus demo clients and their dashboard
// events. Exercises and users are upserted; demo events are appended only
// when the client has no wearable history yet.
func Seed(ctx context.Context, repo Repository) (SeedResult, error) {
	var res SeedResult

	catalog := DefaultCatalog()
	for i := range catalog {
		if err := repo.UpsertExercise(ctx, &catalog[i]); err != nil {
			return res, fmt.Errorf("seed exercise: %w", err)
		}
		res.Exercises++
	}

	users := []*domain.User{
		{UserID: "auth0|alice", Role: domain.RoleClient, CoachStyle: domain.PersonaHyroxCompetitor,
			Profile: map[string]string{"name": "Athlete Alice", "type": "Hyrox Pro", "goals": "Sub 60 Hyrox"}},
		{UserID: "auth0|bob", Role: domain.RoleClient, CoachStyle: domain.PersonaBioOptimizer, IsTraveling: true,
			Profile: map[string]string{"name": "Executive Bob", "type": "Traveler", "goals": "Maintenance, Health"}},
		{UserID: "auth0|ian", Role: domain.RoleClient, CoachStyle: domain.PersonaMuscleArchitect,
			Profile: map[string]string{"name": "Injured Ian", "type": "Rehab", "goals": "Knee Rehab"}},
		{UserID: "1", Role: domain.RoleClient, CoachStyle: domain.PersonaEmpoweredMum,
			Profile: map[string]string{"name": "Demo Client", "type": "VIP", "goals": "Look Good Naked"}},
	}
	for _, u := range users {
		existing, err := repo.GetUser(ctx, u.UserID)
		if err != nil {
			return res, fmt.Errorf("lookup seed user: %w", err)
		}
		if existing != nil {
			continue
		}
		if err := repo.UpsertUser(ctx, u); err != nil {
			return res, fmt.Errorf("seed user: %w", err)
		}
		res.Users++
	}

	events := []struct {
		userID, eventType, decision, message string
		payload                              map[string]any
	}{
		{"auth0|bob", domain.EventTypeWearable, domain.ActionRed,
			"Critical recovery warning. Sleep score 45 indicates severe under-recovery. Recommended: Active Recovery only.",
			map[string]any{"sleep_score": 45, "hrv": 20, "rhr": 65}},
		{"auth0|alice", domain.EventTypeWearable, domain.ActionGreen,
			"Recovery is optimal. High intensity Hyrox session recommended.",
			map[string]any{"sleep_score": 85, "hrv": 65, "rhr": 52}},
		{"auth0|ian", domain.EventTypeVision, domain.ActionWorkoutGenerated,
			"Detected equipment for knee rehab. Mobility protocol active.",
			map[string]any{"detected_equipment": []string{"Kettlebell", "Mat"}, "session_type": "mobility"}},
	}
	for _, e := range events {
		latest, err := repo.LatestEvent(ctx, e.userID, e.eventType)
		if err != nil {
			return res, fmt.Errorf("lookup seed event: %w", err)
		}
		if latest != nil {
			continue
		}
		payload, err := json.Marshal(e.payload)
		if err != nil {
			return res, fmt.Errorf("marshal seed payload: %w", err)
		}
		if _, err := repo.AppendEvent(ctx, &domain.EventLog{
			UserID:        e.userID,
			EventType:     e.eventType,
			Payload:       payload,
			AgentDecision: e.decision,
			AgentMessage:  e.message,
		}); err != nil {
			return res, fmt.Errorf("seed event: %w", err)
		}
		res.Events++
	}

	slog.Info("Seed complete", "exercises", res.Exercises, "users", res.Users, "events", res.Events)
	return res, nil
}
