// Package tools implements the tools the generation client may call.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/store"
)

const (
	// ExerciseQueryName is the tool name exposed to the model.
	ExerciseQueryName = "query_exercise_db"

	// MaxExerciseLines caps the rows returned so the tool output stays small.
	MaxExerciseLines = 15

	noExercisesFound = "No exercises found matching criteria."
)

// Args are the arguments of query_exercise_db.
type Args struct {
	MuscleGroup string
	Category    string
	IsHyrox     bool
}

// ExerciseQuery looks up exercises in the catalog for the model.
type ExerciseQuery struct {
	catalog store.CatalogStore
}

// NewExerciseQuery creates the exercise lookup tool.
func NewExerciseQuery(catalog store.CatalogStore) *ExerciseQuery {
	return &ExerciseQuery{catalog: catalog}
}

// Declaration returns the tool schema sent to the model.
func (q *ExerciseQuery) Declaration() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ExerciseQueryName,
		Description: "Query the exercise database for movements based on criteria. Returns names and details of available equipment/exercises.",
		Params: []llm.ToolParam{
			{Name: "category", Type: "string", Description: "Category filter (Hyrox, Strength, Hypertrophy, Core, Mobility)", Required: true},
			{Name: "muscle_group", Type: "string", Description: "Target muscle group (e.g. Legs, Chest, Back, Full Body)"},
			{Name: "is_hyrox", Type: "boolean", Description: "If true, filter only Hyrox stations"},
		},
	}
}

// Execute runs the query and renders at most MaxExerciseLines lines. Storage
// failures are reported in the returned text so generation can continue.
func (q *ExerciseQuery) Execute(ctx context.Context, args Args) string {
	slog.Info("Executing exercise query",
		"category", args.Category,
		"muscle_group", args.MuscleGroup,
		"is_hyrox", args.IsHyrox)

	exercises, err := q.catalog.QueryExercises(ctx, domain.ExerciseFilter{
		Category:    args.Category,
		MuscleGroup: args.MuscleGroup,
		HyroxOnly:   args.IsHyrox,
		Limit:       MaxExerciseLines,
	})
	if err != nil {
		slog.Error("Exercise query failed", "error", err)
		return fmt.Sprintf("Database Query Failed: %v", err)
	}
	if len(exercises) == 0 {
		return noExercisesFound
	}
	if len(exercises) > MaxExerciseLines {
		exercises = exercises[:MaxExerciseLines]
	}

	lines := make([]string, 0, len(exercises))
	for _, ex := range exercises {
		lines = append(lines, fmt.Sprintf("- %s (Cat: %s, Equip: %s)", ex.Name, ex.Category, formatEquipment(ex.Equipment)))
	}
	return strings.Join(lines, "\n")
}

// ExecuteTool dispatches a model tool call. Unknown tools are reported as text.
func (q *ExerciseQuery) ExecuteTool(ctx context.Context, call llm.ToolCall) string {
	if call.Name != ExerciseQueryName {
		slog.Warn("Model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}
	return q.Execute(ctx, ArgsFromMap(call.Args))
}

// ArgsFromMap decodes model-supplied arguments. Missing keys take zero values
// and booleans may arrive as strings.
func ArgsFromMap(m map[string]any) Args {
	return Args{
		MuscleGroup: stringArg(m["muscle_group"]),
		Category:    stringArg(m["category"]),
		IsHyrox:     boolArg(m["is_hyrox"]),
	}
}

func formatEquipment(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func stringArg(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func boolArg(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case float64:
		return b != 0
	default:
		return false
	}
}
