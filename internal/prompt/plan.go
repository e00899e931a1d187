package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/blackcard-ai/concierge/internal/llm"
)

// BlockType names a section of a workout.
type BlockType string

const (
	BlockWarmUp   BlockType = "warm_up"
	BlockMain     BlockType = "main"
	BlockFinisher BlockType = "finisher"
	BlockCoolDown BlockType = "cool_down"
)

// WorkoutPlan is the structured session the model returns for plan requests.
type WorkoutPlan struct {
	Metadata PlanMetadata `json:"metadata"`
	Blocks   []PlanBlock  `json:"blocks" jsonschema:"minItems=1"`
}

// PlanMetadata describes the session as a whole.
type PlanMetadata struct {
	Title           string `json:"title" jsonschema:"minLength=1"`
	Focus           string `json:"focus"`
	Intensity       string `json:"intensity" jsonschema:"enum=recovery,enum=low,enum=moderate,enum=high"`
	DurationMinutes int    `json:"duration_minutes" jsonschema:"minimum=5,maximum=180"`
	RecoveryScore   int    `json:"recovery_score" jsonschema:"minimum=0,maximum=100"`
}

// PlanBlock is one ordered section of the session.
type PlanBlock struct {
	Type      BlockType      `json:"type" jsonschema:"enum=warm_up,enum=main,enum=finisher,enum=cool_down"`
	Exercises []PlanExercise `json:"exercises" jsonschema:"minItems=1"`
}

// PlanExercise prescribes one movement. Either Reps or Time must be set.
type PlanExercise struct {
	Name      string `json:"name" jsonschema:"minLength=1"`
	Sets      int    `json:"sets" jsonschema:"minimum=1"`
	Reps      string `json:"reps,omitempty"`
	Time      string `json:"time,omitempty"`
	Intensity string `json:"intensity"`
	Rest      string `json:"rest"`
	Notes     string `json:"notes"`
}

// JSONSchemaExtend requires one of reps or time.
func (PlanExercise) JSONSchemaExtend(s *jsonschema.Schema) {
	s.AnyOf = []*jsonschema.Schema{
		{Required: []string{"reps"}},
		{Required: []string{"time"}},
	}
}

// BlockTypes returns the block types present in plan order, without repeats.
func (p *WorkoutPlan) BlockTypes() []BlockType {
	seen := make(map[BlockType]bool, len(p.Blocks))
	var out []BlockType
	for _, b := range p.Blocks {
		if !seen[b.Type] {
			seen[b.Type] = true
			out = append(out, b.Type)
		}
	}
	return out
}

var (
	schemaOnce     sync.Once
	schemaJSON     []byte
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadPlanSchema() {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&WorkoutPlan{})
	s.Version = ""
	s.Title = "WorkoutPlan"

	schemaJSON, schemaErr = json.MarshalIndent(s, "", "  ")
	if schemaErr != nil {
		return
	}
	compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
}

// PlanSchema returns the JSON Schema embedded in structured-plan prompts.
func PlanSchema() string {
	schemaOnce.Do(loadPlanSchema)
	return string(schemaJSON)
}

// ErrNoPlanJSON is returned when a reply contains no JSON object.
var ErrNoPlanJSON = errors.New("no JSON object found in reply")

// ValidationError lists the schema violations of a plan reply.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "plan does not match schema: " + strings.Join(e.Problems, "; ")
}

// ParsePlan extracts a JSON plan from a model reply and validates it.
func ParsePlan(reply string) (*WorkoutPlan, error) {
	schemaOnce.Do(loadPlanSchema)
	if schemaErr != nil {
		return nil, fmt.Errorf("load plan schema: %w", schemaErr)
	}

	raw := llm.ExtractJSON(reply)
	if raw == "" {
		return nil, ErrNoPlanJSON
	}

	result, err := compiledSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &ValidationError{Problems: []string{"invalid JSON: " + err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &ValidationError{Problems: problems}
	}

	var plan WorkoutPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

// RepairPrompt asks the model to fix a reply that failed validation.
func RepairPrompt(previous string, cause error) string {
	var b strings.Builder
	b.WriteString("Your previous reply could not be used as a workout plan.\n\n")
	b.WriteString("Problems:\n")
	var verr *ValidationError
	if errors.As(cause, &verr) {
		for _, p := range verr.Problems {
			b.WriteString("- " + p + "\n")
		}
	} else {
		b.WriteString("- " + cause.Error() + "\n")
	}
	b.WriteString("\nPrevious reply:\n")
	b.WriteString(previous)
	b.WriteString("\n\nReturn ONLY a corrected JSON object that matches this JSON Schema, with no commentary:\n")
	b.WriteString(PlanSchema())
	return b.String()
}
