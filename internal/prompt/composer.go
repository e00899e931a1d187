package prompt

import (
	"fmt"
	"strings"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/knowledge"
)

// Target selects the output contract appended to a composed prompt.
type Target int

const (
	// TargetFreeText asks for a plain-text session plan.
	TargetFreeText Target = iota
	// TargetStructuredPlan asks for a JSON object matching the plan schema.
	TargetStructuredPlan
)

// RecoveryThreshold splits recovery-oriented from high-intensity sessions.
const RecoveryThreshold = 50

// Context carries the per-client inputs of a plan prompt.
type Context struct {
	ClientID             string
	ClientName           string
	RecoveryScore        int
	IsTraveling          bool
	Passages             []domain.Passage
	OverrideInstructions string
	Mission              string
	Target               Target
}

const travelRestriction = `**TRAVEL MODE ACTIVE**
The client is travelling. Restrict equipment to bodyweight, resistance bands and hotel-gym dumbbells.
Do not prescribe barbells, sleds, rowers, SkiErgs or any station equipment.`

const godModeRules = `**TRAINER OVERRIDE (GOD MODE)**
The client's trainer has issued the following instruction:
"""
%s
"""
Rules:
1. This instruction takes precedence over the persona, the periodisation logic and every default above.
2. If the instruction is ambiguous, resolve it conservatively: prefer the safer, lower-impact option.
3. If the instruction needs equipment the client does not have, substitute the closest bodyweight or low-impact alternative.`

const freeTextContract = `**OUTPUT**
Output a structured plain-text session plan with a warm-up, a main block and a cool-down.`

const planContract = `**OUTPUT CONTRACT**
Return ONLY a JSON object, with no commentary, that matches this JSON Schema.
Blocks are ordered and each block type is one of warm_up, main, finisher, cool_down.
Every exercise must set either "reps" or "time".
%s`

// Compose builds the full plan-generation prompt for a persona. The result
// depends only on its inputs.
func Compose(persona domain.CoachPersona, c Context) string {
	sections := []string{
		basePrinciples(),
		personaBlock(PersonaFor(persona)),
	}
	if c.IsTraveling {
		sections = append(sections, travelRestriction)
	}
	sections = append(sections, clientBlock(c), recoveryLogic())
	if passages := knowledge.FormatPassages(c.Passages); passages != "" {
		sections = append(sections, "**REFERENCE PROTOCOLS**\nGround your advice in these protocols where relevant:\n"+passages)
	}
	if override := strings.TrimSpace(c.OverrideInstructions); override != "" {
		sections = append(sections, fmt.Sprintf(godModeRules, override))
	}
	sections = append(sections, toolInstructions(), outputContract(c.Target))
	return strings.Join(sections, "\n\n")
}

func basePrinciples() string {
	return coachingPrinciples + "\n\n" + ukLocalisation
}

func personaBlock(p Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Tone**: %q. %s\n", p.Label, p.Tone)
	quoted := make([]string, len(p.KeyPhrases))
	for i, phrase := range p.KeyPhrases {
		quoted[i] = "'" + phrase + "'"
	}
	fmt.Fprintf(&b, "**Key Phrases**: %s.\n", strings.Join(quoted, ", "))
	fmt.Fprintf(&b, "**Style**: %s", p.Style)
	return b.String()
}

func clientBlock(c Context) string {
	mission := c.Mission
	if mission == "" {
		mission = "Build a workout session."
	}
	var b strings.Builder
	if c.ClientID != "" {
		fmt.Fprintf(&b, "Client ID: %s\n", c.ClientID)
	}
	if c.ClientName != "" {
		fmt.Fprintf(&b, "Client Name: %s\n", c.ClientName)
	}
	fmt.Fprintf(&b, "Recovery Score: %d/100.\n\n", c.RecoveryScore)
	fmt.Fprintf(&b, "Mission: %s", mission)
	return b.String()
}

func recoveryLogic() string {
	return fmt.Sprintf(`LOGIC:
- If score < %[1]d: Recommend Active Recovery (Mobility, easy Cardio). Query 'Core' or 'Mobility' or 'Cardio'.
- If score >= %[1]d: Recommend High Intensity Hyrox/Strength. Query 'Hyrox' or 'Strength'.`, RecoveryThreshold)
}

func toolInstructions() string {
	return "INSTRUCTIONS:\n1. Check the database using `query_exercise_db` to find available exercises matching the logic.\n" +
		"2. Only prescribe exercises the database returned. If it returned nothing, fall back to bodyweight movements."
}

func outputContract(t Target) string {
	switch t {
	case TargetStructuredPlan:
		return fmt.Sprintf(planContract, PlanSchema())
	default:
		return freeTextContract
	}
}

// BiometricPrompt frames a short message reacting to a wearable reading.
func BiometricPrompt(persona domain.CoachPersona, score int, status, device string, passages []domain.Passage) string {
	var b strings.Builder
	b.WriteString("You are an Elite Fitness Concierge for a UHNW client.\n")
	fmt.Fprintf(&b, "The client's recovery score is %d/100 (Status: %s).\n", score, status)
	fmt.Fprintf(&b, "Device: %s.\n\n", device)
	b.WriteString("Relevant Framework Context:\n")
	b.WriteString(knowledge.FormatPassages(passages))
	b.WriteString("\n\n")
	b.WriteString(personaBlock(PersonaFor(persona)))
	b.WriteString("\n\n")
	b.WriteString(ukLocalisation)
	b.WriteString("\n\nDraft a short, premium text message.")
	return b.String()
}

// VisionPrompt asks for a brief plan built around the equipment in view.
func VisionPrompt(persona domain.CoachPersona, equipment []string, query string) string {
	equip := "Bodyweight only"
	if len(equipment) > 0 {
		equip = strings.Join(equipment, ", ")
	}
	if strings.TrimSpace(query) == "" {
		query = "Build a workout"
	}

	var b strings.Builder
	b.WriteString("You are an expert Strength Coach.\n")
	fmt.Fprintf(&b, "Available Equipment: %s.\n", equip)
	fmt.Fprintf(&b, "Client Goal/Query: %s.\n\n", query)
	b.WriteString(personaBlock(PersonaFor(persona)))
	b.WriteString("\n\n")
	b.WriteString(ukLocalisation)
	b.WriteString("\n\nCreate a very brief bulleted workout plan.")
	return b.String()
}

// InterventionPrompt asks for an out-of-band nudge written in the persona's voice.
func InterventionPrompt(persona domain.CoachPersona, clientName, instruction, override string) string {
	if clientName == "" {
		clientName = "the client"
	}
	sections := []string{
		basePrinciples(),
		personaBlock(PersonaFor(persona)),
		fmt.Sprintf("Trainer request: %s", instruction),
	}
	if override = strings.TrimSpace(override); override != "" {
		sections = append(sections, fmt.Sprintf(godModeRules, override))
	}
	sections = append(sections, fmt.Sprintf(
		"Write a short motivational message to %s that gets them back on their programme. Two to four sentences, no lists.",
		clientName))
	return strings.Join(sections, "\n\n")
}
