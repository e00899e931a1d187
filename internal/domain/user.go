// Package domain contains core domain types for the concierge backend.
package domain

import (
	"time"
)

// Role values stored on the User entity.
const (
	RoleClient  = "client"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// User is a coached client (or a trainer/admin) with the profile settings the
// agents read at prompt-composition time.
type User struct {
	UserID               string            `json:"id"`
	Email                string            `json:"email,omitempty"`
	Role                 string            `json:"role"`
	TrainerID            string            `json:"trainer_id,omitempty"`
	CoachStyle           CoachPersona      `json:"coach_style"`
	IsTraveling          bool              `json:"is_traveling"`
	OverrideInstructions string            `json:"override_instructions,omitempty"`
	Profile              map[string]string `json:"profile,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// DisplayName returns the profile name, or "Client" when none is set.
func (u *User) DisplayName() string {
	if u == nil || u.Profile["name"] == "" {
		return "Client"
	}
	return u.Profile["name"]
}

// ResetPersonalisation wipes coaching preferences back to defaults.
func (u *User) ResetPersonalisation(now time.Time) {
	u.CoachStyle = DefaultPersona
	u.IsTraveling = false
	u.OverrideInstructions = ""
	u.Profile = nil
	u.UpdatedAt = now
}
