package domain

// CoachPersona names a coaching tone/vocabulary profile selected per client.
type CoachPersona string

const (
	PersonaHyroxCompetitor CoachPersona = "hyrox_competitor"
	PersonaEmpoweredMum    CoachPersona = "empowered_mum"
	PersonaMuscleArchitect CoachPersona = "muscle_architect"
	PersonaBioOptimizer    CoachPersona = "bio_optimizer"

	DefaultPersona = PersonaHyroxCompetitor
)

// Personas lists every known persona in display order.
func Personas() []CoachPersona {
	return []CoachPersona{
		PersonaHyroxCompetitor,
		PersonaEmpoweredMum,
		PersonaMuscleArchitect,
		PersonaBioOptimizer,
	}
}

// Valid reports whether p is a known persona.
func (p CoachPersona) Valid() bool {
	switch p {
	case PersonaHyroxCompetitor, PersonaEmpoweredMum, PersonaMuscleArchitect, PersonaBioOptimizer:
		return true
	}
	return false
}

// OrDefault returns p when valid, otherwise the default persona.
func (p CoachPersona) OrDefault() CoachPersona {
	if p.Valid() {
		return p
	}
	return DefaultPersona
}
