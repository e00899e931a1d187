package domain

// Exercise is a catalog entry the exercise tool can surface to the model.
type Exercise struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	MuscleGroup    string   `json:"muscle_group"`
	Equipment      []string `json:"equipment"`
	IsHyroxStation bool     `json:"is_hyrox"`
	Unilateral     bool     `json:"unilateral,omitempty"`
	VideoURL       string   `json:"video_url,omitempty"`
}

// ExerciseFilter narrows a catalog query. Empty fields are not applied.
type ExerciseFilter struct {
	Category    string
	MuscleGroup string
	HyroxOnly   bool
	Limit       int
}
