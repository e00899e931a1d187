package domain

import "time"

// PerformanceMetric is a manually logged strength/engine/body measurement.
type PerformanceMetric struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Notes     string    `json:"notes,omitempty"`
	LoggedBy  string    `json:"logged_by"`
	Timestamp time.Time `json:"timestamp"`
}
