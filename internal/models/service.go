package models

import "time"

type Service struct {
	ID              int64     `yaml:"id" json:"id"`
	ProviderID      int64     `yaml:"provider_id" json:"provider_id"`
	Name            string    `yaml:"name" json:"name"`
	Description     string    `yaml:"description" json:"description"`
	Category        string    `yaml:"category" json:"category"`
	Price           string    `yaml:"price" json:"price"` // display string, e.g. "45 - 120"
	DurationMinutes int64     `yaml:"duration_minutes" json:"duration_minutes"`
	Available       bool      `yaml:"available" json:"available"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt       time.Time `yaml:"updated_at" json:"updated_at"`
}
