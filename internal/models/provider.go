package models

import "time"

type Provider struct {
	ID             int64     `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	Email          string    `yaml:"email" json:"email"`
	Phone          string    `yaml:"phone" json:"phone"`
	TelegramChatID int64     `yaml:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	IsActive       bool      `yaml:"is_active" json:"is_active"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt      time.Time `yaml:"updated_at" json:"updated_at"`
}
