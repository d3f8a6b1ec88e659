package models

import (
	"time"
)

const (
	QuizStatusDraft     = "draft"
	QuizStatusPublished = "published"
	QuizStatusArchived  = "archived"
)

const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Quiz struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	CreatorID   uint      `json:"creator_id" gorm:"not null;index"`
	Status      string    `json:"status" gorm:"not null;default:'draft'"`
	Visibility  string    `json:"visibility" gorm:"not null;default:'private'"`
	Difficulty  string    `json:"difficulty" gorm:"default:'medium'"`
	Duration    int       `json:"duration"` // minutes, 0 means unlimited
	Rating      float64   `json:"rating"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Creator   User          `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Questions []Question    `json:"questions,omitempty" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
	Sessions  []QuizSession `json:"sessions,omitempty" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
}
