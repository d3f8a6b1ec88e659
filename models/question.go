package models

import (
	"time"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeMultipleSelect = "multiple_select"
)

// IsMultiSelect reports whether a question type expects a set of selected
// options rather than a single one.
func IsMultiSelect(questionType string) bool {
	return questionType == QuestionTypeMultipleSelect
}

type Question struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	QuizID    uint      `json:"quiz_id" gorm:"not null;index"`
	Type      string    `json:"type" gorm:"not null;default:'multiple_choice'"`
	Content   string    `json:"content" gorm:"not null"`
	TimeLimit int       `json:"time_limit" gorm:"not null;default:30"` // seconds
	Points    int       `json:"points" gorm:"not null;default:100"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}
