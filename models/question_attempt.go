package models

import (
	"time"
)

// QuestionAttempt records the one answer allowed per (attempt, question)
// pair. Single-select questions store the chosen option directly; multi
// select questions store one QuestionAttemptOption row per chosen option
// and leave SelectedOptionID nil. The unique index turns a concurrent
// double submit into a constraint violation instead of a duplicate row.
type QuestionAttempt struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	GameAttemptID     uint      `json:"game_attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	SessionQuestionID uint      `json:"session_question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	SelectedOptionID  *uint     `json:"selected_option_id"`
	Correct           bool      `json:"correct" gorm:"not null"`
	TimeTakenMs       int       `json:"time_taken_ms" gorm:"not null"`
	PointsAwarded     int       `json:"points_awarded" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at"`

	// Relationships
	SelectedOptions []QuestionAttemptOption `json:"selected_options,omitempty" gorm:"foreignKey:QuestionAttemptID;constraint:OnDelete:CASCADE"`
}

// QuestionAttemptOption is one selected option of a multi-select answer.
type QuestionAttemptOption struct {
	ID                uint `json:"id" gorm:"primaryKey"`
	QuestionAttemptID uint `json:"question_attempt_id" gorm:"not null;index"`
	SessionOptionID   uint `json:"session_option_id" gorm:"not null"`
}
