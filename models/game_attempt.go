package models

import (
	"time"
)

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
	AttemptStatusAbandoned  = "abandoned"
)

type GameAttempt struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	QuizSessionID uint       `json:"quiz_session_id" gorm:"not null;index"`
	ParticipantID uint       `json:"participant_id" gorm:"not null;index"`
	AttemptNumber int        `json:"attempt_number" gorm:"not null;default:1"`
	Status        string     `json:"status" gorm:"not null;default:'in_progress'"`
	Score         int        `json:"score" gorm:"not null;default:0"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Relationships
	Participant Participant       `json:"participant,omitempty"`
	Answers     []QuestionAttempt `json:"answers,omitempty" gorm:"foreignKey:GameAttemptID;constraint:OnDelete:CASCADE"`
}
