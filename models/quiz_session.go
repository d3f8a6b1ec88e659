package models

import (
	"time"
)

const (
	SessionStatusInactive = "inactive"
	SessionStatusActive   = "active"
	SessionStatusExpired  = "expired"
	SessionStatusDeleting = "deleting"
)

// SessionCodeLength is the length of the human-enterable join code.
const SessionCodeLength = 6

type QuizSession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	QuizID    uint      `json:"quiz_id" gorm:"not null;index"`
	HostID    uint      `json:"host_id" gorm:"not null;index"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null"`
	Status    string    `json:"status" gorm:"not null;default:'inactive'"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Quiz         Quiz              `json:"quiz,omitempty"`
	Questions    []SessionQuestion `json:"questions,omitempty" gorm:"foreignKey:QuizSessionID;constraint:OnDelete:CASCADE"`
	Participants []Participant     `json:"participants,omitempty" gorm:"foreignKey:QuizSessionID;constraint:OnDelete:CASCADE"`
}

// Expired reports whether the session's expiry timestamp has passed.
// Status flips are evaluated lazily at read time, not by a timer.
func (s *QuizSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
