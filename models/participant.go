package models

import (
	"time"
)

// Participant is one joining identity within a session: either an
// authenticated user (UserID set) or a guest (GuestID set), never both.
// The composite unique indexes are the backstop against concurrent joins
// creating duplicate rows for the same identity.
type Participant struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	QuizSessionID uint      `json:"quiz_session_id" gorm:"not null;index;uniqueIndex:idx_participant_user;uniqueIndex:idx_participant_guest"`
	UserID        *uint     `json:"user_id" gorm:"uniqueIndex:idx_participant_user"`
	GuestID       *string   `json:"guest_id" gorm:"uniqueIndex:idx_participant_guest"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	User     *User         `json:"user,omitempty"`
	Attempts []GameAttempt `json:"attempts,omitempty" gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`
}

// DisplayName prefers the per-session name, falling back to the account name.
func (p *Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.User != nil && p.User.Name != "" {
		return p.User.Name
	}
	return "Anonymous"
}
