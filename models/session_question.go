package models

// SessionQuestion is an immutable copy of a quiz question taken when a
// session is started. Later edits to the source quiz never touch it.
type SessionQuestion struct {
	ID                 uint   `json:"id" gorm:"primaryKey"`
	QuizSessionID      uint   `json:"quiz_session_id" gorm:"not null;index"`
	OriginalQuestionID uint   `json:"original_question_id" gorm:"not null"`
	Type               string `json:"type" gorm:"not null"`
	Content            string `json:"content" gorm:"not null"`
	TimeLimit          int    `json:"time_limit" gorm:"not null"`
	Points             int    `json:"points" gorm:"not null"`

	// Relationships
	Options []SessionQuestionOption `json:"options,omitempty" gorm:"foreignKey:SessionQuestionID;constraint:OnDelete:CASCADE"`
}

// SessionQuestionOption is the snapshot counterpart of Option.
type SessionQuestionOption struct {
	ID                uint   `json:"id" gorm:"primaryKey"`
	SessionQuestionID uint   `json:"session_question_id" gorm:"not null;index"`
	OriginalOptionID  uint   `json:"original_option_id" gorm:"not null"`
	Order             int    `json:"order" gorm:"not null"`
	Content           string `json:"content" gorm:"not null"`
	Correct           bool   `json:"correct" gorm:"not null;default:false"`
}
