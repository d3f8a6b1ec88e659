package models

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Order      int    `json:"order" gorm:"not null"`
	Content    string `json:"content" gorm:"not null"`
	Correct    bool   `json:"correct" gorm:"not null;default:false"`
}
