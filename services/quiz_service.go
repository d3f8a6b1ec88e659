package services

import (
	"sort"

	"quizdeck/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizService struct {
	db *gorm.DB
}

func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{db: db}
}

type CreateQuizRequest struct {
	Title       string                  `json:"title" binding:"required"`
	Description string                  `json:"description"`
	Visibility  string                  `json:"visibility" binding:"omitempty,oneof=public private unlisted"`
	Difficulty  string                  `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Duration    int                     `json:"duration" binding:"omitempty,min=0"`
	ImageURL    string                  `json:"image_url"`
	Questions   []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

type CreateQuestionRequest struct {
	Type      string                `json:"type" binding:"required,oneof=multiple_choice true_false multiple_select"`
	Content   string                `json:"content" binding:"required"`
	TimeLimit int                   `json:"time_limit" binding:"required,min=5,max=300"`
	Points    int                   `json:"points" binding:"required,min=1"`
	Options   []CreateOptionRequest `json:"options" binding:"required,min=2,max=6,dive"`
}

type CreateOptionRequest struct {
	Content string `json:"content" binding:"required"`
	Correct bool   `json:"correct"`
	Order   int    `json:"order"`
}

type UpdateQuizRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Visibility  string                  `json:"visibility" binding:"omitempty,oneof=public private unlisted"`
	Difficulty  string                  `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Duration    *int                    `json:"duration"`
	ImageURL    string                  `json:"image_url"`
	Questions   []CreateQuestionRequest `json:"questions" binding:"omitempty,dive"`
}

// validateQuestion enforces the per-type correct-option arity rules.
func validateQuestion(req *CreateQuestionRequest) error {
	correctCount := 0
	for _, opt := range req.Options {
		if opt.Correct {
			correctCount++
		}
	}

	switch req.Type {
	case models.QuestionTypeTrueFalse:
		if len(req.Options) != 2 || correctCount != 1 {
			return models.ErrInvalidSelection
		}
	case models.QuestionTypeMultipleChoice:
		if correctCount != 1 {
			return models.ErrInvalidSelection
		}
	case models.QuestionTypeMultipleSelect:
		if correctCount < 1 {
			return models.ErrInvalidSelection
		}
	}
	return nil
}

func (s *QuizService) CreateQuiz(userID uint, req *CreateQuizRequest) (*models.Quiz, error) {
	for i := range req.Questions {
		if err := validateQuestion(&req.Questions[i]); err != nil {
			return nil, err
		}
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}

	quiz := models.Quiz{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   userID,
		Status:      models.QuizStatusDraft,
		Visibility:  visibility,
		Difficulty:  difficulty,
		Duration:    req.Duration,
		ImageURL:    req.ImageURL,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&quiz).Error; err != nil {
			return err
		}
		return createQuestions(tx, quiz.ID, req.Questions)
	})
	if err != nil {
		return nil, err
	}

	return s.GetQuiz(quiz.ID, &userID)
}

func createQuestions(tx *gorm.DB, quizID uint, reqs []CreateQuestionRequest) error {
	for _, qReq := range reqs {
		question := models.Question{
			QuizID:    quizID,
			Type:      qReq.Type,
			Content:   qReq.Content,
			TimeLimit: qReq.TimeLimit,
			Points:    qReq.Points,
		}
		if err := tx.Create(&question).Error; err != nil {
			return err
		}

		for i, optReq := range qReq.Options {
			order := optReq.Order
			if order == 0 {
				order = i + 1
			}
			option := models.Option{
				QuestionID: question.ID,
				Content:    optReq.Content,
				Correct:    optReq.Correct,
				Order:      order,
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// GetQuiz loads a quiz with its question tree. Private quizzes are only
// visible to their creator; userID is nil for unauthenticated callers.
func (s *QuizService) GetQuiz(quizID uint, userID *uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.
		Preload("Creator").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.id")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			// "order" is a reserved word; let gorm quote it per dialect.
			return db.Order(clause.OrderByColumn{Column: clause.Column{Table: "options", Name: "order"}})
		}).
		First(&quiz, quizID).Error
	if err != nil {
		return nil, models.ErrNotFound
	}

	if quiz.Visibility == models.VisibilityPrivate {
		if userID == nil || *userID != quiz.CreatorID {
			return nil, models.ErrForbidden
		}
	}

	return &quiz, nil
}

// ListLibrary returns the quizzes visible to the user: everything public or
// unlisted, plus the user's own private quizzes.
func (s *QuizService) ListLibrary(userID uint) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := s.db.
		Where("visibility <> ? OR creator_id = ?", models.VisibilityPrivate, userID).
		Preload("Creator").
		Preload("Questions").
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (s *QuizService) UpdateQuiz(quizID uint, userID uint, req *UpdateQuizRequest) (*models.Quiz, error) {
	quiz, err := s.getOwnedQuiz(quizID, userID)
	if err != nil {
		return nil, err
	}

	for i := range req.Questions {
		if err := validateQuestion(&req.Questions[i]); err != nil {
			return nil, err
		}
	}

	if req.Title != "" {
		quiz.Title = req.Title
	}
	if req.Description != "" {
		quiz.Description = req.Description
	}
	if req.Visibility != "" {
		quiz.Visibility = req.Visibility
	}
	if req.Difficulty != "" {
		quiz.Difficulty = req.Difficulty
	}
	if req.Duration != nil {
		quiz.Duration = *req.Duration
	}
	if req.ImageURL != "" {
		quiz.ImageURL = req.ImageURL
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(quiz).Error; err != nil {
			return err
		}

		if req.Questions == nil {
			return nil
		}

		// Replace the question tree wholesale. Session snapshots keep
		// their own copies, so live sessions are unaffected.
		var questionIDs []uint
		if err := tx.Model(&models.Question{}).Where("quiz_id = ?", quizID).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error; err != nil {
				return err
			}
		}
		return createQuestions(tx, quizID, req.Questions)
	})
	if err != nil {
		return nil, err
	}

	return s.GetQuiz(quizID, &userID)
}

// PublishQuiz moves a draft to published. Only published quizzes can host
// sessions.
func (s *QuizService) PublishQuiz(quizID uint, userID uint) (*models.Quiz, error) {
	return s.transition(quizID, userID, models.QuizStatusDraft, models.QuizStatusPublished)
}

// ArchiveQuiz moves a published quiz to archived.
func (s *QuizService) ArchiveQuiz(quizID uint, userID uint) (*models.Quiz, error) {
	return s.transition(quizID, userID, models.QuizStatusPublished, models.QuizStatusArchived)
}

func (s *QuizService) transition(quizID, userID uint, from, to string) (*models.Quiz, error) {
	quiz, err := s.getOwnedQuiz(quizID, userID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != from {
		return nil, models.ErrInvalidTransition
	}

	quiz.Status = to
	if err := s.db.Save(quiz).Error; err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) SetVisibility(quizID uint, userID uint, visibility string) (*models.Quiz, error) {
	quiz, err := s.getOwnedQuiz(quizID, userID)
	if err != nil {
		return nil, err
	}

	quiz.Visibility = visibility
	if err := s.db.Save(quiz).Error; err != nil {
		return nil, err
	}
	return quiz, nil
}

// DeleteQuiz removes a quiz and everything hanging off it. Session
// snapshots reference the quiz's question rows, so dependent sessions are
// deleted first, inside the same transaction.
func (s *QuizService) DeleteQuiz(quizID uint, userID uint) error {
	if _, err := s.getOwnedQuiz(quizID, userID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var sessionIDs []uint
		if err := tx.Model(&models.QuizSession{}).Where("quiz_id = ?", quizID).Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}
		for _, sessionID := range sessionIDs {
			if err := deleteSessionRows(tx, sessionID); err != nil {
				return err
			}
		}

		var questionIDs []uint
		if err := tx.Model(&models.Question{}).Where("quiz_id = ?", quizID).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Quiz{}, quizID).Error
	})
}

// TrendingQuizzes returns the top published public quizzes ranked by the
// number of distinct participants across all their sessions.
func (s *QuizService) TrendingQuizzes(limit int) ([]TrendingQuiz, error) {
	if limit <= 0 {
		limit = 6
	}

	var quizzes []models.Quiz
	err := s.db.
		Where("status = ? AND visibility = ?", models.QuizStatusPublished, models.VisibilityPublic).
		Preload("Creator").
		Preload("Sessions.Participants").
		Find(&quizzes).Error
	if err != nil {
		return nil, err
	}

	trending := make([]TrendingQuiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		seen := map[uint]struct{}{}
		for _, session := range quiz.Sessions {
			for _, p := range session.Participants {
				seen[p.ID] = struct{}{}
			}
		}
		trending = append(trending, TrendingQuiz{
			ID:               quiz.ID,
			Title:            quiz.Title,
			Author:           quiz.Creator.Name,
			Difficulty:       quiz.Difficulty,
			Duration:         quiz.Duration,
			Rating:           quiz.Rating,
			ImageURL:         quiz.ImageURL,
			ParticipantCount: len(seen),
		})
	}

	// Most participants first, rating as tie-breaker.
	sort.Slice(trending, func(i, j int) bool {
		if trending[i].ParticipantCount != trending[j].ParticipantCount {
			return trending[i].ParticipantCount > trending[j].ParticipantCount
		}
		return trending[i].Rating > trending[j].Rating
	})

	if len(trending) > limit {
		trending = trending[:limit]
	}
	return trending, nil
}

type TrendingQuiz struct {
	ID               uint    `json:"id"`
	Title            string  `json:"title"`
	Author           string  `json:"author"`
	Difficulty       string  `json:"difficulty"`
	Duration         int     `json:"duration"`
	Rating           float64 `json:"rating"`
	ImageURL         string  `json:"image_url"`
	ParticipantCount int     `json:"participant_count"`
}

func (s *QuizService) getOwnedQuiz(quizID, userID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := s.db.First(&quiz, quizID).Error; err != nil {
		return nil, models.ErrNotFound
	}
	if quiz.CreatorID != userID {
		return nil, models.ErrForbidden
	}
	return &quiz, nil
}
