package services

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"quizdeck/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxCodeAttempts bounds the collision-retry loop during code generation.
const maxCodeAttempts = 10

type SessionService struct {
	db     *gorm.DB
	codeFn func() string
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{
		db:     db,
		codeFn: generateCode,
	}
}

func generateCode() string {
	buf := make([]byte, models.SessionCodeLength)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// StartSession snapshots a published quiz's question tree into a new
// session. The session row and every copied question/option are written in
// a single transaction so a failure partway leaves nothing behind.
func (s *SessionService) StartSession(quizID uint, hostID uint) (*models.QuizSession, error) {
	var quiz models.Quiz
	err := s.db.
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

	if quiz.Status != models.QuizStatusPublished {
		return nil, models.ErrQuizNotPublished
	}
	if len(quiz.Questions) == 0 {
		return nil, models.ErrQuizEmpty
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.allocateCode()
		if err != nil {
			return nil, err
		}

		session := models.QuizSession{
			QuizID:    quizID,
			HostID:    hostID,
			Code:      code,
			Status:    models.SessionStatusInactive,
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
			return copySnapshot(tx, session.ID, quiz.Questions)
		})
		if err != nil {
			// The code can land concurrently between allocateCode's
			// count check and the insert; treat it like a generation
			// collision and pick a new one.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, err
		}
		return &session, nil
	}
	return nil, models.ErrCodeExhausted
}

func copySnapshot(tx *gorm.DB, sessionID uint, questions []models.Question) error {
	for _, question := range questions {
		sq := models.SessionQuestion{
			QuizSessionID:      sessionID,
			OriginalQuestionID: question.ID,
			Type:               question.Type,
			Content:            question.Content,
			TimeLimit:          question.TimeLimit,
			Points:             question.Points,
		}
		if err := tx.Create(&sq).Error; err != nil {
			return err
		}

		for _, option := range question.Options {
			so := models.SessionQuestionOption{
				SessionQuestionID: sq.ID,
				OriginalOptionID:  option.ID,
				Order:             option.Order,
				Content:           option.Content,
				Correct:           option.Correct,
			}
			if err := tx.Create(&so).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// allocateCode checks uniqueness against the store, not an in-memory set:
// codes must stay unique across restarts and instances.
func (s *SessionService) allocateCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.codeFn()

		var count int64
		if err := s.db.Model(&models.QuizSession{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", models.ErrCodeExhausted
}

// ResolveCode maps a join code to its session id.
func (s *SessionService) ResolveCode(code string) (*models.QuizSession, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var session models.QuizSession
	if err := s.db.Where("code = ?", code).First(&session).Error; err != nil {
		return nil, models.ErrNotFound
	}
	s.refreshExpiry(&session)
	return &session, nil
}

// ListSessions returns the host's sessions with quiz titles and
// participant counts. Sessions past their expiry are flipped to expired
// here; there is no background sweeper.
func (s *SessionService) ListSessions(hostID uint) ([]SessionSummary, error) {
	var sessions []models.QuizSession
	err := s.db.
		Where("host_id = ? AND status <> ?", hostID, models.SessionStatusDeleting).
		Preload("Quiz").
		Preload("Participants").
		Order("created_at").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for i := range sessions {
		s.refreshExpiry(&sessions[i])
		summaries = append(summaries, SessionSummary{
			ID:               sessions[i].ID,
			QuizID:           sessions[i].QuizID,
			QuizTitle:        sessions[i].Quiz.Title,
			Code:             sessions[i].Code,
			Status:           sessions[i].Status,
			ExpiresAt:        sessions[i].ExpiresAt,
			CreatedAt:        sessions[i].CreatedAt,
			ParticipantCount: len(sessions[i].Participants),
		})
	}
	return summaries, nil
}

type SessionSummary struct {
	ID               uint      `json:"id"`
	QuizID           uint      `json:"quiz_id"`
	QuizTitle        string    `json:"quiz_title"`
	Code             string    `json:"code"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int       `json:"participant_count"`
}

// GetSession loads one session for its host's manage page.
func (s *SessionService) GetSession(sessionID uint, hostID uint) (*models.QuizSession, error) {
	var session models.QuizSession
	err := s.db.
		Where("id = ? AND status <> ?", sessionID, models.SessionStatusDeleting).
		Preload("Quiz").
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.created_at")
		}).
		Preload("Participants.User").
		First(&session).Error
	if err != nil {
		return nil, models.ErrNotFound
	}
	if session.HostID != hostID {
		return nil, models.ErrForbidden
	}

	s.refreshExpiry(&session)
	return &session, nil
}

// ToggleStatus switches a session between active and inactive.
func (s *SessionService) ToggleStatus(sessionID uint, hostID uint) (*models.QuizSession, error) {
	session, err := s.GetSession(sessionID, hostID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case models.SessionStatusActive:
		session.Status = models.SessionStatusInactive
	case models.SessionStatusInactive:
		session.Status = models.SessionStatusActive
	case models.SessionStatusExpired:
		return nil, models.ErrSessionExpired
	default:
		return nil, models.ErrSessionNotActive
	}

	if err := s.db.Model(session).Update("status", session.Status).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateExpiry moves the session's due date. Only future timestamps are
// accepted; an expired session becomes playable again.
func (s *SessionService) UpdateExpiry(sessionID uint, hostID uint, expiresAt time.Time) (*models.QuizSession, error) {
	var session models.QuizSession
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return nil, models.ErrNotFound
	}
	if session.HostID != hostID {
		return nil, models.ErrForbidden
	}
	if !expiresAt.After(time.Now()) {
		return nil, models.ErrSessionExpired
	}

	updates := map[string]interface{}{"expires_at": expiresAt}
	if session.Status == models.SessionStatusExpired {
		updates["status"] = models.SessionStatusInactive
		session.Status = models.SessionStatusInactive
	}
	if err := s.db.Model(&session).Updates(updates).Error; err != nil {
		return nil, err
	}
	session.ExpiresAt = expiresAt
	return &session, nil
}

// DeleteSession removes a session and its snapshot/participant tree. The
// status flips to deleting first so concurrent listings skip the row while
// the cascade runs.
func (s *SessionService) DeleteSession(sessionID uint, hostID uint) error {
	var session models.QuizSession
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return models.ErrNotFound
	}
	if session.HostID != hostID {
		return models.ErrForbidden
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&session).Update("status", models.SessionStatusDeleting).Error; err != nil {
			return err
		}
		return deleteSessionRows(tx, sessionID)
	})
}

// deleteSessionRows deletes a session and everything under it, children
// first. Shared with quiz deletion, which has to clear dependent sessions
// before the quiz's own questions can go.
func deleteSessionRows(tx *gorm.DB, sessionID uint) error {
	var participantIDs []uint
	if err := tx.Model(&models.Participant{}).Where("quiz_session_id = ?", sessionID).Pluck("id", &participantIDs).Error; err != nil {
		return err
	}
	if len(participantIDs) > 0 {
		var attemptIDs []uint
		if err := tx.Model(&models.GameAttempt{}).Where("participant_id IN ?", participantIDs).Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) > 0 {
			var qaIDs []uint
			if err := tx.Model(&models.QuestionAttempt{}).Where("game_attempt_id IN ?", attemptIDs).Pluck("id", &qaIDs).Error; err != nil {
				return err
			}
			if len(qaIDs) > 0 {
				if err := tx.Where("question_attempt_id IN ?", qaIDs).Delete(&models.QuestionAttemptOption{}).Error; err != nil {
					return err
				}
				if err := tx.Where("game_attempt_id IN ?", attemptIDs).Delete(&models.QuestionAttempt{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("participant_id IN ?", participantIDs).Delete(&models.GameAttempt{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("quiz_session_id = ?", sessionID).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
	}

	var questionIDs []uint
	if err := tx.Model(&models.SessionQuestion{}).Where("quiz_session_id = ?", sessionID).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}
	if len(questionIDs) > 0 {
		if err := tx.Where("session_question_id IN ?", questionIDs).Delete(&models.SessionQuestionOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_session_id = ?", sessionID).Delete(&models.SessionQuestion{}).Error; err != nil {
			return err
		}
	}

	return tx.Delete(&models.QuizSession{}, sessionID).Error
}

// BrowseSessions lists active sessions of published public quizzes, with
// optional title search and simple pagination.
func (s *SessionService) BrowseSessions(search string, page, perPage int) ([]BrowseSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 9
	}

	query := s.db.Model(&models.QuizSession{}).
		Joins("JOIN quizzes ON quizzes.id = quiz_sessions.quiz_id").
		Where("quiz_sessions.status = ?", models.SessionStatusActive).
		Where("quiz_sessions.expires_at > ?", time.Now()).
		Where("quizzes.status = ? AND quizzes.visibility = ?", models.QuizStatusPublished, models.VisibilityPublic)
	if search != "" {
		query = query.Where("quizzes.title LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.QuizSession
	err := query.
		Preload("Quiz").
		Preload("Quiz.Creator").
		Preload("Participants").
		Order("quiz_sessions.created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}

	results := make([]BrowseSession, 0, len(sessions))
	for _, session := range sessions {
		results = append(results, BrowseSession{
			ID:               session.ID,
			Code:             session.Code,
			ExpiresAt:        session.ExpiresAt,
			QuizID:           session.Quiz.ID,
			QuizTitle:        session.Quiz.Title,
			QuizDescription:  session.Quiz.Description,
			Difficulty:       session.Quiz.Difficulty,
			Duration:         session.Quiz.Duration,
			Rating:           session.Quiz.Rating,
			HostName:         session.Quiz.Creator.Name,
			ParticipantCount: len(session.Participants),
		})
	}
	return results, total, nil
}

type BrowseSession struct {
	ID               uint      `json:"id"`
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expires_at"`
	QuizID           uint      `json:"quiz_id"`
	QuizTitle        string    `json:"quiz_title"`
	QuizDescription  string    `json:"quiz_description"`
	Difficulty       string    `json:"difficulty"`
	Duration         int       `json:"duration"`
	Rating           float64   `json:"rating"`
	HostName         string    `json:"host_name"`
	ParticipantCount int       `json:"participant_count"`
}

// refreshExpiry reclassifies a session whose expiry has passed. Best
// effort: a failed update leaves the stored status stale but the returned
// value correct.
func (s *SessionService) refreshExpiry(session *models.QuizSession) {
	if session.Status != models.SessionStatusActive && session.Status != models.SessionStatusInactive {
		return
	}
	if !session.Expired(time.Now()) {
		return
	}
	session.Status = models.SessionStatusExpired
	s.db.Model(&models.QuizSession{}).Where("id = ?", session.ID).Update("status", models.SessionStatusExpired)
}
