package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quizdeck/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayService drives the participant-facing lifecycle: joining a session,
// progressing an attempt question by question, and scoring it.
type PlayService struct {
	db *gorm.DB
}

func NewPlayService(db *gorm.DB) *PlayService {
	return &PlayService{db: db}
}

// Identity is the resolved caller: an authenticated user id, a guest token,
// or neither (in which case Join issues a fresh guest token).
type Identity struct {
	UserID  *uint
	GuestID string
}

type JoinRequest struct {
	Name    string `json:"name"`
	GuestID string `json:"guest_id"`
}

type JoinResult struct {
	AttemptID     uint   `json:"attempt_id"`
	ParticipantID uint   `json:"participant_id"`
	GuestID       string `json:"guest_id,omitempty"`
	Resumed       bool   `json:"resumed"`
}

// Join resolves the caller to a participant and an in-progress attempt.
// Joining twice with the same identity resumes rather than duplicates.
func (s *PlayService) Join(sessionID uint, identity Identity, name string) (*JoinResult, error) {
	if _, err := s.playableSession(sessionID, true); err != nil {
		return nil, err
	}

	guestID := identity.GuestID
	if identity.UserID == nil && guestID == "" {
		guestID = uuid.NewString()
	}

	participant, err := s.findParticipant(sessionID, identity.UserID, guestID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if participant == nil {
		participant, err = s.createParticipant(sessionID, identity.UserID, guestID, name)
		if err != nil {
			return nil, err
		}
	}

	// The resume check must also run when the participant row was just
	// re-resolved after a lost insert race: the winning join may have
	// opened an attempt already, and at most one may be in progress.
	if attempt, err := s.inProgressAttempt(participant.ID); err != nil {
		return nil, err
	} else if attempt != nil {
		return &JoinResult{
			AttemptID:     attempt.ID,
			ParticipantID: participant.ID,
			GuestID:       guestID,
			Resumed:       true,
		}, nil
	}

	attempt, err := s.createAttempt(sessionID, participant.ID)
	if err != nil {
		return nil, err
	}

	return &JoinResult{
		AttemptID:     attempt.ID,
		ParticipantID: participant.ID,
		GuestID:       guestID,
	}, nil
}

// Reattempt starts a fresh attempt for an existing participant. Rejected
// while an attempt is still in progress; the caller should resume that one
// through Join instead.
func (s *PlayService) Reattempt(sessionID uint, identity Identity) (*models.GameAttempt, error) {
	if _, err := s.playableSession(sessionID, true); err != nil {
		return nil, err
	}

	participant, err := s.findParticipant(sessionID, identity.UserID, identity.GuestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrMustJoinFirst
		}
		return nil, err
	}

	inProgress, err := s.inProgressAttempt(participant.ID)
	if err != nil {
		return nil, err
	}
	if inProgress != nil {
		return nil, models.ErrAttemptInProgress
	}

	return s.createAttempt(sessionID, participant.ID)
}

type SubmitAnswerRequest struct {
	QuestionID        uint   `json:"question_id" binding:"required"`
	SelectedOptionID  *uint  `json:"selected_option_id"`
	SelectedOptionIDs []uint `json:"selected_option_ids"`
	TimeTakenMs       int    `json:"time_taken_ms" binding:"omitempty,min=0"`
}

type SubmitAnswerResult struct {
	Correct           bool   `json:"correct"`
	PointsAwarded     int    `json:"points_awarded"`
	Completed         bool   `json:"completed"`
	NextQuestionIndex int    `json:"next_question_index,omitempty"`
	RedirectTo        string `json:"redirect_to,omitempty"`
}

// SubmitAnswer records exactly one answer for (attempt, question), scores
// it under the question's arity rule, and completes the attempt once every
// session question has an answer.
func (s *PlayService) SubmitAnswer(sessionID, attemptID uint, identity Identity, req *SubmitAnswerRequest) (*SubmitAnswerResult, error) {
	attempt, err := s.ownedAttempt(sessionID, attemptID, identity)
	if err != nil {
		return nil, err
	}
	if _, err := s.playableSession(sessionID, false); err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptStatusInProgress {
		return nil, models.ErrAttemptCompleted
	}

	var existing int64
	err = s.db.Model(&models.QuestionAttempt{}).
		Where("game_attempt_id = ? AND session_question_id = ?", attemptID, req.QuestionID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, models.ErrAlreadyAnswered
	}

	var question models.SessionQuestion
	err = s.db.
		Where("id = ? AND quiz_session_id = ?", req.QuestionID, sessionID).
		Preload("Options").
		First(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrInvalidSelection
	}
	if err != nil {
		return nil, err
	}

	correct, selectedID, selectedIDs, err := evaluateAnswer(&question, req)
	if err != nil {
		return nil, err
	}

	points := 0
	if correct {
		points = question.Points
	}

	result := &SubmitAnswerResult{Correct: correct, PointsAwarded: points}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		qa := models.QuestionAttempt{
			GameAttemptID:     attemptID,
			SessionQuestionID: question.ID,
			SelectedOptionID:  selectedID,
			Correct:           correct,
			TimeTakenMs:       req.TimeTakenMs,
			PointsAwarded:     points,
		}
		if err := tx.Create(&qa).Error; err != nil {
			// Unique index on (attempt, question): a concurrent submit
			// that won the race is the same outcome as the pre-check.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.ErrAlreadyAnswered
			}
			return err
		}
		for _, optionID := range selectedIDs {
			row := models.QuestionAttemptOption{
				QuestionAttemptID: qa.ID,
				SessionOptionID:   optionID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		questionIDs, answered, err := attemptProgress(tx, sessionID, attemptID)
		if err != nil {
			return err
		}

		if len(answered) == len(questionIDs) {
			total := 0
			for _, pts := range answered {
				total += pts
			}
			if err := completeAttemptRow(tx, attempt, total); err != nil {
				return err
			}
			result.Completed = true
			result.RedirectTo = resultsPath(sessionID, attemptID)
			return nil
		}

		result.NextQuestionIndex = nextUnansweredIndex(questionIDs, answered, question.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type CompleteResult struct {
	Completed  bool   `json:"completed"`
	Score      int    `json:"score"`
	RedirectTo string `json:"redirect_to"`
}

// CompleteAttempt force-finishes an in-progress attempt, e.g. on time
// expiry or when the player gives up. Unanswered questions contribute zero
// and are never back-filled.
func (s *PlayService) CompleteAttempt(sessionID, attemptID uint, identity Identity) (*CompleteResult, error) {
	attempt, err := s.ownedAttempt(sessionID, attemptID, identity)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptStatusInProgress {
		return nil, models.ErrAttemptCompleted
	}

	var total int
	err = s.db.Transaction(func(tx *gorm.DB) error {
		_, answered, err := attemptProgress(tx, sessionID, attemptID)
		if err != nil {
			return err
		}
		for _, pts := range answered {
			total += pts
		}
		return completeAttemptRow(tx, attempt, total)
	})
	if err != nil {
		return nil, err
	}

	return &CompleteResult{
		Completed:  true,
		Score:      total,
		RedirectTo: resultsPath(sessionID, attemptID),
	}, nil
}

// PlayQuestion is a session question as exposed on the play screen:
// options carry no correctness flags.
type PlayQuestion struct {
	ID        uint         `json:"id"`
	Type      string       `json:"type"`
	Content   string       `json:"content"`
	TimeLimit int          `json:"time_limit"`
	Points    int          `json:"points"`
	Options   []PlayOption `json:"options"`
	Answered  bool         `json:"answered"`
}

type PlayOption struct {
	ID      uint   `json:"id"`
	Order   int    `json:"order"`
	Content string `json:"content"`
}

type AttemptState struct {
	Attempt              *models.GameAttempt `json:"attempt"`
	Questions            []PlayQuestion      `json:"questions"`
	CurrentQuestionIndex int                 `json:"current_question_index"`
	TotalQuestions       int                 `json:"total_questions"`
	RedirectTo           string              `json:"redirect_to,omitempty"`
}

// GetAttemptState loads the play screen: the question list without correct
// flags, which questions are already answered, and where the player should
// be. Completed attempts are redirected to results.
func (s *PlayService) GetAttemptState(sessionID, attemptID uint, identity Identity) (*AttemptState, error) {
	attempt, err := s.ownedAttempt(sessionID, attemptID, identity)
	if err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptStatusCompleted {
		return &AttemptState{Attempt: attempt, RedirectTo: resultsPath(sessionID, attemptID)}, nil
	}

	if _, err := s.playableSession(sessionID, false); err != nil {
		return nil, err
	}

	questions, err := s.sessionQuestions(sessionID)
	if err != nil {
		return nil, err
	}

	answeredRows, err := s.questionAttempts(attemptID)
	if err != nil {
		return nil, err
	}
	answered := map[uint]bool{}
	for _, qa := range answeredRows {
		answered[qa.SessionQuestionID] = true
	}

	state := &AttemptState{
		Attempt:        attempt,
		Questions:      make([]PlayQuestion, 0, len(questions)),
		TotalQuestions: len(questions),
	}

	currentIndex := len(questions) - 1
	currentFound := false
	for i, q := range questions {
		pq := PlayQuestion{
			ID:        q.ID,
			Type:      q.Type,
			Content:   q.Content,
			TimeLimit: q.TimeLimit,
			Points:    q.Points,
			Answered:  answered[q.ID],
			Options:   make([]PlayOption, 0, len(q.Options)),
		}
		for _, opt := range q.Options {
			pq.Options = append(pq.Options, PlayOption{ID: opt.ID, Order: opt.Order, Content: opt.Content})
		}
		state.Questions = append(state.Questions, pq)

		if !currentFound && !answered[q.ID] {
			currentIndex = i
			currentFound = true
		}
	}
	state.CurrentQuestionIndex = currentIndex

	return state, nil
}

// ResultQuestion pairs a session question with the recorded answer, the
// option(s) the player picked, and the correct option set.
type ResultQuestion struct {
	ID              uint                           `json:"id"`
	Type            string                         `json:"type"`
	Content         string                         `json:"content"`
	Points          int                            `json:"points"`
	Options         []models.SessionQuestionOption `json:"options"`
	Answered        bool                           `json:"answered"`
	Correct         bool                           `json:"correct"`
	PointsAwarded   int                            `json:"points_awarded"`
	TimeTakenMs     int                            `json:"time_taken_ms"`
	SelectedOptions []uint                         `json:"selected_options"`
	CorrectOptions  []uint                         `json:"correct_options"`
}

type ResultSummary struct {
	TotalQuestions      int `json:"total_questions"`
	AnsweredQuestions   int `json:"answered_questions"`
	CorrectAnswers      int `json:"correct_answers"`
	IncorrectAnswers    int `json:"incorrect_answers"`
	Score               int `json:"score"`
	TotalPossiblePoints int `json:"total_possible_points"`
	Percentage          int `json:"percentage"`
	TotalTimeTakenMs    int `json:"total_time_taken_ms"`
}

type AttemptResults struct {
	Attempt     *models.GameAttempt `json:"attempt"`
	Participant *models.Participant `json:"participant"`
	Questions   []ResultQuestion    `json:"questions"`
	Summary     ResultSummary       `json:"summary"`
}

// GetResults builds the results page for an attempt, correct answers
// included.
func (s *PlayService) GetResults(sessionID, attemptID uint, identity Identity) (*AttemptResults, error) {
	attempt, err := s.ownedAttempt(sessionID, attemptID, identity)
	if err != nil {
		return nil, err
	}

	questions, err := s.sessionQuestions(sessionID)
	if err != nil {
		return nil, err
	}

	answeredRows, err := s.questionAttempts(attemptID)
	if err != nil {
		return nil, err
	}
	byQuestion := map[uint]*models.QuestionAttempt{}
	for i := range answeredRows {
		byQuestion[answeredRows[i].SessionQuestionID] = &answeredRows[i]
	}

	results := &AttemptResults{
		Attempt:     attempt,
		Participant: &attempt.Participant,
		Questions:   make([]ResultQuestion, 0, len(questions)),
	}
	summary := &results.Summary
	summary.TotalQuestions = len(questions)
	summary.Score = attempt.Score

	for _, q := range questions {
		rq := ResultQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Content: q.Content,
			Points:  q.Points,
			Options: q.Options,
		}
		summary.TotalPossiblePoints += q.Points

		for _, opt := range q.Options {
			if opt.Correct {
				rq.CorrectOptions = append(rq.CorrectOptions, opt.ID)
			}
		}

		if qa := byQuestion[q.ID]; qa != nil {
			rq.Answered = true
			rq.Correct = qa.Correct
			rq.PointsAwarded = qa.PointsAwarded
			rq.TimeTakenMs = qa.TimeTakenMs
			if qa.SelectedOptionID != nil {
				rq.SelectedOptions = []uint{*qa.SelectedOptionID}
			} else {
				for _, sel := range qa.SelectedOptions {
					rq.SelectedOptions = append(rq.SelectedOptions, sel.SessionOptionID)
				}
			}

			summary.AnsweredQuestions++
			if qa.Correct {
				summary.CorrectAnswers++
			}
			summary.TotalTimeTakenMs += qa.TimeTakenMs
		}

		results.Questions = append(results.Questions, rq)
	}

	summary.IncorrectAnswers = summary.AnsweredQuestions - summary.CorrectAnswers
	if summary.TotalPossiblePoints > 0 {
		summary.Percentage = (summary.Score*100 + summary.TotalPossiblePoints/2) / summary.TotalPossiblePoints
	}

	return results, nil
}

// evaluateAnswer validates selection arity against the question type and
// computes correctness. Single-select: the one chosen option's flag.
// Multi-select: the chosen set must equal the correct set exactly; an empty
// set is a wrong answer, not a validation error.
func evaluateAnswer(question *models.SessionQuestion, req *SubmitAnswerRequest) (correct bool, selectedID *uint, selectedIDs []uint, err error) {
	valid := map[uint]bool{}
	correctSet := map[uint]bool{}
	for _, opt := range question.Options {
		valid[opt.ID] = true
		if opt.Correct {
			correctSet[opt.ID] = true
		}
	}

	if models.IsMultiSelect(question.Type) {
		if req.SelectedOptionID != nil {
			return false, nil, nil, models.ErrInvalidSelection
		}
		seen := map[uint]bool{}
		for _, id := range req.SelectedOptionIDs {
			if !valid[id] {
				return false, nil, nil, models.ErrInvalidSelection
			}
			if !seen[id] {
				seen[id] = true
				selectedIDs = append(selectedIDs, id)
			}
		}

		correct = len(seen) == len(correctSet)
		for id := range seen {
			if !correctSet[id] {
				correct = false
			}
		}
		return correct, nil, selectedIDs, nil
	}

	if req.SelectedOptionID == nil || len(req.SelectedOptionIDs) > 0 {
		return false, nil, nil, models.ErrInvalidSelection
	}
	if !valid[*req.SelectedOptionID] {
		return false, nil, nil, models.ErrInvalidSelection
	}
	return correctSet[*req.SelectedOptionID], req.SelectedOptionID, nil, nil
}

// nextUnansweredIndex scans forward from the question just answered and
// wraps to the start, so the hint never points at an answered question.
func nextUnansweredIndex(questionIDs []uint, answered map[uint]int, currentID uint) int {
	current := 0
	for i, id := range questionIDs {
		if id == currentID {
			current = i
			break
		}
	}

	n := len(questionIDs)
	for offset := 1; offset < n; offset++ {
		i := (current + offset) % n
		if _, ok := answered[questionIDs[i]]; !ok {
			return i
		}
	}
	return current
}

// attemptProgress returns the session's question ids in play order and the
// points awarded per answered question.
func attemptProgress(tx *gorm.DB, sessionID, attemptID uint) ([]uint, map[uint]int, error) {
	var questionIDs []uint
	err := tx.Model(&models.SessionQuestion{}).
		Where("quiz_session_id = ?", sessionID).
		Order("id").
		Pluck("id", &questionIDs).Error
	if err != nil {
		return nil, nil, err
	}

	var rows []models.QuestionAttempt
	if err := tx.Where("game_attempt_id = ?", attemptID).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	answered := make(map[uint]int, len(rows))
	for _, qa := range rows {
		answered[qa.SessionQuestionID] = qa.PointsAwarded
	}
	return questionIDs, answered, nil
}

func completeAttemptRow(tx *gorm.DB, attempt *models.GameAttempt, score int) error {
	now := time.Now()
	err := tx.Model(attempt).Updates(map[string]interface{}{
		"status":       models.AttemptStatusCompleted,
		"score":        score,
		"completed_at": now,
	}).Error
	if err != nil {
		return err
	}
	attempt.Status = models.AttemptStatusCompleted
	attempt.Score = score
	attempt.CompletedAt = &now
	return nil
}

// playableSession loads the session and enforces joinability. Joining
// requires active; ongoing play also tolerates deleting, matching how a
// host teardown should not kick players mid-question.
func (s *PlayService) playableSession(sessionID uint, joining bool) (*models.QuizSession, error) {
	var session models.QuizSession
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return nil, models.ErrNotFound
	}

	if joining {
		if session.Status != models.SessionStatusActive {
			return nil, models.ErrSessionNotActive
		}
	} else {
		if session.Status != models.SessionStatusActive && session.Status != models.SessionStatusDeleting {
			return nil, models.ErrSessionNotActive
		}
	}

	if session.Expired(time.Now()) {
		s.db.Model(&session).Update("status", models.SessionStatusExpired)
		return nil, models.ErrSessionExpired
	}
	return &session, nil
}

func (s *PlayService) findParticipant(sessionID uint, userID *uint, guestID string) (*models.Participant, error) {
	var participant models.Participant
	query := s.db.Where("quiz_session_id = ?", sessionID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	} else if guestID != "" {
		query = query.Where("guest_id = ?", guestID)
	} else {
		return nil, gorm.ErrRecordNotFound
	}

	if err := query.First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &participant, nil
}

func (s *PlayService) createParticipant(sessionID uint, userID *uint, guestID, name string) (*models.Participant, error) {
	name = strings.TrimSpace(name)
	if userID == nil {
		if name == "" {
			return nil, models.ErrNameRequired
		}
	}
	if len(name) > 100 {
		return nil, models.ErrNameTooLong
	}

	participant := models.Participant{
		QuizSessionID: sessionID,
		UserID:        userID,
		Name:          name,
	}
	if userID == nil {
		participant.GuestID = &guestID
	}

	if err := s.db.Create(&participant).Error; err != nil {
		// Concurrent join with the same identity: the row that won the
		// race is the participant we wanted.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.findParticipant(sessionID, userID, guestID)
		}
		return nil, err
	}
	return &participant, nil
}

func (s *PlayService) inProgressAttempt(participantID uint) (*models.GameAttempt, error) {
	var attempt models.GameAttempt
	err := s.db.
		Where("participant_id = ? AND status = ?", participantID, models.AttemptStatusInProgress).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (s *PlayService) createAttempt(sessionID, participantID uint) (*models.GameAttempt, error) {
	var maxNumber int
	err := s.db.Model(&models.GameAttempt{}).
		Where("participant_id = ?", participantID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return nil, err
	}

	attempt := models.GameAttempt{
		QuizSessionID: sessionID,
		ParticipantID: participantID,
		AttemptNumber: maxNumber + 1,
		Status:        models.AttemptStatusInProgress,
		StartedAt:     time.Now(),
	}
	if err := s.db.Create(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// ownedAttempt loads the attempt with its participant and verifies the
// caller's identity matches. A wrong identity gets a generic denial.
func (s *PlayService) ownedAttempt(sessionID, attemptID uint, identity Identity) (*models.GameAttempt, error) {
	var attempt models.GameAttempt
	err := s.db.
		Where("id = ? AND quiz_session_id = ?", attemptID, sessionID).
		Preload("Participant").
		Preload("Participant.User").
		First(&attempt).Error
	if err != nil {
		return nil, models.ErrNotFound
	}

	participant := attempt.Participant
	if participant.UserID != nil {
		if identity.UserID == nil || *identity.UserID != *participant.UserID {
			return nil, models.ErrForbidden
		}
	} else if participant.GuestID != nil {
		if identity.GuestID == "" || identity.GuestID != *participant.GuestID {
			return nil, models.ErrForbidden
		}
	}

	return &attempt, nil
}

func (s *PlayService) sessionQuestions(sessionID uint) ([]models.SessionQuestion, error) {
	var questions []models.SessionQuestion
	err := s.db.
		Where("quiz_session_id = ?", sessionID).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			// "order" is a reserved word; let gorm quote it per dialect.
			return db.Order(clause.OrderByColumn{Column: clause.Column{Table: "session_question_options", Name: "order"}})
		}).
		Order("id").
		Find(&questions).Error
	return questions, err
}

func (s *PlayService) questionAttempts(attemptID uint) ([]models.QuestionAttempt, error) {
	var rows []models.QuestionAttempt
	err := s.db.
		Where("game_attempt_id = ?", attemptID).
		Preload("SelectedOptions").
		Find(&rows).Error
	return rows, err
}

func resultsPath(sessionID, attemptID uint) string {
	return fmt.Sprintf("/play/sessions/%d/attempts/%d/results", sessionID, attemptID)
}
