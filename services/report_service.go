package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"quizdeck/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// leaderboardTTL bounds how stale an on-demand leaderboard may be served
// from cache.
const leaderboardTTL = 30 * time.Second

// ReportService computes read-only aggregates over finished play data.
// Nothing here carries invariants of its own; it is all derived state.
type ReportService struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewReportService(db *gorm.DB, redis *redis.Client) *ReportService {
	return &ReportService{db: db, redis: redis}
}

type SessionReport struct {
	ID               uint      `json:"id"`
	SessionName      string    `json:"session_name"`
	Code             string    `json:"code"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int       `json:"participant_count"`
	Accuracy         int       `json:"accuracy"` // mean latest-attempt accuracy, percent
}

// SessionReports summarizes every session the host owns: participant count
// and the mean accuracy of each participant's latest attempt.
func (s *ReportService) SessionReports(hostID uint) ([]SessionReport, error) {
	var sessions []models.QuizSession
	err := s.db.
		Where("host_id = ? AND status <> ?", hostID, models.SessionStatusDeleting).
		Preload("Quiz").
		Preload("Participants.Attempts.Answers").
		Order("created_at").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	reports := make([]SessionReport, 0, len(sessions))
	for _, session := range sessions {
		var accuracies []float64
		for _, participant := range session.Participants {
			latest := latestAttempt(participant.Attempts)
			if latest == nil || len(latest.Answers) == 0 {
				continue
			}
			correct := 0
			for _, qa := range latest.Answers {
				if qa.Correct {
					correct++
				}
			}
			accuracies = append(accuracies, float64(correct)/float64(len(latest.Answers))*100)
		}

		accuracy := 0
		if len(accuracies) > 0 {
			sum := 0.0
			for _, a := range accuracies {
				sum += a
			}
			accuracy = int(sum/float64(len(accuracies)) + 0.5)
		}

		reports = append(reports, SessionReport{
			ID:               session.ID,
			SessionName:      session.Quiz.Title,
			Code:             session.Code,
			Status:           session.Status,
			CreatedAt:        session.CreatedAt,
			ParticipantCount: len(session.Participants),
			Accuracy:         accuracy,
		})
	}
	return reports, nil
}

type PlayerReport struct {
	ParticipantID  uint      `json:"participant_id"`
	DisplayName    string    `json:"display_name"`
	IsGuest        bool      `json:"is_guest"`
	JoinedAt       time.Time `json:"joined_at"`
	AttemptCount   int       `json:"attempt_count"`
	AnsweredCount  int       `json:"answered_count"`
	CorrectAnswers int       `json:"correct_answers"`
	BestScore      int       `json:"best_score"`
	Accuracy       int       `json:"accuracy"` // percent, across all answers
}

type SessionPlayersReport struct {
	SessionID      uint           `json:"session_id"`
	QuizTitle      string         `json:"quiz_title"`
	TotalQuestions int            `json:"total_questions"`
	Accuracy       int            `json:"accuracy"` // percent, across all answers
	Players        []PlayerReport `json:"players"`
}

// SessionPlayers builds the host's per-player breakdown for one session,
// ordered by best score.
func (s *ReportService) SessionPlayers(sessionID uint, hostID uint) (*SessionPlayersReport, error) {
	session, err := s.ownedSession(sessionID, hostID)
	if err != nil {
		return nil, err
	}

	var questionCount int64
	if err := s.db.Model(&models.SessionQuestion{}).Where("quiz_session_id = ?", sessionID).Count(&questionCount).Error; err != nil {
		return nil, err
	}

	var participants []models.Participant
	err = s.db.
		Where("quiz_session_id = ?", sessionID).
		Preload("User").
		Preload("Attempts.Answers").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	report := &SessionPlayersReport{
		SessionID:      sessionID,
		QuizTitle:      session.Quiz.Title,
		TotalQuestions: int(questionCount),
		Players:        make([]PlayerReport, 0, len(participants)),
	}

	totalAnswers, totalCorrect := 0, 0
	for i := range participants {
		p := &participants[i]
		player := PlayerReport{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName(),
			IsGuest:       p.UserID == nil,
			JoinedAt:      p.CreatedAt,
			AttemptCount:  len(p.Attempts),
		}
		for _, attempt := range p.Attempts {
			if attempt.Score > player.BestScore {
				player.BestScore = attempt.Score
			}
			for _, qa := range attempt.Answers {
				player.AnsweredCount++
				if qa.Correct {
					player.CorrectAnswers++
				}
			}
		}
		if player.AnsweredCount > 0 {
			player.Accuracy = (player.CorrectAnswers*100 + player.AnsweredCount/2) / player.AnsweredCount
		}
		totalAnswers += player.AnsweredCount
		totalCorrect += player.CorrectAnswers

		report.Players = append(report.Players, player)
	}

	if totalAnswers > 0 {
		report.Accuracy = (totalCorrect*100 + totalAnswers/2) / totalAnswers
	}

	sort.Slice(report.Players, func(i, j int) bool {
		return report.Players[i].BestScore > report.Players[j].BestScore
	})

	return report, nil
}

// ParticipantAttempts lists one participant's attempts for the host's
// drill-down view.
func (s *ReportService) ParticipantAttempts(sessionID, participantID uint, hostID uint) ([]models.GameAttempt, error) {
	if _, err := s.ownedSession(sessionID, hostID); err != nil {
		return nil, err
	}

	var participant models.Participant
	if err := s.db.Where("id = ? AND quiz_session_id = ?", participantID, sessionID).First(&participant).Error; err != nil {
		return nil, models.ErrNotFound
	}

	var attempts []models.GameAttempt
	err := s.db.
		Where("participant_id = ?", participantID).
		Preload("Answers.SelectedOptions").
		Order("attempt_number").
		Find(&attempts).Error
	return attempts, err
}

// RemoveParticipant lets the host kick a participant; attempts and answers
// go with the row.
func (s *ReportService) RemoveParticipant(sessionID, participantID uint, hostID uint) error {
	if _, err := s.ownedSession(sessionID, hostID); err != nil {
		return err
	}

	var participant models.Participant
	if err := s.db.Where("id = ? AND quiz_session_id = ?", participantID, sessionID).First(&participant).Error; err != nil {
		return models.ErrNotFound
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var attemptIDs []uint
		if err := tx.Model(&models.GameAttempt{}).Where("participant_id = ?", participantID).Pluck("id", &attemptIDs).Error; err != nil {
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
			if err := tx.Where("participant_id = ?", participantID).Delete(&models.GameAttempt{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Participant{}, participantID).Error
	})
}

type LeaderboardEntry struct {
	ParticipantID uint   `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	BestScore     int    `json:"best_score"`
}

type Leaderboard struct {
	SessionID uint               `json:"session_id"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Leaderboard ranks participants by their best completed score. Computed
// on demand from the store; redis keeps a short-TTL copy so a results
// screen being polled doesn't re-aggregate every hit.
func (s *ReportService) Leaderboard(ctx context.Context, sessionID uint) (*Leaderboard, error) {
	key := fmt.Sprintf("leaderboard:%d", sessionID)

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key).Result(); err == nil {
			var cached Leaderboard
			if err := json.Unmarshal([]byte(data), &cached); err == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			log.Printf("redis error reading %s: %v", key, err)
		}
	}

	var count int64
	if err := s.db.Model(&models.QuizSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, models.ErrNotFound
	}

	var participants []models.Participant
	err := s.db.
		Where("quiz_session_id = ?", sessionID).
		Preload("User").
		Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", models.AttemptStatusCompleted)
		}).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{SessionID: sessionID, UpdatedAt: time.Now()}
	for i := range participants {
		p := &participants[i]
		if len(p.Attempts) == 0 {
			continue
		}
		best := 0
		for _, attempt := range p.Attempts {
			if attempt.Score > best {
				best = attempt.Score
			}
		}
		board.Entries = append(board.Entries, LeaderboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName(),
			BestScore:     best,
		})
	}

	sort.Slice(board.Entries, func(i, j int) bool {
		return board.Entries[i].BestScore > board.Entries[j].BestScore
	})

	if s.redis != nil {
		if data, err := json.Marshal(board); err == nil {
			if err := s.redis.Set(ctx, key, data, leaderboardTTL).Err(); err != nil {
				log.Printf("redis error caching %s: %v", key, err)
			}
		}
	}

	return board, nil
}

type AdminStats struct {
	Users    int64 `json:"users"`
	Quizzes  int64 `json:"quizzes"`
	Sessions int64 `json:"sessions"`
	Attempts int64 `json:"attempts"`
}

func (s *ReportService) AdminStats() (*AdminStats, error) {
	stats := &AdminStats{}
	if err := s.db.Model(&models.User{}).Count(&stats.Users).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Quiz{}).Count(&stats.Quizzes).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.QuizSession{}).Count(&stats.Sessions).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.GameAttempt{}).Count(&stats.Attempts).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *ReportService) ownedSession(sessionID, hostID uint) (*models.QuizSession, error) {
	var session models.QuizSession
	if err := s.db.Preload("Quiz").First(&session, sessionID).Error; err != nil {
		return nil, models.ErrNotFound
	}
	if session.HostID != hostID {
		return nil, models.ErrForbidden
	}
	return &session, nil
}

func latestAttempt(attempts []models.GameAttempt) *models.GameAttempt {
	var latest *models.GameAttempt
	for i := range attempts {
		if latest == nil || attempts[i].StartedAt.After(latest.StartedAt) {
			latest = &attempts[i]
		}
	}
	return latest
}
