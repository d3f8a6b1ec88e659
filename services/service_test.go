package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"quizdeck/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// openTestDB returns a fresh in-memory database. The shared cache keeps
// the schema visible across the pool's connections.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:quizdeck_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Option{},
		&models.QuizSession{},
		&models.SessionQuestion{},
		&models.SessionQuestionOption{},
		&models.Participant{},
		&models.GameAttempt{},
		&models.QuestionAttempt{},
		&models.QuestionAttemptOption{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		Name:         "Test Host",
		PasswordHash: "x",
		Role:         models.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

// createTestQuiz builds a three-question public quiz: one multiple
// choice, one true/false, one multiple select worth double points.
func createTestQuiz(t *testing.T, db *gorm.DB, creatorID uint) *models.Quiz {
	t.Helper()

	svc := NewQuizService(db)
	quiz, err := svc.CreateQuiz(creatorID, &CreateQuizRequest{
		Title:      "Capitals",
		Visibility: models.VisibilityPublic,
		Questions: []CreateQuestionRequest{
			{
				Type:      models.QuestionTypeMultipleChoice,
				Content:   "Capital of France?",
				TimeLimit: 30,
				Points:    100,
				Options: []CreateOptionRequest{
					{Content: "Paris", Correct: true},
					{Content: "Lyon"},
				},
			},
			{
				Type:      models.QuestionTypeTrueFalse,
				Content:   "Oslo is in Norway.",
				TimeLimit: 20,
				Points:    100,
				Options: []CreateOptionRequest{
					{Content: "True", Correct: true},
					{Content: "False"},
				},
			},
			{
				Type:      models.QuestionTypeMultipleSelect,
				Content:   "Which are in Spain?",
				TimeLimit: 45,
				Points:    200,
				Options: []CreateOptionRequest{
					{Content: "Madrid", Correct: true},
					{Content: "Porto"},
					{Content: "Seville", Correct: true},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if _, err := svc.PublishQuiz(quiz.ID, creatorID); err != nil {
		t.Fatalf("publish quiz: %v", err)
	}
	return quiz
}

// fixture is a host with a published quiz and an active session over it.
type fixture struct {
	db        *gorm.DB
	host      *models.User
	quiz      *models.Quiz
	session   *models.QuizSession
	questions []models.SessionQuestion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openTestDB(t)
	host := createTestUser(t, db, "host@example.com")
	quiz := createTestQuiz(t, db, host.ID)

	svc := NewSessionService(db)
	session, err := svc.StartSession(quiz.ID, host.ID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.ToggleStatus(session.ID, host.ID); err != nil {
		t.Fatalf("activate session: %v", err)
	}
	session.Status = models.SessionStatusActive

	play := NewPlayService(db)
	questions, err := play.sessionQuestions(session.ID)
	if err != nil {
		t.Fatalf("load session questions: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 session questions, got %d", len(questions))
	}

	return &fixture{db: db, host: host, quiz: quiz, session: session, questions: questions}
}

// correctOption returns the first correct option of a session question.
func correctOption(t *testing.T, q *models.SessionQuestion) *models.SessionQuestionOption {
	t.Helper()
	for i := range q.Options {
		if q.Options[i].Correct {
			return &q.Options[i]
		}
	}
	t.Fatalf("question %d has no correct option", q.ID)
	return nil
}

func wrongOption(t *testing.T, q *models.SessionQuestion) *models.SessionQuestionOption {
	t.Helper()
	for i := range q.Options {
		if !q.Options[i].Correct {
			return &q.Options[i]
		}
	}
	t.Fatalf("question %d has no wrong option", q.ID)
	return nil
}

func correctOptionIDs(q *models.SessionQuestion) []uint {
	var ids []uint
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

func uintPtr(v uint) *uint { return &v }
