package cli

import (
	"errors"
	"log"
	"os"

	"quizdeck/config"
	"quizdeck/models"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin account and a demo quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := config.InitDB(cfg)
			if err != nil {
				return err
			}
			if err := migrate(db); err != nil {
				return err
			}
			return seed(db)
		},
	}
}

func seed(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@quizdeck.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	var admin models.User
	err := db.Where("email = ?", email).First(&admin).Error
	if err == nil {
		log.Printf("admin account %s already exists, skipping", email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin = models.User{
		Email:        email,
		Name:         "Admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("created admin account %s", email)

	demo := models.Quiz{
		Title:       "Welcome to QuizDeck",
		Description: "A short demo quiz to try out sessions and scoring.",
		CreatorID:   admin.ID,
		Status:      models.QuizStatusPublished,
		Visibility:  models.VisibilityPublic,
		Difficulty:  models.DifficultyEasy,
		Questions: []models.Question{
			{
				Type:      models.QuestionTypeMultipleChoice,
				Content:   "Which planet is known as the Red Planet?",
				TimeLimit: 30,
				Points:    100,
				Options: []models.Option{
					{Order: 1, Content: "Venus"},
					{Order: 2, Content: "Mars", Correct: true},
					{Order: 3, Content: "Jupiter"},
					{Order: 4, Content: "Saturn"},
				},
			},
			{
				Type:      models.QuestionTypeTrueFalse,
				Content:   "The Pacific is the largest ocean on Earth.",
				TimeLimit: 20,
				Points:    100,
				Options: []models.Option{
					{Order: 1, Content: "True", Correct: true},
					{Order: 2, Content: "False"},
				},
			},
			{
				Type:      models.QuestionTypeMultipleSelect,
				Content:   "Which of these are prime numbers?",
				TimeLimit: 45,
				Points:    200,
				Options: []models.Option{
					{Order: 1, Content: "2", Correct: true},
					{Order: 2, Content: "4"},
					{Order: 3, Content: "7", Correct: true},
					{Order: 4, Content: "9"},
				},
			},
		},
	}
	if err := db.Create(&demo).Error; err != nil {
		return err
	}
	log.Printf("created demo quiz %q (id=%d)", demo.Title, demo.ID)
	return nil
}
