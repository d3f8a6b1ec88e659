package cli

import (
	"log"

	"quizdeck/config"
	"quizdeck/models"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := config.InitDB(cfg)
			if err != nil {
				return err
			}
			if err := migrate(db); err != nil {
				return err
			}
			log.Printf("migrations applied")
			return nil
		},
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
}
