package cli

import (
	"log"
	"net"

	"quizdeck/config"
	"quizdeck/handlers"
	"quizdeck/middleware"
	"quizdeck/routes"
	"quizdeck/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*port)
		},
	}
}

func runServer(port string) error {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	if err := migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	quizService := services.NewQuizService(db)
	sessionService := services.NewSessionService(db)
	playService := services.NewPlayService(db)
	reportService := services.NewReportService(db, redisClient)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	quizHandler := handlers.NewQuizHandler(quizService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	playHandler := handlers.NewPlayHandler(playService)
	reportHandler := handlers.NewReportHandler(reportService)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, quizHandler, sessionHandler, playHandler, reportHandler, cfg.JWTSecret)

	if port == "" {
		port = cfg.Port
	}
	addr := net.JoinHostPort(cfg.BindAddress, port)

	// Start server
	log.Printf("Server starting on %s", addr)
	return router.Run(addr)
}
