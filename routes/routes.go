package routes

import (
	"net/http"

	"quizdeck/handlers"
	"quizdeck/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	quizHandler *handlers.QuizHandler,
	sessionHandler *handlers.SessionHandler,
	playHandler *handlers.PlayHandler,
	reportHandler *handlers.ReportHandler,
	jwtSecret string,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// User profile
			protected.GET("/auth/profile", authHandler.GetProfile)
			protected.PUT("/auth/profile", authHandler.UpdateProfile)

			// Quiz authoring
			quizzes := protected.Group("/quizzes")
			{
				quizzes.GET("", quizHandler.ListLibrary)
				quizzes.POST("", quizHandler.CreateQuiz)
				quizzes.PUT("/:id", quizHandler.UpdateQuiz)
				quizzes.DELETE("/:id", quizHandler.DeleteQuiz)
				quizzes.POST("/:id/publish", quizHandler.PublishQuiz)
				quizzes.POST("/:id/archive", quizHandler.ArchiveQuiz)
				quizzes.PATCH("/:id/visibility", quizHandler.SetVisibility)
			}

			// Session hosting
			sessions := protected.Group("/sessions")
			{
				sessions.POST("", sessionHandler.StartSession)
				sessions.GET("", sessionHandler.ListSessions)
				sessions.GET("/:id", sessionHandler.GetSession)
				sessions.PATCH("/:id/status", sessionHandler.ToggleStatus)
				sessions.PATCH("/:id/expiry", sessionHandler.UpdateExpiry)
				sessions.DELETE("/:id", sessionHandler.DeleteSession)
			}

			// Host reporting
			reports := protected.Group("/reports")
			{
				reports.GET("/sessions", reportHandler.SessionReports)
				reports.GET("/sessions/:sessionId/players", reportHandler.SessionPlayers)
				reports.GET("/sessions/:sessionId/participants/:participantId/attempts", reportHandler.ParticipantAttempts)
				reports.DELETE("/sessions/:sessionId/participants/:participantId", reportHandler.RemoveParticipant)
			}

			// Admin-only routes
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/stats", reportHandler.AdminStats)
			}
		}

		// Public routes with optional authentication: logged-in users
		// get their identity attached, guests pass through.
		public := api.Group("/")
		public.Use(middleware.OptionalAuth(jwtSecret))
		{
			public.GET("/join", sessionHandler.ResolveCode)
			public.GET("/quizzes/:id", quizHandler.GetQuiz)

			browse := public.Group("/browse")
			{
				browse.GET("/sessions", sessionHandler.BrowseSessions)
				browse.GET("/quizzes", quizHandler.Trending)
			}

			play := public.Group("/play/sessions/:sessionId")
			{
				play.POST("/join", playHandler.JoinSession)
				play.POST("/reattempt", playHandler.Reattempt)
				play.GET("/attempts/:attemptId", playHandler.GetAttempt)
				play.POST("/attempts/:attemptId/answers", playHandler.SubmitAnswer)
				play.POST("/attempts/:attemptId/complete", playHandler.CompleteAttempt)
				play.GET("/attempts/:attemptId/results", playHandler.GetResults)
				play.GET("/leaderboard", reportHandler.Leaderboard)
			}
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
