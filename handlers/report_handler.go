package handlers

import (
	"net/http"

	"quizdeck/services"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

func (h *ReportHandler) SessionReports(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	reports, err := h.reportService.SessionReports(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *ReportHandler) SessionPlayers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}

	report, err := h.reportService.SessionPlayers(sessionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) ParticipantAttempts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	participantID, ok := parseID(c, "participantId")
	if !ok {
		return
	}

	attempts, err := h.reportService.ParticipantAttempts(sessionID, participantID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (h *ReportHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	participantID, ok := parseID(c, "participantId")
	if !ok {
		return
	}

	if err := h.reportService.RemoveParticipant(sessionID, participantID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant removed"})
}

// Leaderboard is public: players watch it from the results screen.
func (h *ReportHandler) Leaderboard(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}

	board, err := h.reportService.Leaderboard(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

func (h *ReportHandler) AdminStats(c *gin.Context) {
	stats, err := h.reportService.AdminStats()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
