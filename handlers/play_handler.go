package handlers

import (
	"net/http"

	"quizdeck/services"

	"github.com/gin-gonic/gin"
)

type PlayHandler struct {
	playService *services.PlayService
}

func NewPlayHandler(playService *services.PlayService) *PlayHandler {
	return &PlayHandler{
		playService: playService,
	}
}

// identity resolves the caller for the public play routes: an optional
// authenticated user, plus the client-held guest token (header or query).
func identity(c *gin.Context, bodyGuestID string) services.Identity {
	id := services.Identity{GuestID: bodyGuestID}
	if userID, ok := currentUserID(c); ok {
		id.UserID = &userID
	}
	if id.GuestID == "" {
		id.GuestID = c.GetHeader("X-Guest-ID")
	}
	if id.GuestID == "" {
		id.GuestID = c.Query("guest_id")
	}
	return id
}

func (h *PlayHandler) JoinSession(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}

	var req services.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.playService.Join(sessionID, identity(c, req.GuestID), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"attempt_id":     result.AttemptID,
		"participant_id": result.ParticipantID,
		"guest_id":       result.GuestID,
		"resumed":        result.Resumed,
	})
}

func (h *PlayHandler) Reattempt(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}

	var req struct {
		GuestID string `json:"guest_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attempt, err := h.playService.Reattempt(sessionID, identity(c, req.GuestID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"attempt_id":     attempt.ID,
		"attempt_number": attempt.AttemptNumber,
	})
}

func (h *PlayHandler) GetAttempt(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	attemptID, ok := parseID(c, "attemptId")
	if !ok {
		return
	}

	state, err := h.playService.GetAttemptState(sessionID, attemptID, identity(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *PlayHandler) SubmitAnswer(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	attemptID, ok := parseID(c, "attemptId")
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.playService.SubmitAnswer(sessionID, attemptID, identity(c, ""), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"correct":             result.Correct,
		"points_awarded":      result.PointsAwarded,
		"completed":           result.Completed,
		"next_question_index": result.NextQuestionIndex,
		"redirect_to":         result.RedirectTo,
	})
}

func (h *PlayHandler) CompleteAttempt(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	attemptID, ok := parseID(c, "attemptId")
	if !ok {
		return
	}

	result, err := h.playService.CompleteAttempt(sessionID, attemptID, identity(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"completed":   result.Completed,
		"score":       result.Score,
		"redirect_to": result.RedirectTo,
	})
}

func (h *PlayHandler) GetResults(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}
	attemptID, ok := parseID(c, "attemptId")
	if !ok {
		return
	}

	results, err := h.playService.GetResults(sessionID, attemptID, identity(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}
