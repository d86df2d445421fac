package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
)

// DuelHandler maps the engine's operations to JSON endpoints.
type DuelHandler struct {
	duels *app.DuelService
	stats *app.StatsService
}

type createDuelRequest struct {
	SubjectID string  `json:"subjectId" binding:"required"`
	LevelID   *string `json:"levelId"`
	BestOf    int     `json:"bestOf"`
}

func (h *DuelHandler) Create(c *gin.Context) {
	var req createDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.duels.Create(c.Request.Context(), currentUser(c), req.SubjectID, req.LevelID, req.BestOf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *DuelHandler) Get(c *gin.Context) {
	view, err := h.duels.Get(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DuelHandler) List(c *gin.Context) {
	var status *domain.DuelStatus
	if raw := c.Query("status"); raw != "" {
		st := domain.DuelStatus(raw)
		switch st {
		case domain.DuelStatusPending, domain.DuelStatusActive, domain.DuelStatusCompleted:
			status = &st
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
			return
		}
	}
	views, err := h.duels.ListForUser(c.Request.Context(), currentUser(c), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duels": views, "total": len(views)})
}

func (h *DuelHandler) ListInvitations(c *gin.Context) {
	views, err := h.duels.ListInvitations(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": views, "total": len(views)})
}

func (h *DuelHandler) EligibleClassmates(c *gin.Context) {
	subjectID := c.Query("subjectId")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId is required"})
		return
	}
	classmates, err := h.duels.EligibleClassmates(c.Request.Context(), currentUser(c), subjectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classmates": classmates, "total": len(classmates)})
}

type inviteRequest struct {
	InviteeID string `json:"inviteeId" binding:"required"`
}

func (h *DuelHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.duels.Invite(c.Request.Context(), c.Param("id"), currentUser(c), req.InviteeID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DuelHandler) Accept(c *gin.Context) {
	if err := h.duels.Accept(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DuelHandler) Decline(c *gin.Context) {
	if err := h.duels.Decline(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DuelHandler) Start(c *gin.Context) {
	if err := h.duels.Start(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type submitAnswerRequest struct {
	QuestionID     string  `json:"questionId" binding:"required"`
	OptionID       *string `json:"optionId"`
	ResponseTimeMs int     `json:"responseTimeMs"`
}

func (h *DuelHandler) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.duels.SubmitAnswer(c.Request.Context(), c.Param("id"), currentUser(c), app.AnswerSubmission{
		QuestionID:     req.QuestionID,
		OptionID:       req.OptionID,
		ResponseTimeMs: req.ResponseTimeMs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	// Result details surface via the duel state on the next fetch.
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *DuelHandler) ForceComplete(c *gin.Context) {
	if err := h.duels.ForceComplete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DuelHandler) Stats(c *gin.Context) {
	stats, err := h.stats.StatsFor(c.Request.Context(), currentUser(c), c.Query("subjectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeError maps the domain error taxonomy to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrDuelNotFound),
		errors.Is(err, domain.ErrSubjectNotFound),
		errors.Is(err, domain.ErrLevelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLevelMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrNotClassmates),
		errors.Is(err, domain.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrDuelNotPending),
		errors.Is(err, domain.ErrDuelNotActive),
		errors.Is(err, domain.ErrAlreadyParticipant),
		errors.Is(err, domain.ErrDuelFull),
		errors.Is(err, domain.ErrNotInvited),
		errors.Is(err, domain.ErrNotEnoughParticipants),
		errors.Is(err, domain.ErrNoOpenRound),
		errors.Is(err, domain.ErrQuestionMismatch),
		errors.Is(err, domain.ErrRoundClosed),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrQuestionPoolExhausted):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
