package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/amity/server/audit"
	"github.com/kasuganosora/amity/server/friend"
	mw "github.com/kasuganosora/amity/server/middleware"
)

// FriendHandler handles friendship REST endpoints.
type FriendHandler struct {
	svc   *friend.Service
	audit *audit.Service
}

// NewFriendHandler creates a new FriendHandler.
func NewFriendHandler(svc *friend.Service, auditSvc *audit.Service) *FriendHandler {
	return &FriendHandler{svc: svc, audit: auditSvc}
}

type proposeRequest struct {
	AddresseeID uuid.UUID `json:"addressee_id" binding:"required"`
}

// Propose handles POST /api/friends/invitations.
func (h *FriendHandler) Propose(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	inv, err := h.svc.Propose(c.Request.Context(), userID, req.AddresseeID)
	h.record(c, "friend.propose", userID, req, inv, err, start)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitation": inv})
}

// Accept handles POST /api/friends/invitations/:id/accept.
func (h *FriendHandler) Accept(c *gin.Context) {
	h.resolve(c, friend.DecisionAccept)
}

// Reject handles POST /api/friends/invitations/:id/reject.
func (h *FriendHandler) Reject(c *gin.Context) {
	h.resolve(c, friend.DecisionReject)
}

func (h *FriendHandler) resolve(c *gin.Context, decision friend.Decision) {
	userID := mw.GetUserID(c)

	invID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	start := time.Now()
	inv, err := h.svc.Resolve(c.Request.Context(), userID, invID, decision)
	h.record(c, "friend."+string(decision), userID, gin.H{"invitation_id": invID}, inv, err, start)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitation": inv})
}

// ListInvitations handles GET /api/friends/invitations.
func (h *FriendHandler) ListInvitations(c *gin.Context) {
	userID := mw.GetUserID(c)

	invs, err := h.svc.ListPending(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invs})
}

// ListFriends handles GET /api/friends.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID := mw.GetUserID(c)

	friends, err := h.svc.ListFriends(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// writeError maps service errors to HTTP responses.
func (h *FriendHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, friend.ErrUnknownAddressee):
		c.JSON(http.StatusBadRequest, gin.H{"error": "addressee does not exist"})
	case errors.Is(err, friend.ErrSelfInvitation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot invite yourself"})
	case errors.Is(err, friend.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "relationship already exists"})
	case errors.Is(err, friend.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
	case errors.Is(err, friend.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the addressee of this invitation"})
	case errors.Is(err, friend.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invitation is not pending"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *FriendHandler) record(c *gin.Context, action string, userID uuid.UUID, req, resp interface{}, err error, start time.Time) {
	if h.audit == nil {
		return
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	h.audit.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     &userID,
		Action:     action,
		Request:    req,
		Response:   resp,
		Error:      errMsg,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	})
}
