package handler

import (
	"net/http"

	"github.com/ErlanBelekov/backup-desk/internal/password"
	"github.com/gin-gonic/gin"
)

type APIHandler struct{}

func NewAPIHandler() *APIHandler {
	return &APIHandler{}
}

type strengthRequest struct {
	Password string `json:"password"`
}

type requirementResponse struct {
	Label string `json:"label"`
	Met   bool   `json:"met"`
}

type strengthResponse struct {
	Level        password.Level        `json:"level"`
	Message      string                `json:"message"`
	Width        string                `json:"width"`
	Show         bool                  `json:"show"`
	Acceptable   bool                  `json:"acceptable"`
	Requirements []requirementResponse `json:"requirements"`
}

// POST /api/password-strength
// Drives the live meter on the password screens.
func (h *APIHandler) PasswordStrength(c *gin.Context) {
	var req strengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level := password.Strength(req.Password)
	reqs := password.Requirements(req.Password)
	out := strengthResponse{
		Level:        level,
		Message:      password.Message(level),
		Width:        password.Width(level),
		Show:         password.ShowMeter(level),
		Acceptable:   password.Acceptable(req.Password),
		Requirements: make([]requirementResponse, len(reqs)),
	}
	for i, r := range reqs {
		out.Requirements[i] = requirementResponse{Label: r.Label, Met: r.Met}
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/session
// Never includes tokens.
func (h *APIHandler) Session(c *gin.Context) {
	s := sessionFrom(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errNoSession})
		return
	}

	resp := gin.H{
		"user": gin.H{
			"id":                 s.User.ID,
			"email":              s.User.Email,
			"email_confirmed_at": s.User.EmailConfirmedAt,
		},
	}
	if !s.ExpiresAt.IsZero() {
		resp["expires_at"] = s.ExpiresAt.UTC()
	}
	c.JSON(http.StatusOK, resp)
}
