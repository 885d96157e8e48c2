package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/usecase"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	newProfile ProfileFactory
	newActions ActionsFactory
	now        func() time.Time
	logger     *slog.Logger
}

func NewDashboardHandler(newProfile ProfileFactory, newActions ActionsFactory, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		newProfile: newProfile,
		newActions: newActions,
		now:        time.Now,
		logger:     logger.With("component", "dashboard_handler"),
	}
}

type profileForm struct {
	Email string `form:"email" binding:"required,email"`
}

// GET /dashboard
// A missing profile row is shown as an error on the page, not a failure.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	page, _ := h.load(c)
	c.HTML(http.StatusOK, tmplDashboard, page)
}

// POST /profile
func (h *DashboardHandler) UpdateProfile(c *gin.Context) {
	var form profileForm
	bindErr := c.ShouldBind(&form)

	page, accessor := h.load(c)
	if page.Profile == nil {
		c.HTML(http.StatusNotFound, tmplDashboard, page)
		return
	}
	if bindErr != nil {
		fields, ok := fieldErrors(bindErr)
		if !ok {
			page.Error = errInvalidForm
		}
		page.FieldErrors = fields
		c.HTML(http.StatusUnprocessableEntity, tmplDashboard, page)
		return
	}

	now := h.now().UTC()
	if !accessor.Update(c.Request.Context(), domain.ProfileUpdate{Email: &form.Email, UpdatedAt: &now}) {
		page.Error = accessor.Error()
		c.HTML(http.StatusBadGateway, tmplDashboard, page)
		return
	}
	page.Profile = accessor.Profile()
	page.Notice = msgProfileUpdated
	c.HTML(http.StatusOK, tmplDashboard, page)
}

// POST /signout
func (h *DashboardHandler) SignOut(c *gin.Context) {
	nav := &redirect{}
	actions := h.newActions(nav)
	if err := actions.SignOut(c.Request.Context()); err != nil {
		page, _ := h.load(c)
		page.Error = actions.Error()
		c.HTML(statusFor(err), tmplDashboard, page)
		return
	}
	c.Redirect(http.StatusSeeOther, nav.to)
}

func (h *DashboardHandler) load(c *gin.Context) (Page, *usecase.ProfileAccessor) {
	page := Page{Title: "Dashboard"}
	accessor := h.newProfile()

	s := sessionFrom(c)
	if s == nil {
		// The guard only admits protected routes with a session.
		page.Error = errNoSession
		return page, accessor
	}
	page.UserEmail = s.User.Email

	if _, err := accessor.Fetch(c.Request.Context(), s.User.ID); err != nil {
		page.Error = accessor.Error()
		return page, accessor
	}
	page.Profile = accessor.Profile()
	return page, accessor
}
