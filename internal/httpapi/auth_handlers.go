package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type resendRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "Registration successful, check your email to verify your account", t)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", sess)
}

func (h *Handler) Verify(c *gin.Context) {
	t, err := h.accounts.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Email verified", t)
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.accounts.ResendVerification(c.Request.Context(), req.Email); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "If the account exists and is unverified, a new link has been sent", nil)
}

func (h *Handler) Me(c *gin.Context) {
	t, err := h.accounts.Profile(c.Request.Context(), auth.TeacherID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Profile", t)
}
