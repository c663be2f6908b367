package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
)

type classRequest struct {
	Subject   string `json:"subject" binding:"required"`
	RollRange string `json:"rollRange" binding:"required"`
}

type classUpdateRequest struct {
	Subject   *string `json:"subject"`
	RollRange *string `json:"rollRange"`
}

type studentRequest struct {
	RollNumber string `json:"rollNumber" binding:"required"`
	Name       string `json:"name"`
}

type sessionRequest struct {
	ClassID         string `json:"classId" binding:"required"`
	DurationMinutes int    `json:"durationMinutes"`
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := h.classes.CreateClass(c.Request.Context(), auth.TeacherID(c), req.Subject, req.RollRange)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "Class created", class)
}

func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.classes.ListClasses(c.Request.Context(), auth.TeacherID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Classes", classes)
}

func (h *Handler) GetClass(c *gin.Context) {
	class, err := h.classes.GetClass(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Class", class)
}

func (h *Handler) UpdateClass(c *gin.Context) {
	var req classUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := h.classes.UpdateClass(c.Request.Context(), auth.TeacherID(c), c.Param("id"), req.Subject, req.RollRange)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Class updated", class)
}

func (h *Handler) DeleteClass(c *gin.Context) {
	if err := h.classes.DeleteClass(c.Request.Context(), auth.TeacherID(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Class deleted", nil)
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.attendance.ListStudents(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Students", students)
}

func (h *Handler) RegisterStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.attendance.RegisterStudent(c.Request.Context(), auth.TeacherID(c), c.Param("id"), req.RollNumber, req.Name)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "Student registered", st)
}

func (h *Handler) ClassReport(c *gin.Context) {
	rep, err := h.attendance.ClassReport(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Class report", rep)
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.classes.CreateSession(c.Request.Context(), auth.TeacherID(c), req.ClassID, time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "Session created", sess)
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.classes.ListSessions(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Sessions", sessions)
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.classes.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Session", sess)
}

func (h *Handler) SessionQR(c *gin.Context) {
	png, err := h.classes.SessionQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) EndSession(c *gin.Context) {
	sess, err := h.classes.EndSession(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Session ended", sess)
}

func (h *Handler) SessionAttendance(c *gin.Context) {
	records, err := h.attendance.SessionAttendance(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Session attendance", records)
}

func (h *Handler) SessionSummary(c *gin.Context) {
	sum, err := h.attendance.SessionSummaryFor(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "Session summary", sum)
}
