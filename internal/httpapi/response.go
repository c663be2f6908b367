package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rollcall/internal/account"
	"rollcall/internal/attendance"
	"rollcall/internal/classroom"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("invalid request body")

// statusOf lists the service errors that reach clients, with their status and
// the message shown to users. Anything else is a 500.
var statusOf = []struct {
	err     error
	status  int
	message string
}{
	{errBadRequest, http.StatusBadRequest, "Invalid request body"},

	{account.ErrNameRequired, http.StatusBadRequest, "Name is required"},
	{account.ErrInvalidEmail, http.StatusBadRequest, "A valid email address is required"},
	{account.ErrWeakPassword, http.StatusBadRequest, "Password must be at least 6 characters"},
	{account.ErrPasswordTooLong, http.StatusBadRequest, "Password must be at most 72 bytes"},
	{account.ErrTokenExpired, http.StatusBadRequest, "Verification link has expired"},
	{account.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{account.ErrEmailNotVerified, http.StatusForbidden, "Email not verified"},
	{account.ErrInvalidToken, http.StatusNotFound, "Invalid verification link"},
	{account.ErrTeacherNotFound, http.StatusNotFound, "Teacher not found"},
	{account.ErrEmailTaken, http.StatusConflict, "Email is already registered"},

	{classroom.ErrSubjectRequired, http.StatusBadRequest, "Subject is required"},
	{classroom.ErrInvalidRollRange, http.StatusBadRequest, "Roll number range must be two 10-digit roll numbers like 2024179001-2024179060"},
	{classroom.ErrInvalidDuration, http.StatusBadRequest, "Session duration must be between 1 minute and 24 hours"},
	{classroom.ErrAccessDenied, http.StatusForbidden, "Access denied"},
	{classroom.ErrClassNotFound, http.StatusNotFound, "Class not found"},
	{classroom.ErrSessionNotFound, http.StatusNotFound, "Session not found"},

	{attendance.ErrImageRequired, http.StatusBadRequest, "Face image is required"},
	{attendance.ErrInvalidImage, http.StatusBadRequest, "Face image could not be decoded"},
	{attendance.ErrSessionInactive, http.StatusBadRequest, "Session is not active"},
	{attendance.ErrSessionExpired, http.StatusBadRequest, "Session has expired"},
	{attendance.ErrInvalidRollFormat, http.StatusBadRequest, "Invalid roll number format"},
	{attendance.ErrRollNotInRange, http.StatusBadRequest, "Roll number is not registered for this class"},
	{attendance.ErrNoFace, http.StatusBadRequest, "No face detected in image"},
	{attendance.ErrFaceMismatch, http.StatusUnauthorized, "Face verification failed"},
	{attendance.ErrAccessDenied, http.StatusForbidden, "Access denied"},
	{attendance.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{attendance.ErrClassNotFound, http.StatusNotFound, "Class not found"},
	{attendance.ErrSubmissionInProgress, http.StatusConflict, "Attendance submission already in progress"},
	{attendance.ErrAlreadyMarked, http.StatusConflict, "Attendance already marked for this session"},
	{attendance.ErrStudentExists, http.StatusConflict, "Student already registered for this class"},
}

var errorCodes = map[int]string{
	http.StatusBadRequest:   "bad_request",
	http.StatusUnauthorized: "unauthorized",
	http.StatusForbidden:    "forbidden",
	http.StatusNotFound:     "not_found",
	http.StatusConflict:     "conflict",
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// messageOf returns the user-facing text for a listed error.
func messageOf(err error) string {
	for _, m := range statusOf {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return "Internal server error"
}

// fail writes the error envelope. Unknown errors are logged and hidden behind a generic message.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	for _, m := range statusOf {
		if errors.Is(err, m.err) {
			c.AbortWithStatusJSON(m.status, Envelope{Message: m.message, Error: errorCodes[m.status]})
			return
		}
	}
	_ = c.Error(err)
	log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{Message: "Internal server error", Error: "internal_error"})
}

// badRequest reports a body that failed to bind, with the binding detail in error.
func badRequest(c *gin.Context, detail error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Message: messageOf(errBadRequest), Error: detail.Error()})
}
