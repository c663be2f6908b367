package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/model"
)

type submitRequest struct {
	SessionID  string `json:"sessionId" form:"sessionId"`
	RollNumber string `json:"rollNumber" form:"rollNumber"`
	Name       string `json:"name" form:"name"`
	FaceImage  string `json:"faceImage" form:"-"`
}

var errImageEncoding = errors.New("faceImage must be base64 or a data URL")

// SubmitAttendance accepts JSON with a base64 faceImage or a multipart form with a faceImage file.
func (h *Handler) SubmitAttendance(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var req submitRequest
	var img []byte
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if fh, err := c.FormFile("faceImage"); err == nil {
			f, err := fh.Open()
			if err != nil {
				badRequest(c, err)
				return
			}
			defer f.Close()
			if img, err = io.ReadAll(f); err != nil {
				badRequest(c, err)
				return
			}
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		var err error
		if img, err = decodeImage(req.FaceImage); err != nil {
			badRequest(c, err)
			return
		}
	}

	res, err := h.attendance.Submit(c.Request.Context(), attendance.Submission{
		SessionID:  strings.TrimSpace(req.SessionID),
		RollNumber: strings.TrimSpace(req.RollNumber),
		Name:       strings.TrimSpace(req.Name),
		Image:      img,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	msg := "Attendance marked"
	if res.Attendance.VerificationStatus == model.StatusAutoRegistered {
		msg = "Attendance marked, student registered"
	}
	respond(c, http.StatusCreated, msg, res)
}

// decodeImage accepts raw base64 or a data URL; "" decodes to nil.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errImageEncoding
		}
		s = payload
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, errImageEncoding
}
