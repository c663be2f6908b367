package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"rollcall/internal/account"
	"rollcall/internal/attendance"
	"rollcall/internal/classroom"
	"rollcall/internal/face"
	"rollcall/internal/media"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/repository/memory"
	"rollcall/internal/store"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "rollcall-test"
)

type testAPI struct {
	router *gin.Engine
	jobs   *queue.InMemory
}

func newTestAPI(t *testing.T, checks ...HealthCheck) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New()
	jobs := queue.NewInMemory(16)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zerolog.Nop()

	accounts := account.NewService(st, jobs, account.Options{Issuer: testIssuer, SigningKey: testKey, AccessTTL: time.Hour, VerifyTTL: time.Hour}, log)
	classes := classroom.NewService(st, jobs, m, log)
	att := attendance.NewService(st, face.NewLocal(), media.Discard{}, store.NewLocalLocker(), m, attendance.Options{MatchThreshold: 80, MaxImageDimension: 256}, log)

	r := NewRouter(Config{
		Accounts:      accounts,
		Classes:       classes,
		Attendance:    att,
		JWTSigningKey: testKey,
		JWTIssuer:     testIssuer,
		CORSOrigins:   []string{"*"},
		HealthChecks:  checks,
		Metrics:       m,
		Gatherer:      reg,
		Logger:        log,
	})
	return &testAPI{router: r, jobs: jobs}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(t, req)
}

func (a *testAPI) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var env Envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL.Path, err, w.Body.String())
		}
	}
	return w, env
}

// data re-decodes the envelope payload into out.
func data(t *testing.T, env Envelope, out any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatal(err)
	}
}

func photo(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(20)
			if ((x/8)+(y/8))%2 == 0 {
				v = 230
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// loginTeacher registers and logs in a teacher, returning the bearer token.
func (a *testAPI) loginTeacher(t *testing.T, email string) string {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ada", "email": email, "password": "secret123"})
	if w.Code != http.StatusCreated || !env.Success {
		t.Fatalf("register = %d %+v", w.Code, env)
	}
	w, env = a.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": "secret123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %+v", w.Code, env)
	}
	var sess account.Session
	data(t, env, &sess)
	if sess.Token == "" {
		t.Fatal("login returned no token")
	}
	return sess.Token
}

func (a *testAPI) openSession(t *testing.T, token string) (classID, sessionID string) {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/classes", token, gin.H{"subject": "Physics", "rollRange": "2024179001-2024179060"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create class = %d %+v", w.Code, env)
	}
	var class struct{ ID string }
	data(t, env, &class)

	w, env = a.do(t, http.MethodPost, "/sessions", token, gin.H{"classId": class.ID, "durationMinutes": 10})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session = %d %+v", w.Code, env)
	}
	var sess struct {
		ID     string
		IsOpen bool `json:"isOpen"`
	}
	data(t, env, &sess)
	if !sess.IsOpen {
		t.Error("new session is not open")
	}
	return class.ID, sess.ID
}

func TestAttendanceFlow(t *testing.T) {
	a := newTestAPI(t)
	token := a.loginTeacher(t, "ada@school.edu")
	if a.jobs.Len() != 1 {
		t.Errorf("queued jobs = %d, want the verification email", a.jobs.Len())
	}
	classID, sessionID := a.openSession(t, token)

	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString(photo(t))
	submit := gin.H{"sessionId": sessionID, "rollNumber": "2024179030", "name": "Grace", "faceImage": img}

	w, env := a.do(t, http.MethodPost, "/attendance/submit", "", submit)
	if w.Code != http.StatusCreated || !env.Success {
		t.Fatalf("first submit = %d %+v", w.Code, env)
	}
	var res attendance.Result
	data(t, env, &res)
	if res.Attendance.VerificationStatus != "auto_registered" || res.Student.RollNumber != "2024179030" {
		t.Errorf("result = %+v %+v", res.Attendance, res.Student)
	}

	w, env = a.do(t, http.MethodPost, "/attendance/submit", "", submit)
	if w.Code != http.StatusConflict || env.Message != "Attendance already marked for this session" {
		t.Errorf("second submit = %d %+v", w.Code, env)
	}

	submit["rollNumber"] = "2024179061"
	w, env = a.do(t, http.MethodPost, "/attendance/submit", "", submit)
	if w.Code != http.StatusBadRequest || env.Message != "Roll number is not registered for this class" {
		t.Errorf("out of range submit = %d %+v", w.Code, env)
	}

	w, env = a.do(t, http.MethodGet, "/sessions/"+sessionID+"/attendance", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session attendance = %d %+v", w.Code, env)
	}
	var records []map[string]any
	data(t, env, &records)
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}

	w, env = a.do(t, http.MethodGet, "/classes/"+classID+"/students", token, nil)
	var students []map[string]any
	data(t, env, &students)
	if w.Code != http.StatusOK || len(students) != 1 {
		t.Errorf("students = %d %v", w.Code, students)
	}

	w, env = a.do(t, http.MethodPost, "/sessions/"+sessionID+"/end", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end session = %d %+v", w.Code, env)
	}
	if a.jobs.Len() != 2 {
		t.Errorf("queued jobs = %d, want verification and summary", a.jobs.Len())
	}

	submit["rollNumber"] = "2024179031"
	w, env = a.do(t, http.MethodPost, "/attendance/submit", "", submit)
	if w.Code != http.StatusBadRequest || env.Message != "Session is not active" {
		t.Errorf("submit after end = %d %+v", w.Code, env)
	}

	w, env = a.do(t, http.MethodGet, "/sessions/"+sessionID+"/summary", token, nil)
	var sum attendance.Summary
	data(t, env, &sum)
	if w.Code != http.StatusOK || sum.Present != 1 || sum.ClassSize != 60 {
		t.Errorf("summary = %d %+v", w.Code, sum)
	}
}

func TestSubmitMultipart(t *testing.T) {
	a := newTestAPI(t)
	token := a.loginTeacher(t, "ada@school.edu")
	_, sessionID := a.openSession(t, token)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("sessionId", sessionID)
	_ = mw.WriteField("rollNumber", "2024179002")
	fw, err := mw.CreateFormFile("faceImage", "face.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(photo(t)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/attendance/submit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := a.serve(t, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("multipart submit = %d %+v", w.Code, env)
	}
}

func TestSubmitWithoutImage(t *testing.T) {
	a := newTestAPI(t)
	token := a.loginTeacher(t, "ada@school.edu")
	_, sessionID := a.openSession(t, token)

	w, env := a.do(t, http.MethodPost, "/attendance/submit", "", gin.H{"sessionId": sessionID, "rollNumber": "2024179002"})
	if w.Code != http.StatusBadRequest || env.Message != "Face image is required" {
		t.Errorf("submit without image = %d %+v", w.Code, env)
	}
	w, env = a.do(t, http.MethodPost, "/attendance/submit", "", gin.H{"sessionId": sessionID, "rollNumber": "2024179002", "faceImage": "%%%"})
	if w.Code != http.StatusBadRequest || env.Message != "Invalid request body" {
		t.Errorf("submit with bad base64 = %d %+v", w.Code, env)
	}
}

func TestTeacherRoutesRequireToken(t *testing.T) {
	a := newTestAPI(t)
	w, env := a.do(t, http.MethodGet, "/classes", "", nil)
	if w.Code != http.StatusUnauthorized || env.Success {
		t.Errorf("no token = %d %+v", w.Code, env)
	}
	w, _ = a.do(t, http.MethodGet, "/classes", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d", w.Code)
	}
}

func TestClassOwnership(t *testing.T) {
	a := newTestAPI(t)
	ada := a.loginTeacher(t, "ada@school.edu")
	bob := a.loginTeacher(t, "bob@school.edu")
	classID, sessionID := a.openSession(t, ada)

	w, env := a.do(t, http.MethodGet, "/classes/"+classID, bob, nil)
	if w.Code != http.StatusForbidden || env.Message != "Access denied" {
		t.Errorf("foreign class = %d %+v", w.Code, env)
	}
	w, _ = a.do(t, http.MethodGet, "/sessions/"+sessionID+"/attendance", bob, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign session attendance = %d", w.Code)
	}
	w, _ = a.do(t, http.MethodGet, "/classes/missing", ada, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing class = %d", w.Code)
	}

	w, env = a.do(t, http.MethodGet, "/classes", bob, nil)
	var classes []map[string]any
	data(t, env, &classes)
	if w.Code != http.StatusOK || len(classes) != 0 {
		t.Errorf("bob's classes = %d %v", w.Code, classes)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAPI(t)
	w, env := a.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ada", "email": "not-an-email", "password": "secret123"})
	if w.Code != http.StatusBadRequest || env.Message != "A valid email address is required" {
		t.Errorf("invalid email = %d %+v", w.Code, env)
	}
	w, env = a.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ada"})
	if w.Code != http.StatusBadRequest || env.Message != "Invalid request body" {
		t.Errorf("missing fields = %d %+v", w.Code, env)
	}
	w, env = a.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ada", "email": "ada@school.edu", "password": strings.Repeat("p", 100)})
	if w.Code != http.StatusBadRequest || env.Message != "Password must be at most 72 bytes" {
		t.Errorf("long password = %d %+v", w.Code, env)
	}

	a.loginTeacher(t, "ada@school.edu")
	w, env = a.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ada", "email": "ADA@school.edu", "password": "secret123"})
	if w.Code != http.StatusConflict || env.Message != "Email is already registered" {
		t.Errorf("duplicate email = %d %+v", w.Code, env)
	}
	w, _ = a.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "ada@school.edu", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d", w.Code)
	}
}

func TestPublicSessionAndQR(t *testing.T) {
	a := newTestAPI(t)
	token := a.loginTeacher(t, "ada@school.edu")
	_, sessionID := a.openSession(t, token)

	w, env := a.do(t, http.MethodGet, "/sessions/"+sessionID, "", nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Errorf("public session = %d %+v", w.Code, env)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+sessionID+"/qr", nil)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("qr body is not a PNG")
	}

	w, _ = a.do(t, http.MethodGet, "/sessions/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing session = %d", w.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	a := newTestAPI(t,
		HealthCheck{Name: "store", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	)
	w, env := a.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusServiceUnavailable || env.Success {
		t.Errorf("healthz = %d %+v", w.Code, env)
	}
	var deps map[string]string
	data(t, env, &deps)
	if deps["store"] != "ok" || deps["redis"] != "down" {
		t.Errorf("deps = %v", deps)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rollcall_http_request_duration_seconds") {
		t.Errorf("metrics = %d", w.Code)
	}
}

func TestNoRoute(t *testing.T) {
	a := newTestAPI(t)
	w, env := a.do(t, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound || env.Message != "Route not found" {
		t.Errorf("no route = %d %+v", w.Code, env)
	}
}

func TestFailHidesUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{attendance.ErrFaceMismatch, http.StatusUnauthorized, "Face verification failed"},
		{fmt.Errorf("wrapped: %w", attendance.ErrSubmissionInProgress), http.StatusConflict, "Attendance submission already in progress"},
		{account.ErrEmailNotVerified, http.StatusForbidden, "Email not verified"},
		{account.ErrPasswordTooLong, http.StatusBadRequest, "Password must be at most 72 bytes"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		fail(ctx, zerolog.Nop(), c.err)

		var env Envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatal(err)
		}
		if w.Code != c.status || env.Message != c.msg || env.Success {
			t.Errorf("fail(%v) = %d %+v, want %d %q", c.err, w.Code, env, c.status, c.msg)
		}
	}
}

func TestStatusTableMessages(t *testing.T) {
	for _, m := range statusOf {
		if m.message == "" || m.message == m.err.Error() {
			t.Errorf("%v: message %q should be user-facing text", m.err, m.message)
		}
		if _, ok := errorCodes[m.status]; !ok {
			t.Errorf("%v: status %d has no error code", m.err, m.status)
		}
	}
	if got := messageOf(fmt.Errorf("bind: %w", errBadRequest)); got != "Invalid request body" {
		t.Errorf("messageOf(wrapped) = %q", got)
	}
}

func TestDecodeImage(t *testing.T) {
	raw := []byte("face-bytes")
	std := base64.StdEncoding.EncodeToString(raw)
	cases := map[string]bool{
		std:                            true,
		"data:image/jpeg;base64," + std: true,
		strings.TrimRight(std, "="):    true,
		"data:image/png;base64":         false,
		"not base64!":                   false,
	}
	for in, ok := range cases {
		got, err := decodeImage(in)
		if ok && (err != nil || !bytes.Equal(got, raw)) {
			t.Errorf("decodeImage(%q) = %q, %v", in, got, err)
		}
		if !ok && err == nil {
			t.Errorf("decodeImage(%q) succeeded", in)
		}
	}
	if got, err := decodeImage("  "); got != nil || err != nil {
		t.Errorf("decodeImage(blank) = %v, %v", got, err)
	}
}
