// Package attendance runs attendance submissions and the reports built from them.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rollcall/internal/face"
	"rollcall/internal/media"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/repository"
	"rollcall/internal/roll"
	"rollcall/internal/store"
)

var (
	ErrImageRequired        = errors.New("face image is required")
	ErrInvalidImage         = errors.New("face image could not be decoded")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionInactive      = errors.New("session is not active")
	ErrSessionExpired       = errors.New("session has expired")
	ErrInvalidRollFormat    = errors.New("invalid roll number format")
	ErrRollNotInRange       = errors.New("roll number is not registered for this class")
	ErrSubmissionInProgress = errors.New("attendance submission already in progress")
	ErrAlreadyMarked        = errors.New("attendance already marked for this session")
	ErrNoFace               = errors.New("no face detected in image")
	ErrFaceMismatch         = errors.New("face verification failed")
	ErrClassNotFound        = errors.New("class not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrStudentExists        = errors.New("student already registered for this class")
)

// AutoRegisteredConfidence is recorded for a student's first, self-registering submission.
const AutoRegisteredConfidence = 100

// Store is the persistence the service needs.
type Store interface {
	repository.Classes
	repository.Sessions
	repository.Students
	repository.Attendance
}

// Options tunes the submission flow.
type Options struct {
	// MatchThreshold is the similarity a search hit must strictly exceed.
	MatchThreshold    float64
	MaxImageDimension int
	LockTTL           time.Duration
}

// Service implements attendance submission and reporting.
type Service struct {
	store   Store
	faces   face.Recognizer
	images  media.ImageStore
	locks   store.Locker
	metrics *metrics.Metrics
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(st Store, faces face.Recognizer, images media.ImageStore, locks store.Locker, m *metrics.Metrics, opts Options, log zerolog.Logger) *Service {
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = 80
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &Service{
		store:   st,
		faces:   faces,
		images:  images,
		locks:   locks,
		metrics: m,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Submission is one student's attempt to mark themselves present.
type Submission struct {
	SessionID  string
	RollNumber string
	Name       string
	Image      []byte
}

// Result is a recorded attendance with the student it belongs to.
type Result struct {
	Attendance *model.Attendance `json:"attendance"`
	Student    *model.Student    `json:"student"`
}

// Submit validates the session window and roll number, checks the face, and records attendance.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	res, err := s.submit(ctx, sub)
	s.metrics.Submission(outcome(res, err))
	return res, err
}

func (s *Service) submit(ctx context.Context, sub Submission) (*Result, error) {
	if len(sub.Image) == 0 {
		return nil, ErrImageRequired
	}
	sess, err := s.store.GetSession(ctx, sub.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.IsActive {
		return nil, ErrSessionInactive
	}
	now := s.now()
	if now.After(sess.EndTime) {
		return nil, ErrSessionExpired
	}
	if !roll.ValidFormat(sub.RollNumber) {
		return nil, ErrInvalidRollFormat
	}
	class, err := s.store.GetClass(ctx, sess.ClassID)
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", sess.ClassID, err)
	}
	rng, err := roll.ParseRange(class.RollRange)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", class.ID, err)
	}
	if !rng.Contains(sub.RollNumber) {
		return nil, ErrRollNotInRange
	}

	release, err := s.locks.Acquire(ctx, "rollcall:submit:"+sess.ID+":"+sub.RollNumber, s.opts.LockTTL)
	switch {
	case errors.Is(err, store.ErrLockHeld):
		return nil, ErrSubmissionInProgress
	case err != nil:
		// the store's uniqueness constraint still holds without the lock
		s.log.Warn().Err(err).Msg("submission lock unavailable")
	default:
		defer release()
	}

	student, err := s.store.GetStudentByRoll(ctx, class.ID, sub.RollNumber)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		student = nil
	case err != nil:
		return nil, fmt.Errorf("load student: %w", err)
	default:
		marked, err := s.store.HasAttendance(ctx, sess.ID, student.ID)
		if err != nil {
			return nil, fmt.Errorf("check attendance: %w", err)
		}
		if marked {
			return nil, ErrAlreadyMarked
		}
	}

	img, err := media.Normalize(sub.Image, s.opts.MaxImageDimension)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			return nil, ErrInvalidImage
		}
		return nil, err
	}

	rec := &model.Attendance{
		ID:         uuid.NewString(),
		SessionID:  sess.ID,
		RollNumber: sub.RollNumber,
		MarkedAt:   now.UTC(),
	}
	enrolled := false
	if student == nil || student.FaceID == "" {
		student, enrolled, err = s.enroll(ctx, class.ID, student, sub, img)
		if err != nil {
			return nil, err
		}
	}
	if enrolled {
		rec.VerificationStatus = model.StatusAutoRegistered
		rec.Confidence = AutoRegisteredConfidence
	} else {
		match, err := s.faces.Search(ctx, img)
		if err != nil {
			if errors.Is(err, face.ErrNoFace) {
				return nil, ErrNoFace
			}
			return nil, fmt.Errorf("face search: %w", err)
		}
		if !face.Accept(match, student.ID, s.opts.MatchThreshold) {
			ev := s.log.Info().Str("session_id", sess.ID).Str("roll", sub.RollNumber)
			if match != nil {
				ev = ev.Float64("similarity", match.Similarity).Bool("same_student", match.ExternalID == student.ID)
			}
			ev.Msg("face verification failed")
			return nil, ErrFaceMismatch
		}
		rec.VerificationStatus = model.StatusVerified
		rec.Confidence = match.Similarity
		s.metrics.Similarity(match.Similarity)
	}
	rec.StudentID = student.ID

	// only photos that passed verification or enrolled a face are kept
	rec.ImageKey = media.FaceKey(class.ID, sub.RollNumber, sess.ID)
	if _, err := s.images.Put(ctx, rec.ImageKey, img, "image/jpeg"); err != nil {
		return nil, fmt.Errorf("store face image: %w", err)
	}

	if err := s.store.RecordAttendance(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyMarked
		}
		return nil, fmt.Errorf("record attendance: %w", err)
	}
	student.AttendanceCount++
	s.log.Info().
		Str("session_id", sess.ID).
		Str("student_id", student.ID).
		Str("status", rec.VerificationStatus).
		Float64("confidence", rec.Confidence).
		Msg("attendance recorded")
	return &Result{Attendance: rec, Student: student}, nil
}

// enroll gives a student its first face. A new roll number is reserved by saving the student
// before indexing, so every indexed face belongs to a stored student. When another submission
// reserved the roll first, enroll returns that student with enrolled false and the caller verifies
// against its face.
func (s *Service) enroll(ctx context.Context, classID string, st *model.Student, sub Submission, img []byte) (*model.Student, bool, error) {
	reserved := false
	if st == nil {
		now := s.now().UTC()
		st = &model.Student{
			ID:         uuid.NewString(),
			RollNumber: sub.RollNumber,
			ClassID:    classID,
			Name:       sub.Name,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := s.store.CreateStudent(ctx, st)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			winner, err := s.store.GetStudentByRoll(ctx, classID, sub.RollNumber)
			if err != nil {
				return nil, false, fmt.Errorf("reload student: %w", err)
			}
			if winner.FaceID == "" {
				return nil, false, ErrSubmissionInProgress
			}
			return winner, false, nil
		case err != nil:
			return nil, false, fmt.Errorf("create student: %w", err)
		}
		reserved = true
	}

	faceID, err := s.faces.Index(ctx, st.ID, img)
	if err != nil {
		if reserved {
			s.release(st)
		}
		if errors.Is(err, face.ErrNoFace) {
			return nil, false, ErrNoFace
		}
		return nil, false, fmt.Errorf("face index: %w", err)
	}

	st.FaceID = faceID
	if st.Name == "" {
		st.Name = sub.Name
	}
	if err := s.store.UpdateStudent(ctx, st); err != nil {
		s.removeFace(faceID)
		if reserved {
			s.release(st)
		}
		return nil, false, fmt.Errorf("update student: %w", err)
	}
	return st, true, nil
}

// release frees a roll number reserved by a submission that failed before enrolling a face.
func (s *Service) release(st *model.Student) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteStudent(ctx, st); err != nil {
		s.log.Warn().Err(err).Str("student_id", st.ID).Msg("release reserved student")
	}
}

// removeFace drops a face that no student refers to.
func (s *Service) removeFace(faceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.faces.Remove(ctx, faceID); err != nil {
		s.log.Warn().Err(err).Str("face_id", faceID).Msg("remove orphaned face")
	}
}

func outcome(res *Result, err error) string {
	switch {
	case err == nil && res.Attendance.VerificationStatus == model.StatusAutoRegistered:
		return metrics.OutcomeAutoRegistered
	case err == nil:
		return metrics.OutcomeVerified
	case errors.Is(err, ErrAlreadyMarked), errors.Is(err, ErrSubmissionInProgress):
		return metrics.OutcomeDuplicate
	case isClientError(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func isClientError(err error) bool {
	for _, e := range []error{
		ErrImageRequired, ErrInvalidImage, ErrSessionNotFound, ErrSessionInactive, ErrSessionExpired,
		ErrInvalidRollFormat, ErrRollNotInRange, ErrNoFace, ErrFaceMismatch,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
