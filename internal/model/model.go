package model

import "time"

// Verification statuses recorded on attendance.
const (
	StatusVerified       = "verified"
	StatusAutoRegistered = "auto_registered"
)

// Teacher is an account that owns classes.
type Teacher struct {
	ID                    string     `json:"id" dynamodbav:"id"`
	Name                  string     `json:"name" dynamodbav:"name"`
	Email                 string     `json:"email" dynamodbav:"email"`
	PasswordHash          string     `json:"-" dynamodbav:"passwordHash"`
	IsVerified            bool       `json:"isVerified" dynamodbav:"isVerified"`
	VerificationToken     string     `json:"-" dynamodbav:"verificationToken,omitempty"`
	VerificationExpiresAt *time.Time `json:"-" dynamodbav:"verificationExpiresAt,omitempty"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty" dynamodbav:"lastLoginAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Class groups students by an inclusive roll-number range.
type Class struct {
	ID           string    `json:"id" dynamodbav:"id"`
	TeacherID    string    `json:"teacherId" dynamodbav:"teacherId"`
	Subject      string    `json:"subject" dynamodbav:"subject"`
	RollRange    string    `json:"rollRange" dynamodbav:"rollRange"`
	SessionCount int       `json:"sessionCount" dynamodbav:"sessionCount"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Session is a time-boxed attendance window for a class.
type Session struct {
	ID              string     `json:"id" dynamodbav:"id"`
	ClassID         string     `json:"classId" dynamodbav:"classId"`
	TeacherID       string     `json:"teacherId" dynamodbav:"teacherId"`
	StartTime       time.Time  `json:"startTime" dynamodbav:"startTime"`
	EndTime         time.Time  `json:"endTime" dynamodbav:"endTime"`
	IsActive        bool       `json:"isActive" dynamodbav:"isActive"`
	QRPayload       string     `json:"qrPayload" dynamodbav:"qrPayload"`
	AttendanceCount int        `json:"attendanceCount" dynamodbav:"attendanceCount"`
	EndedAt         *time.Time `json:"endedAt,omitempty" dynamodbav:"endedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" dynamodbav:"createdAt"`
}

// IsOpen reports whether the session accepts submissions at now.
func (s Session) IsOpen(now time.Time) bool {
	return s.IsActive && !now.After(s.EndTime)
}

// Student is a class member known by roll number.
type Student struct {
	ID              string    `json:"id" dynamodbav:"id"`
	RollNumber      string    `json:"rollNumber" dynamodbav:"rollNumber"`
	ClassID         string    `json:"classId" dynamodbav:"classId"`
	Name            string    `json:"name,omitempty" dynamodbav:"name,omitempty"`
	FaceID          string    `json:"faceId,omitempty" dynamodbav:"faceId,omitempty"`
	AttendanceCount int       `json:"attendanceCount" dynamodbav:"attendanceCount"`
	CreatedAt       time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Attendance marks a student present in a session.
type Attendance struct {
	ID                 string    `json:"id" dynamodbav:"id"`
	SessionID          string    `json:"sessionId" dynamodbav:"sessionId"`
	StudentID          string    `json:"studentId" dynamodbav:"studentId"`
	RollNumber         string    `json:"rollNumber" dynamodbav:"rollNumber"`
	MarkedAt           time.Time `json:"markedAt" dynamodbav:"markedAt"`
	Confidence         float64   `json:"confidence" dynamodbav:"confidence"`
	VerificationStatus string    `json:"verificationStatus" dynamodbav:"verificationStatus"`
	ImageKey           string    `json:"imageKey,omitempty" dynamodbav:"imageKey,omitempty"`
}
