package mail

import (
	"fmt"
	"net/url"
	"strings"
)

// Verification builds the account verification email.
func Verification(to, name, baseURL, token string) Message {
	link := strings.TrimRight(baseURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
	return Message{
		To:      to,
		Subject: "Verify your rollcall account",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below:\n\n%s\n\n"+
			"If you did not create an account you can ignore this message.\n", name, link),
	}
}

// Summary is the content of a session summary email.
type Summary struct {
	Subject    string
	Present    int
	ClassSize  int
	Percentage float64
	Absent     []string
}

// SessionSummary builds the email sent to a teacher after a session ends.
func SessionSummary(to string, s Summary) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Attendance for %s\n\n", s.Subject)
	fmt.Fprintf(&b, "Present: %d of %d (%.2f%%)\n", s.Present, s.ClassSize, s.Percentage)
	if len(s.Absent) > 0 {
		fmt.Fprintf(&b, "\nAbsent roll numbers:\n%s\n", strings.Join(s.Absent, "\n"))
	}
	return Message{To: to, Subject: "Session summary: " + s.Subject, Body: b.String()}
}
