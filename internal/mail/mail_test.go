package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/rs/zerolog"
)

type fakeSES struct{ in *ses.SendEmailInput }

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.in = in
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSESSend(t *testing.T) {
	api := &fakeSES{}
	err := NewSES(api, "no-reply@school.edu").Send(context.Background(), Message{To: "ada@school.edu", Subject: "Hi", Body: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if aws.ToString(api.in.Source) != "no-reply@school.edu" || api.in.Destination.ToAddresses[0] != "ada@school.edu" {
		t.Errorf("unexpected input: %+v", api.in)
	}
	if aws.ToString(api.in.Message.Body.Text.Data) != "text" {
		t.Errorf("body = %q", aws.ToString(api.in.Message.Body.Text.Data))
	}
}

func TestVerificationLink(t *testing.T) {
	msg := Verification("ada@school.edu", "Ada", "http://localhost:8081/", "tok en")
	if !strings.Contains(msg.Body, "http://localhost:8081/auth/verify?token=tok+en") {
		t.Errorf("body missing link: %s", msg.Body)
	}
}

func TestSessionSummary(t *testing.T) {
	msg := SessionSummary("ada@school.edu", Summary{Subject: "Physics", Present: 2, ClassSize: 4, Percentage: 50, Absent: []string{"2024179003", "2024179004"}})
	if !strings.Contains(msg.Body, "Present: 2 of 4 (50.00%)") || !strings.Contains(msg.Body, "2024179004") {
		t.Errorf("body = %s", msg.Body)
	}
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	if err := NewLog(zerolog.New(&buf)).Send(context.Background(), Message{To: "a@b.c", Subject: "s"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"to":"a@b.c"`) {
		t.Errorf("log = %s", buf.String())
	}
}
