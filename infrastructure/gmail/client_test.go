package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"audio-extractor/domain/notification"

	"google.golang.org/api/gmail/v1"
)

// mockGmailService is a mock implementation for testing
type mockGmailService struct {
	sentMessages []*gmail.Message
	userIDs      []string
	failError    error
}

func (m *mockGmailService) SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	m.userIDs = append(m.userIDs, userID)
	m.sentMessages = append(m.sentMessages, message)
	return &gmail.Message{Id: "test-message-id"}, nil
}

func testNotice() *notification.ShareNotice {
	return &notification.ShareNotice{
		To:         []notification.Recipient{{Name: "John Doe", Address: "john@example.com"}},
		CC:         []notification.Recipient{{Name: "Jane Doe", Address: "jane@example.com"}},
		FileName:   "result.m4a",
		URL:        "https://drive.google.com/file/d/abc/view",
		SizeBytes:  1024 * 1024,
		SenderName: "Sam",
	}
}

// decodeMessage parses the raw message and returns its headers plus the
// plain text and HTML parts
func decodeMessage(t *testing.T, raw string) (*mail.Message, string, string) {
	t.Helper()
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	msg, err := mail.ReadMessage(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("Content-Type = %q, %v", msg.Header.Get("Content-Type"), err)
	}

	var plain, html string
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart() error = %v", err)
		}
		b, _ := io.ReadAll(p)
		switch {
		case strings.HasPrefix(p.Header.Get("Content-Type"), "text/plain"):
			plain = string(b)
		case strings.HasPrefix(p.Header.Get("Content-Type"), "text/html"):
			html = string(b)
		}
	}
	return msg, plain, html
}

func TestClient_Send(t *testing.T) {
	mock := &mockGmailService{}
	from := notification.Recipient{Name: "Audio Desk", Address: "desk@example.com"}
	client := NewClient(from, WithGmailService(mock))

	if err := client.Send(context.Background(), testNotice()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(mock.sentMessages) != 1 || mock.userIDs[0] != "me" {
		t.Fatalf("sent %d messages as %v, want 1 as me", len(mock.sentMessages), mock.userIDs)
	}

	msg, plain, html := decodeMessage(t, mock.sentMessages[0].Raw)

	headers := map[string]string{
		"From":    `"Audio Desk" <desk@example.com>`,
		"To":      `"John Doe" <john@example.com>`,
		"Cc":      `"Jane Doe" <jane@example.com>`,
		"Subject": "Audio ready: result.m4a",
	}
	for k, want := range headers {
		got := msg.Header.Get(k)
		if k == "Subject" {
			got, _ = new(mime.WordDecoder).DecodeHeader(got)
		}
		if got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}

	for _, want := range []string{"Dear John,", "result.m4a (1.00 MB)", "https://drive.google.com/file/d/abc/view", "~Sam"} {
		if !strings.Contains(plain, want) {
			t.Errorf("plain text missing %q:\n%s", want, plain)
		}
	}
	if !strings.Contains(html, `href="https://drive.google.com/file/d/abc/view"`) {
		t.Errorf("html missing link:\n%s", html)
	}
}

func TestClient_Send_MultipleRecipients(t *testing.T) {
	mock := &mockGmailService{}
	client := NewClient(notification.Recipient{Address: "desk@example.com"}, WithGmailService(mock))

	notice := testNotice()
	notice.CC = nil
	notice.To = []notification.Recipient{
		{Name: "John Doe", Address: "john@example.com"},
		{Address: "jane@example.com"},
	}
	if err := client.Send(context.Background(), notice); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msg, plain, _ := decodeMessage(t, mock.sentMessages[0].Raw)
	addrs, err := msg.Header.AddressList("To")
	if err != nil || len(addrs) != 2 {
		t.Fatalf("To = %v, %v, want 2 addresses", addrs, err)
	}
	if msg.Header.Get("Cc") != "" {
		t.Errorf("Cc = %q, want none", msg.Header.Get("Cc"))
	}
	if !strings.Contains(plain, "Dear John & jane,") {
		t.Errorf("plain text greeting wrong:\n%s", plain)
	}
}

func TestClient_Send_Errors(t *testing.T) {
	t.Run("invalid notice", func(t *testing.T) {
		mock := &mockGmailService{}
		notice := testNotice()
		notice.To = nil
		err := NewClient(notification.Recipient{}, WithGmailService(mock)).Send(context.Background(), notice)
		if !errors.Is(err, notification.ErrNoRecipients) {
			t.Errorf("Send() error = %v, want %v", err, notification.ErrNoRecipients)
		}
		if len(mock.sentMessages) != 0 {
			t.Error("invalid notice was sent")
		}
	})

	t.Run("api failure", func(t *testing.T) {
		mock := &mockGmailService{failError: errors.New("googleapi: Error 403: insufficient scopes")}
		err := NewClient(notification.Recipient{}, WithGmailService(mock)).Send(context.Background(), testNotice())
		if !errors.Is(err, notification.ErrSendFailed) {
			t.Errorf("Send() error = %v, want %v", err, notification.ErrSendFailed)
		}
	})

	t.Run("no service", func(t *testing.T) {
		err := NewClient(notification.Recipient{}).Send(context.Background(), testNotice())
		if !errors.Is(err, notification.ErrSendFailed) {
			t.Errorf("Send() error = %v, want %v", err, notification.ErrSendFailed)
		}
	})
}
