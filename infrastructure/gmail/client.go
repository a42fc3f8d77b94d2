package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"audio-extractor/domain/notification"
	"audio-extractor/infrastructure/googleauth"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailService defines the interface for Gmail API operations
// This allows mocking the Gmail API in tests
type GmailService interface {
	SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error)
}

// GoogleGmailService is the production implementation using the Gmail API
type GoogleGmailService struct {
	service *gmail.Service
}

// SendMessage sends an email via Gmail API
func (s *GoogleGmailService) SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	return s.service.Users.Messages.Send(userID, message).Context(ctx).Do()
}

// Client implements notification.Notifier using Gmail API
type Client struct {
	gmailService GmailService
	from         notification.Recipient
	template     notification.EmailTemplate
	logger       *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithGmailService sets a custom Gmail service (for testing)
func WithGmailService(svc GmailService) ClientOption {
	return func(c *Client) {
		c.gmailService = svc
	}
}

// WithTemplate sets a custom email template
func WithTemplate(tmpl notification.EmailTemplate) ClientOption {
	return func(c *Client) {
		c.template = tmpl
	}
}

// WithLogger sets the logger used for delivery diagnostics
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gmail client
// Without WithGmailService, NewClientWithOAuth must be used to reach the real API
func NewClient(from notification.Recipient, opts ...ClientOption) *Client {
	c := &Client{
		from:     from,
		template: notification.DefaultTemplate,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientWithOAuth creates a Gmail client sending as the signed-in user
func NewClientWithOAuth(ctx context.Context, cfg googleauth.Config, from notification.Recipient, opts ...ClientOption) (*Client, error) {
	c := NewClient(from, opts...)
	if c.gmailService != nil {
		return c, nil
	}

	httpClient, err := googleauth.UserClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	c.gmailService = &GoogleGmailService{service: srv}
	return c, nil
}

// Send renders the notice and sends it using the Gmail API
func (c *Client) Send(ctx context.Context, notice *notification.ShareNotice) error {
	if err := notice.Validate(); err != nil {
		return fmt.Errorf("invalid notice: %w", err)
	}
	if c.gmailService == nil {
		return fmt.Errorf("%w: gmail service not configured", notification.ErrSendFailed)
	}

	data := notification.NewTemplateData(notice)

	subject, err := c.template.RenderSubject(data)
	if err != nil {
		return fmt.Errorf("failed to render subject: %w", err)
	}

	plainText, err := c.template.RenderPlainText(data)
	if err != nil {
		return fmt.Errorf("failed to render plain text: %w", err)
	}

	htmlBody, err := c.template.RenderHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}

	raw, err := c.buildMIMEMessage(notice, subject, plainText, htmlBody)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	sent, err := c.gmailService.SendMessage(ctx, "me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrSendFailed, err)
	}

	c.logger.Debug("notice sent",
		zap.String("message_id", sent.Id),
		zap.Int("recipients", len(notice.To)+len(notice.CC)),
	)
	return nil
}

// buildMIMEMessage builds a multipart/alternative RFC 5322 message
func (c *Client) buildMIMEMessage(notice *notification.ShareNotice, subject, plainText, htmlBody string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct{ contentType, content string }{
		{`text/plain; charset="UTF-8"`, plainText},
		{`text/html; charset="UTF-8"`, htmlBody},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", c.from)
	fmt.Fprintf(&msg, "To: %s\r\n", joinRecipients(notice.To))
	if len(notice.CC) > 0 {
		fmt.Fprintf(&msg, "Cc: %s\r\n", joinRecipients(notice.CC))
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

func joinRecipients(rs []notification.Recipient) string {
	addrs := make([]string, len(rs))
	for i, r := range rs {
		addrs[i] = r.String()
	}
	return strings.Join(addrs, ", ")
}

// Ensure Client implements notification.Notifier
var _ notification.Notifier = (*Client)(nil)
