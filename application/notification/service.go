package notification

import (
	"context"
	"fmt"

	"audio-extractor/domain/distribution"
	"audio-extractor/domain/notification"
)

// Service tells people where an uploaded audio file can be found
type Service struct {
	notifier   notification.Notifier
	senderName string
}

// NewService creates a new notification service
func NewService(notifier notification.Notifier, senderName string) *Service {
	return &Service{
		notifier:   notifier,
		senderName: senderName,
	}
}

// NotifyUpload emails the shareable link of an upload to every recipient
// Recipients are "Name <address>" or bare addresses
func (s *Service) NotifyUpload(ctx context.Context, to []string, upload *distribution.UploadResult) error {
	recipients, err := notification.ParseRecipients(to)
	if err != nil {
		return err
	}
	if upload == nil {
		return notification.ErrNoShareURL
	}

	notice := &notification.ShareNotice{
		To:         recipients,
		FileName:   upload.FileName,
		URL:        upload.ShareableURL,
		SizeBytes:  upload.Size,
		SenderName: s.senderName,
	}
	if err := s.notifier.Send(ctx, notice); err != nil {
		return fmt.Errorf("failed to notify %d recipient(s): %w", len(recipients), err)
	}
	return nil
}
