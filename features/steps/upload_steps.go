//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"audio-extractor/cmd"
	"audio-extractor/domain/distribution"
	"audio-extractor/domain/notification"
	"audio-extractor/infrastructure/gmail"

	"github.com/cucumber/godog"
	gmailapi "google.golang.org/api/gmail/v1"
)

// mockDriveClient is an in-memory Drive folder
type mockDriveClient struct {
	files   map[string]distribution.FileInfo
	quota   distribution.StorageInfo
	uploads []distribution.UploadRequest
	deleted []string
}

func (m *mockDriveClient) ListFiles(ctx context.Context, folderID string) ([]distribution.FileInfo, error) {
	var files []distribution.FileInfo
	for _, f := range m.files {
		files = append(files, f)
	}
	return files, nil
}

func (m *mockDriveClient) FindFileByName(ctx context.Context, folderID, name string) (*distribution.FileInfo, error) {
	f, ok := m.files[name]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (m *mockDriveClient) GetStorageQuota(ctx context.Context) (*distribution.StorageInfo, error) {
	q := m.quota
	return &q, nil
}

func (m *mockDriveClient) UploadAndShare(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResult, error) {
	m.uploads = append(m.uploads, req)
	id := fmt.Sprintf("file-%d", len(m.uploads))
	m.files[req.FileName] = distribution.FileInfo{ID: id, Name: req.FileName, MimeType: req.MimeType}
	return &distribution.UploadResult{
		FileID:       id,
		FileName:     req.FileName,
		ShareableURL: "https://drive.google.com/file/d/" + id + "/view?usp=sharing",
	}, nil
}

func (m *mockDriveClient) DeletePermanently(ctx context.Context, fileID string) error {
	m.deleted = append(m.deleted, fileID)
	for name, f := range m.files {
		if f.ID == fileID {
			delete(m.files, name)
		}
	}
	return nil
}

// mockGmailService captures outgoing messages instead of calling the Gmail API
type mockGmailService struct {
	sent []string
}

func (m *mockGmailService) SendMessage(ctx context.Context, userID string, message *gmailapi.Message) (*gmailapi.Message, error) {
	raw, err := base64.URLEncoding.DecodeString(message.Raw)
	if err != nil {
		return nil, err
	}
	m.sent = append(m.sent, string(raw))
	return &gmailapi.Message{Id: fmt.Sprintf("msg-%d", len(m.sent))}, nil
}

type uploadContext struct {
	tempDir string
	path    string
	client  *mockDriveClient
	mail    *mockGmailService
	err     error
}

// SharedUploadContext is reset before each scenario via Before hook
var SharedUploadContext *uploadContext

func InitializeUploadScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "upload-test-*")
		if err != nil {
			return c, err
		}
		SharedUploadContext = &uploadContext{
			tempDir: tempDir,
			client:  &mockDriveClient{files: make(map[string]distribution.FileInfo)},
			mail:    &mockGmailService{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedUploadContext != nil && SharedUploadContext.tempDir != "" {
			os.RemoveAll(SharedUploadContext.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^an extracted file "([^"]*)" of (\d+) bytes$`, anExtractedFileOfBytes)
	ctx.Step(`^the Drive folder "([^"]*)" is empty$`, theDriveFolderIsEmpty)
	ctx.Step(`^the Drive folder "([^"]*)" already contains "([^"]*)"$`, theDriveFolderAlreadyContains)
	ctx.Step(`^the Drive account has (\d+) bytes available$`, theDriveAccountHasBytesAvailable)
	ctx.Step(`^I upload the extracted file to "([^"]*)"$`, iUploadTheExtractedFileTo)
	ctx.Step(`^I upload the extracted file to "([^"]*)" notifying "([^"]*)"$`, iUploadTheExtractedFileToNotifying)
	ctx.Step(`^the upload should succeed$`, theUploadShouldSucceed)
	ctx.Step(`^the upload should fail with "([^"]*)"$`, theUploadShouldFailWith)
	ctx.Step(`^the file should have been uploaded as "([^"]*)"$`, theFileShouldHaveBeenUploadedAs)
	ctx.Step(`^the output should mention a shareable URL$`, theOutputShouldMentionAShareableURL)
	ctx.Step(`^the previous file should have been deleted$`, thePreviousFileShouldHaveBeenDeleted)
	ctx.Step(`^an email should have been sent to "([^"]*)" and "([^"]*)"$`, anEmailShouldHaveBeenSentTo)
	ctx.Step(`^the email should contain the shareable URL$`, theEmailShouldContainTheShareableURL)
	ctx.Step(`^nothing should have been uploaded$`, nothingShouldHaveBeenUploaded)
}

func anExtractedFileOfBytes(name string, size int) error {
	u := SharedUploadContext
	u.path = filepath.Join(u.tempDir, name)
	return os.WriteFile(u.path, make([]byte, size), 0644)
}

func theDriveFolderIsEmpty(folderID string) error {
	SharedUploadContext.client.files = make(map[string]distribution.FileInfo)
	return nil
}

func theDriveFolderAlreadyContains(folderID, name string) error {
	SharedUploadContext.client.files[name] = distribution.FileInfo{ID: "old-file", Name: name, Size: 1024}
	return nil
}

func theDriveAccountHasBytesAvailable(available int64) error {
	SharedUploadContext.client.quota = distribution.StorageInfo{
		TotalBytes:     1 << 20,
		UsedBytes:      1<<20 - available,
		AvailableBytes: available,
	}
	return nil
}

func iUploadTheExtractedFileTo(folderID string) error {
	u := SharedUploadContext
	lastOutput = &bytes.Buffer{}
	u.err = cmd.RunUploadWithDependencies(context.Background(), u.client, nil, folderID, u.path, nil, "", lastOutput)
	return nil
}

func iUploadTheExtractedFileToNotifying(folderID, recipients string) error {
	u := SharedUploadContext
	lastOutput = &bytes.Buffer{}

	var notify []string
	for _, r := range strings.Split(recipients, ",") {
		notify = append(notify, strings.TrimSpace(r))
	}
	from := notification.Recipient{Name: "Audio Desk", Address: "desk@example.com"}
	notifier := gmail.NewClient(from, gmail.WithGmailService(u.mail))

	u.err = cmd.RunUploadWithDependencies(context.Background(), u.client, notifier, folderID, u.path, notify, "Sam", lastOutput)
	return nil
}

func theUploadShouldSucceed() error {
	if err := SharedUploadContext.err; err != nil {
		return fmt.Errorf("expected upload to succeed, got: %w", err)
	}
	return nil
}

func theUploadShouldFailWith(text string) error {
	return expectErrorContaining(SharedUploadContext.err, text)
}

func theFileShouldHaveBeenUploadedAs(mimeType string) error {
	uploads := SharedUploadContext.client.uploads
	if len(uploads) != 1 {
		return fmt.Errorf("expected one upload, got %d", len(uploads))
	}
	if uploads[0].MimeType != mimeType {
		return fmt.Errorf("uploaded as %q, want %q", uploads[0].MimeType, mimeType)
	}
	return nil
}

func theOutputShouldMentionAShareableURL() error {
	if !strings.Contains(lastOutput.String(), "Shareable URL: https://drive.google.com/") {
		return fmt.Errorf("no shareable URL in output:\n%s", lastOutput.String())
	}
	return nil
}

func thePreviousFileShouldHaveBeenDeleted() error {
	deleted := SharedUploadContext.client.deleted
	if len(deleted) != 1 || deleted[0] != "old-file" {
		return fmt.Errorf("deleted %v, want [old-file]", deleted)
	}
	return nil
}

func anEmailShouldHaveBeenSentTo(first, second string) error {
	sent := SharedUploadContext.mail.sent
	if len(sent) != 1 {
		return fmt.Errorf("expected one email, got %d", len(sent))
	}
	msg, err := mail.ReadMessage(strings.NewReader(sent[0]))
	if err != nil {
		return err
	}
	to, err := msg.Header.AddressList("To")
	if err != nil {
		return err
	}
	if len(to) != 2 || to[0].Address != first || to[1].Address != second {
		return fmt.Errorf("email sent to %v, want %s and %s", to, first, second)
	}
	return nil
}

func theEmailShouldContainTheShareableURL() error {
	sent := SharedUploadContext.mail.sent
	if len(sent) == 0 {
		return fmt.Errorf("no email sent")
	}
	if !strings.Contains(sent[0], "https://drive.google.com/file/d/file-1/view?usp=sharing") {
		return fmt.Errorf("email does not contain the shareable URL:\n%s", sent[0])
	}
	return nil
}

func nothingShouldHaveBeenUploaded() error {
	if n := len(SharedUploadContext.client.uploads); n != 0 {
		return fmt.Errorf("expected no uploads, got %d", n)
	}
	return nil
}
