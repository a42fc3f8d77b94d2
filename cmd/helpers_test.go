package cmd

import (
	"context"
	"fmt"

	"audio-extractor/domain/distribution"
	"audio-extractor/domain/notification"
)

type mockFileChecker struct {
	existing map[string]bool
}

func newMockFileChecker(paths ...string) *mockFileChecker {
	m := &mockFileChecker{existing: make(map[string]bool)}
	for _, p := range paths {
		m.existing[p] = true
	}
	return m
}

func (m *mockFileChecker) Exists(path string) bool {
	return m.existing[path]
}

// mockPrompter answers prompts from scripted queues
type mockPrompter struct {
	inputs   []string
	confirms []bool
	asked    []string
}

func (m *mockPrompter) Input(message string, defaultValue string) (string, error) {
	m.asked = append(m.asked, message)
	if len(m.inputs) == 0 {
		return "", fmt.Errorf("unexpected prompt %q", message)
	}
	answer := m.inputs[0]
	m.inputs = m.inputs[1:]
	if answer == "<default>" {
		return defaultValue, nil
	}
	return answer, nil
}

func (m *mockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	m.asked = append(m.asked, message)
	if len(m.confirms) == 0 {
		return false, fmt.Errorf("unexpected confirm %q", message)
	}
	answer := m.confirms[0]
	m.confirms = m.confirms[1:]
	return answer, nil
}

type mockDriveClient struct {
	existing *distribution.FileInfo
	quota    distribution.StorageInfo
	err      error

	uploads []distribution.UploadRequest
	deleted []string
}

func (m *mockDriveClient) ListFiles(ctx context.Context, folderID string) ([]distribution.FileInfo, error) {
	return nil, nil
}

func (m *mockDriveClient) FindFileByName(ctx context.Context, folderID, name string) (*distribution.FileInfo, error) {
	return m.existing, nil
}

func (m *mockDriveClient) GetStorageQuota(ctx context.Context) (*distribution.StorageInfo, error) {
	q := m.quota
	return &q, nil
}

func (m *mockDriveClient) UploadAndShare(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.uploads = append(m.uploads, req)
	return &distribution.UploadResult{
		FileID:       "file-123",
		FileName:     req.FileName,
		ShareableURL: "https://drive.google.com/file/d/file-123/view?usp=sharing",
		Size:         2 * 1024 * 1024,
	}, nil
}

func (m *mockDriveClient) DeletePermanently(ctx context.Context, fileID string) error {
	m.deleted = append(m.deleted, fileID)
	return nil
}

type mockNotifier struct {
	err  error
	sent []*notification.ShareNotice
}

func (m *mockNotifier) Send(ctx context.Context, notice *notification.ShareNotice) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, notice)
	return nil
}
