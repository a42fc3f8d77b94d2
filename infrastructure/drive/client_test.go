package drive

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"audio-extractor/domain/distribution"

	"google.golang.org/api/drive/v3"
)

// mockDriveService is a mock implementation for testing
type mockDriveService struct {
	files          []*drive.File
	shouldFail     bool
	failError      error
	failPermission bool
	storageLimit   int64
	storageUsage   int64
	deletedFileIDs []string
	queries        []string
	uploads        []string
	permissions    []*drive.Permission
	webViewLink    string
}

func (m *mockDriveService) ListFiles(ctx context.Context, query string, fields string, orderBy string) ([]*drive.File, error) {
	m.queries = append(m.queries, query)
	if m.shouldFail {
		return nil, m.failError
	}
	return m.files, nil
}

func (m *mockDriveService) GetAbout(ctx context.Context, fields string) (*drive.About, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	return &drive.About{
		StorageQuota: &drive.AboutStorageQuota{
			Limit: m.storageLimit,
			Usage: m.storageUsage,
		},
	}, nil
}

func (m *mockDriveService) DeleteFile(ctx context.Context, fileID string) error {
	if m.shouldFail {
		return m.failError
	}
	m.deletedFileIDs = append(m.deletedFileIDs, fileID)
	return nil
}

func (m *mockDriveService) UploadFile(ctx context.Context, fileName, mimeType, folderID, localPath string) (*drive.File, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	m.uploads = append(m.uploads, fmt.Sprintf("%s|%s|%s|%s", fileName, mimeType, folderID, localPath))
	return &drive.File{
		Id:          "uploaded-file-id",
		Name:        fileName,
		MimeType:    mimeType,
		Size:        1024,
		WebViewLink: m.webViewLink,
	}, nil
}

func (m *mockDriveService) CreatePermission(ctx context.Context, fileID string, permission *drive.Permission) error {
	if m.shouldFail || m.failPermission {
		return fmt.Errorf("googleapi: Error 403: sharing disabled")
	}
	m.permissions = append(m.permissions, permission)
	return nil
}

func newTestClient(t *testing.T, mock *mockDriveService) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), "", WithDriveService(mock))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestClient_ListFiles(t *testing.T) {
	testTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mock      *mockDriveService
		wantCount int
		wantErr   bool
		errMsg    string
	}{
		{
			name: "lists files successfully",
			mock: &mockDriveService{
				files: []*drive.File{
					{Id: "file-1", Name: "result.m4a", MimeType: "audio/mp4", Size: 1000000, CreatedTime: testTime.Format(time.RFC3339)},
					{Id: "file-2", Name: "clip.mp4", MimeType: "video/mp4", Size: 900000, CreatedTime: testTime.Add(-time.Hour).Format(time.RFC3339)},
				},
			},
			wantCount: 2,
		},
		{
			name:      "returns empty list for empty folder",
			mock:      &mockDriveService{files: []*drive.File{}},
			wantCount: 0,
		},
		{
			name: "handles API error",
			mock: &mockDriveService{
				shouldFail: true,
				failError:  fmt.Errorf("googleapi: Error 403: permission denied"),
			},
			wantErr: true,
			errMsg:  "failed to list files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.mock)
			files, err := client.ListFiles(context.Background(), "test-folder-id")

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(files) != tt.wantCount {
				t.Errorf("expected %d files, got %d", tt.wantCount, len(files))
			}
			if tt.wantCount > 0 && !files[0].CreatedTime.Equal(testTime) {
				t.Errorf("expected CreatedTime %v, got %v", testTime, files[0].CreatedTime)
			}
		})
	}
}

func TestClient_FindFileByName(t *testing.T) {
	mock := &mockDriveService{
		files: []*drive.File{{Id: "newest", Name: "it's result.m4a", Size: 42}},
	}
	client := newTestClient(t, mock)

	got, err := client.FindFileByName(context.Background(), "folder", "it's result.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "newest" || got.Size != 42 {
		t.Errorf("FindFileByName() = %+v, want file newest", got)
	}
	if q := mock.queries[0]; !strings.Contains(q, `name = 'it\'s result.m4a'`) {
		t.Errorf("query %q does not escape the name", q)
	}

	empty := newTestClient(t, &mockDriveService{})
	got, err = empty.FindFileByName(context.Background(), "folder", "result.m4a")
	if err != nil || got != nil {
		t.Errorf("FindFileByName() on empty folder = %+v, %v, want nil, nil", got, err)
	}
}

func TestClient_GetStorageQuota(t *testing.T) {
	tests := []struct {
		name          string
		mock          *mockDriveService
		wantTotal     int64
		wantAvailable int64
		wantErr       bool
	}{
		{
			name:          "returns storage quota successfully",
			mock:          &mockDriveService{storageLimit: 15000000000, storageUsage: 5000000000},
			wantTotal:     15000000000,
			wantAvailable: 10000000000,
		},
		{
			name:          "unlimited account",
			mock:          &mockDriveService{storageUsage: 5000000000},
			wantTotal:     0,
			wantAvailable: 0,
		},
		{
			name:    "handles API error",
			mock:    &mockDriveService{shouldFail: true, failError: fmt.Errorf("API error")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := newTestClient(t, tt.mock).GetStorageQuota(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if storage.TotalBytes != tt.wantTotal {
				t.Errorf("expected TotalBytes %d, got %d", tt.wantTotal, storage.TotalBytes)
			}
			if storage.AvailableBytes != tt.wantAvailable {
				t.Errorf("expected AvailableBytes %d, got %d", tt.wantAvailable, storage.AvailableBytes)
			}
		})
	}
}

func TestClient_UploadAndShare(t *testing.T) {
	req := distribution.UploadRequest{
		LocalPath: "/out/result.m4a",
		FileName:  "result.m4a",
		FolderID:  "folder-1",
		MimeType:  distribution.MimeTypeM4A,
	}

	t.Run("uploads and shares publicly", func(t *testing.T) {
		mock := &mockDriveService{}
		result, err := newTestClient(t, mock).UploadAndShare(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := "result.m4a|audio/mp4|folder-1|/out/result.m4a"; len(mock.uploads) != 1 || mock.uploads[0] != want {
			t.Errorf("uploads = %v, want [%s]", mock.uploads, want)
		}
		if len(mock.permissions) != 1 || mock.permissions[0].Type != "anyone" || mock.permissions[0].Role != "reader" {
			t.Errorf("permissions = %+v, want anyone/reader", mock.permissions)
		}
		if want := "https://drive.google.com/file/d/uploaded-file-id/view?usp=sharing"; result.ShareableURL != want {
			t.Errorf("ShareableURL = %q, want %q", result.ShareableURL, want)
		}
	})

	t.Run("prefers the web view link", func(t *testing.T) {
		mock := &mockDriveService{webViewLink: "https://drive.google.com/file/d/x/view"}
		result, err := newTestClient(t, mock).UploadAndShare(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ShareableURL != mock.webViewLink {
			t.Errorf("ShareableURL = %q, want %q", result.ShareableURL, mock.webViewLink)
		}
	})

	t.Run("sharing failure", func(t *testing.T) {
		mock := &mockDriveService{failPermission: true}
		if _, err := newTestClient(t, mock).UploadAndShare(context.Background(), req); err == nil || !strings.Contains(err.Error(), "failed to share") {
			t.Errorf("expected share error, got %v", err)
		}
	})
}

func TestClient_DeletePermanently(t *testing.T) {
	mock := &mockDriveService{}
	if err := newTestClient(t, mock).DeletePermanently(context.Background(), "file-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.deletedFileIDs) != 1 || mock.deletedFileIDs[0] != "file-123" {
		t.Errorf("deleted %v, want [file-123]", mock.deletedFileIDs)
	}

	failing := &mockDriveService{shouldFail: true, failError: fmt.Errorf("API error")}
	if err := newTestClient(t, failing).DeletePermanently(context.Background(), "file-123"); err == nil {
		t.Error("expected error but got none")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantZero bool
	}{
		{"valid RFC3339 time", "2026-03-01T10:00:00Z", false},
		{"invalid time format", "invalid", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTime(tt.input)
			if tt.wantZero != result.IsZero() {
				t.Errorf("parseTime(%q).IsZero() = %v, want %v", tt.input, result.IsZero(), tt.wantZero)
			}
		})
	}
}
