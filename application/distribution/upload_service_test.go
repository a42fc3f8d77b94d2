package distribution

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audio-extractor/domain/distribution"
)

type fakeDrive struct {
	existing  *distribution.FileInfo
	quota     distribution.StorageInfo
	findErr   error
	uploadErr error

	deleted  []string
	requests []distribution.UploadRequest
}

func (f *fakeDrive) ListFiles(ctx context.Context, folderID string) ([]distribution.FileInfo, error) {
	return nil, nil
}

func (f *fakeDrive) FindFileByName(ctx context.Context, folderID, name string) (*distribution.FileInfo, error) {
	return f.existing, f.findErr
}

func (f *fakeDrive) GetStorageQuota(ctx context.Context) (*distribution.StorageInfo, error) {
	q := f.quota
	return &q, nil
}

func (f *fakeDrive) UploadAndShare(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.requests = append(f.requests, req)
	return &distribution.UploadResult{FileID: "id-1", FileName: req.FileName, ShareableURL: "https://drive.example/id-1"}, nil
}

func (f *fakeDrive) DeletePermanently(ctx context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return nil
}

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "result.m4a")
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadService_UploadAudio(t *testing.T) {
	path := writeAudio(t, 1000)

	tests := []struct {
		name        string
		drive       *fakeDrive
		folderID    string
		wantErr     error
		wantDeleted []string
		wantOutput  string
	}{
		{
			name:     "fresh upload",
			drive:    &fakeDrive{quota: distribution.StorageInfo{TotalBytes: 5000, AvailableBytes: 5000}},
			folderID: "folder",
		},
		{
			name: "replaces file with the same name",
			drive: &fakeDrive{
				existing: &distribution.FileInfo{ID: "old", Name: "result.m4a", Size: 900},
				quota:    distribution.StorageInfo{TotalBytes: 5000, AvailableBytes: 100},
			},
			folderID:    "folder",
			wantDeleted: []string{"old"},
			wantOutput:  "Replacing existing result.m4a",
		},
		{
			name:     "drive full",
			drive:    &fakeDrive{quota: distribution.StorageInfo{TotalBytes: 5000, AvailableBytes: 10}},
			folderID: "folder",
			wantErr:  ErrInsufficientStorage,
		},
		{
			name:     "search failure",
			drive:    &fakeDrive{findErr: errors.New("quota exceeded")},
			folderID: "folder",
			wantErr:  errors.New("failed to check for existing file"),
		},
		{
			name:    "no folder configured",
			drive:   &fakeDrive{},
			wantErr: errors.New("no Drive folder configured"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			svc := NewUploadService(tt.drive, tt.folderID, &out)

			result, err := svc.UploadAudio(context.Background(), path)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("UploadAudio() error = nil")
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("UploadAudio() error = %v, want %v", err, tt.wantErr)
				}
				if len(tt.drive.requests) != 0 {
					t.Error("file was uploaded despite the error")
				}
				return
			}
			if err != nil {
				t.Fatalf("UploadAudio() error = %v", err)
			}

			if len(tt.drive.requests) != 1 {
				t.Fatalf("got %d uploads, want 1", len(tt.drive.requests))
			}
			req := tt.drive.requests[0]
			if req.MimeType != distribution.MimeTypeM4A || req.FileName != "result.m4a" || req.FolderID != "folder" {
				t.Errorf("upload request = %+v", req)
			}
			if result.Replaced != (len(tt.wantDeleted) > 0) {
				t.Errorf("Replaced = %v, want %v", result.Replaced, len(tt.wantDeleted) > 0)
			}
			if strings.Join(tt.drive.deleted, ",") != strings.Join(tt.wantDeleted, ",") {
				t.Errorf("deleted = %v, want %v", tt.drive.deleted, tt.wantDeleted)
			}
			if !strings.Contains(out.String(), tt.wantOutput) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.wantOutput)
			}
		})
	}
}

func TestUploadService_MissingFile(t *testing.T) {
	svc := NewUploadService(&fakeDrive{}, "folder", nil)
	_, err := svc.UploadAudio(context.Background(), filepath.Join(t.TempDir(), "result.m4a"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("UploadAudio() error = %v, want missing file error", err)
	}
}
