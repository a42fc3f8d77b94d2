package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"audio-extractor/domain/distribution"
)

// ErrInsufficientStorage is returned when the Drive account cannot hold the file
var ErrInsufficientStorage = errors.New("insufficient Drive storage")

// UploadService handles file upload operations to Google Drive
type UploadService struct {
	driveClient distribution.DriveClient
	folderID    string
	output      io.Writer
}

// NewUploadService creates a new upload service
func NewUploadService(client distribution.DriveClient, folderID string, output io.Writer) *UploadService {
	if output == nil {
		output = io.Discard
	}
	return &UploadService{
		driveClient: client,
		folderID:    folderID,
		output:      output,
	}
}

// UploadAudio uploads an extracted audio file to Google Drive and sets public sharing
func (s *UploadService) UploadAudio(ctx context.Context, audioPath string) (*distribution.UploadResult, error) {
	return s.uploadAndShare(ctx, audioPath, distribution.MimeTypeFor(audioPath))
}

// uploadAndShare uploads a file, replacing any file of the same name, and sets public sharing permissions
func (s *UploadService) uploadAndShare(ctx context.Context, filePath, mimeType string) (*distribution.UploadResult, error) {
	if s.folderID == "" {
		return nil, fmt.Errorf("no Drive folder configured: run 'audio-extractor config set google.folder_id <id>'")
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	fileName := filepath.Base(filePath)

	existing, err := s.driveClient.FindFileByName(ctx, s.folderID, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing file: %w", err)
	}

	// The replaced file's bytes are freed before the upload
	needed := info.Size()
	if existing != nil {
		needed -= existing.Size
	}
	if needed > 0 {
		quota, err := s.driveClient.GetStorageQuota(ctx)
		if err != nil {
			return nil, err
		}
		if !quota.HasSpaceFor(needed) {
			return nil, fmt.Errorf("%w: need %.1f MB, %.1f MB available", ErrInsufficientStorage,
				float64(needed)/1024/1024, float64(quota.AvailableBytes)/1024/1024)
		}
	}

	if existing != nil {
		fmt.Fprintf(s.output, "      Replacing existing %s (%.1f MB)\n", existing.Name, float64(existing.Size)/1024/1024)
		if err := s.driveClient.DeletePermanently(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete existing file %s: %w", existing.Name, err)
		}
	}

	req := distribution.UploadRequest{
		LocalPath: filePath,
		FileName:  fileName,
		FolderID:  s.folderID,
		MimeType:  mimeType,
	}

	result, err := s.driveClient.UploadAndShare(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload and share %s: %w", fileName, err)
	}
	result.Replaced = existing != nil

	return result, nil
}
