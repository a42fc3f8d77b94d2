package distribution

import (
	"path/filepath"
	"strings"
)

// UploadRequest contains the parameters needed to upload a file to Google Drive
type UploadRequest struct {
	LocalPath string // Full path to the local file
	FileName  string // Target filename in Google Drive
	FolderID  string // Target folder ID in Google Drive
	MimeType  string // MIME type of the file
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	FileID       string // Google Drive file ID
	FileName     string // Name of the uploaded file
	ShareableURL string // URL for sharing the file
	Size         int64  // Size of the uploaded file in bytes
	Replaced     bool   // An older file with the same name was deleted first
}

// MIME type constants for the files the extractor produces
const (
	MimeTypeM4A   = "audio/mp4"
	MimeTypeMP4   = "video/mp4"
	MimeTypeOctet = "application/octet-stream"
)

// MimeTypeFor returns the upload MIME type for a local file name
func MimeTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m4a":
		return MimeTypeM4A
	case ".mp4":
		return MimeTypeMP4
	default:
		return MimeTypeOctet
	}
}
