package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	appdist "audio-extractor/application/distribution"
	"audio-extractor/application/extract"
	appnotify "audio-extractor/application/notification"
	"audio-extractor/domain/distribution"
	"audio-extractor/domain/notification"
	"audio-extractor/infrastructure/config"
	"audio-extractor/infrastructure/drive"
	"audio-extractor/infrastructure/gmail"
	"audio-extractor/infrastructure/googleauth"

	"github.com/spf13/cobra"
)

var (
	uploadFilePath string
	uploadNotify   []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload result.m4a to Google Drive with public sharing",
	Long: `Upload an extracted audio file to the configured Google Drive folder and
make it readable by anyone with the link. A file of the same name already in
the folder is replaced.

By default the file is result.m4a in the configured output directory.

Authentication uses OAuth when google.token_file is set (a browser opens on
first use) and the credentials file as a service account key otherwise.

With --notify, each recipient is emailed the shareable link through Gmail.
Notifications need OAuth and email.from_address.

Example:
  audio-extractor upload
  audio-extractor upload --file out/result.m4a
  audio-extractor upload --notify "Jane Doe <jane@example.com>" --notify bob@example.com`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadFilePath, "file", "", "Path to the audio file (default <output_directory>/result.m4a)")
	uploadCmd.Flags().StringArrayVar(&uploadNotify, "notify", nil, "Email the link to this recipient (repeatable)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := uploadFilePath
	if path == "" {
		path = filepath.Join(cfg.Paths.OutputDirectory, extract.OutputFileName)
	}

	ctx := cmd.Context()
	var notifier notification.Notifier
	if len(uploadNotify) > 0 {
		n, err := newGmailClient(ctx, cfg.Google, cfg.Email, DefaultOutput)
		if err != nil {
			return fmt.Errorf("failed to create Gmail client: %w", err)
		}
		notifier = n
	}

	client, err := newDriveClient(ctx, cfg.Google, DefaultOutput)
	if err != nil {
		return fmt.Errorf("failed to create Google Drive client: %w", err)
	}

	return RunUploadWithDependencies(ctx, client, notifier, cfg.Google.FolderID, path, uploadNotify, cfg.Email.SenderName, DefaultOutput)
}

func authConfig(google config.GoogleConfig, output io.Writer) googleauth.Config {
	return googleauth.Config{
		CredentialsFile: google.CredentialsFile,
		TokenFile:       google.TokenFile,
		Output:          output,
	}
}

func newDriveClient(ctx context.Context, google config.GoogleConfig, output io.Writer) (*drive.Client, error) {
	if google.CredentialsFile == "" {
		return nil, fmt.Errorf("no credentials configured: run '%s'", config.SuggestSetCommand("google.credentials_file"))
	}
	if google.TokenFile != "" {
		return drive.NewClientWithOAuth(ctx, authConfig(google, output))
	}
	return drive.NewClient(ctx, google.CredentialsFile)
}

func newGmailClient(ctx context.Context, google config.GoogleConfig, email config.EmailConfig, output io.Writer) (*gmail.Client, error) {
	if google.TokenFile == "" {
		return nil, fmt.Errorf("email notification needs OAuth: run '%s'", config.SuggestSetCommand("google.token_file"))
	}
	if email.FromAddress == "" {
		return nil, fmt.Errorf("no sender configured: run '%s'", config.SuggestSetCommand("email.from_address"))
	}
	from := notification.Recipient{Name: email.FromName, Address: email.FromAddress}
	return gmail.NewClientWithOAuth(ctx, authConfig(google, output), from, gmail.WithLogger(GetLogger()))
}

// RunUploadWithDependencies runs the upload command with injected dependencies (for testing)
func RunUploadWithDependencies(
	ctx context.Context,
	driveClient distribution.DriveClient,
	notifier notification.Notifier,
	folderID string,
	audioPath string,
	notify []string,
	senderName string,
	output io.Writer,
) error {
	if len(notify) > 0 {
		if _, err := notification.ParseRecipients(notify); err != nil {
			return err
		}
		if notifier == nil {
			return fmt.Errorf("no notifier configured for %d recipient(s)", len(notify))
		}
	}

	service := appdist.NewUploadService(driveClient, folderID, output)

	fmt.Fprintf(output, "Uploading audio: %s...\n", filepath.Base(audioPath))
	result, err := service.UploadAudio(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("audio upload failed: %w", err)
	}

	if result.Replaced {
		fmt.Fprintf(output, "Audio replaced successfully!\n")
	} else {
		fmt.Fprintf(output, "Audio uploaded successfully!\n")
	}
	fmt.Fprintf(output, "  File ID: %s\n", result.FileID)
	fmt.Fprintf(output, "  Size: %.2f MB\n", float64(result.Size)/1024/1024)
	fmt.Fprintf(output, "  Shareable URL: %s\n", result.ShareableURL)
	fmt.Fprintln(output)

	if len(notify) > 0 {
		fmt.Fprintf(output, "Notifying %d recipient(s)...\n", len(notify))
		if err := appnotify.NewService(notifier, senderName).NotifyUpload(ctx, notify, result); err != nil {
			return fmt.Errorf("audio uploaded but notification failed: %w", err)
		}
		fmt.Fprintf(output, "Notification sent!\n")
	}

	fmt.Fprintf(output, "Upload complete!\n")
	return nil
}
