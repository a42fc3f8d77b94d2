package cmd

import (
	"fmt"
	"os"
	"strconv"

	"audio-extractor/domain/notification"
	"audio-extractor/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up your configuration file with the
source and output directories, encoder settings, the ffmpeg binaries, and
optionally the Google Drive upload target.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return RunSetupWithPrompter(DefaultPrompter, cfgFile, DefaultOutput)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	if configPath == "" {
		configPath = config.DefaultPath
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to audio-extractor setup!")
	fmt.Fprintln(out)

	cfg := config.Default()

	if err := promptPaths(prompter, cfg); err != nil {
		return err
	}
	if err := promptAudio(prompter, cfg); err != nil {
		return err
	}
	if err := promptPlayback(prompter, cfg); err != nil {
		return err
	}
	if err := promptGoogle(prompter, cfg); err != nil {
		return err
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

func promptPaths(prompter Prompter, cfg *config.Config) error {
	source, err := prompter.Input("Where are source recordings kept? (blank to always pass full paths)", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Paths.SourceDirectory = source

	output, err := prompter.Input("Where should result.m4a be written?", cfg.Paths.OutputDirectory)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if output == "" {
		return fmt.Errorf("output directory is required")
	}
	cfg.Paths.OutputDirectory = output

	return nil
}

func promptAudio(prompter Prompter, cfg *config.Config) error {
	bitrate, err := prompter.Input("AAC bit rate in bits per second?", strconv.Itoa(cfg.Audio.BitRate))
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if bitrate != "" {
		bps, err := strconv.Atoi(bitrate)
		if err != nil || bps <= 0 {
			return fmt.Errorf("bit rate must be a positive number, got %q", bitrate)
		}
		cfg.Audio.BitRate = bps
	}

	streaming, err := prompter.Confirm("Encode while decoding (constant memory)?", cfg.Audio.Streaming)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Audio.Streaming = streaming

	ffmpegPath, err := prompter.Input("Path to ffmpeg?", cfg.FFmpeg.FFmpegPath)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if ffmpegPath != "" {
		cfg.FFmpeg.FFmpegPath = ffmpegPath
	}

	return nil
}

func promptPlayback(prompter Prompter, cfg *config.Config) error {
	ffplayPath, err := prompter.Input("Path to ffplay?", cfg.FFmpeg.FFplayPath)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if ffplayPath != "" {
		cfg.FFmpeg.FFplayPath = ffplayPath
	}

	headless, err := prompter.Confirm("Play without a video window by default?", cfg.Playback.Headless)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Playback.Headless = headless

	return nil
}

func promptGoogle(prompter Prompter, cfg *config.Config) error {
	enable, err := prompter.Confirm("Configure Google Drive upload?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !enable {
		return nil
	}

	credentials, err := prompter.Input("Path to Google credentials file?", "credentials.json")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if credentials == "" {
		credentials = "credentials.json"
	}
	cfg.Google.CredentialsFile = credentials

	oauth, err := prompter.Confirm("Sign in as a user (OAuth) rather than a service account?", true)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if oauth {
		token, err := prompter.Input("Where should the OAuth token be stored?", "config/token.json")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if token == "" {
			token = "config/token.json"
		}
		cfg.Google.TokenFile = token
	}

	folder, err := prompter.Input("Google Drive folder ID for uploads?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if folder == "" {
		return fmt.Errorf("folder ID is required")
	}
	cfg.Google.FolderID = folder

	if oauth {
		return promptEmail(prompter, cfg)
	}
	return nil
}

// promptEmail asks for the upload --notify sender, which needs the OAuth sign-in
func promptEmail(prompter Prompter, cfg *config.Config) error {
	from, err := prompter.Input("Send upload notifications from which address? (blank to skip)", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if from == "" {
		return nil
	}
	sender, err := notification.ParseRecipient(from)
	if err != nil {
		return err
	}
	cfg.Email.FromAddress = sender.Address

	name, err := prompter.Input("Name to sign notification emails with?", sender.Name)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Email.FromName = name
	cfg.Email.SenderName = name

	return nil
}
