package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audio-extractor/infrastructure/config"
)

func TestRunSetupWithPrompter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	prompter := &mockPrompter{
		// source, output, bitrate, ffmpeg, ffplay, credentials, token, folder, sender, signature
		inputs:   []string{"/recordings", "/out", "96000", "<default>", "/usr/local/bin/ffplay", "creds.json", "<default>", "folder-9", "Audio Desk <desk@example.com>", "<default>"},
		confirms: []bool{true, false, true, true},
	}
	var out bytes.Buffer

	if err := RunSetupWithPrompter(prompter, path, &out); err != nil {
		t.Fatalf("RunSetupWithPrompter() unexpected error: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"source_directory", cfg.Paths.SourceDirectory, "/recordings"},
		{"output_directory", cfg.Paths.OutputDirectory, "/out"},
		{"bitrate", cfg.Audio.BitRate, 96000},
		{"streaming", cfg.Audio.Streaming, true},
		{"ffmpeg_path", cfg.FFmpeg.FFmpegPath, "ffmpeg"},
		{"ffplay_path", cfg.FFmpeg.FFplayPath, "/usr/local/bin/ffplay"},
		{"headless", cfg.Playback.Headless, false},
		{"credentials_file", cfg.Google.CredentialsFile, "creds.json"},
		{"token_file", cfg.Google.TokenFile, "config/token.json"},
		{"folder_id", cfg.Google.FolderID, "folder-9"},
		{"from_address", cfg.Email.FromAddress, "desk@example.com"},
		{"from_name", cfg.Email.FromName, "Audio Desk"},
		{"sender_name", cfg.Email.SenderName, "Audio Desk"},
		{"sync_threshold_ms", cfg.Playback.SyncThresholdMs, 10},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if !strings.Contains(out.String(), "Configuration saved to "+path) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunSetupWithPrompter_SkipsDrive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	prompter := &mockPrompter{
		inputs:   []string{"", "<default>", "<default>", "<default>", "<default>"},
		confirms: []bool{false, true, false},
	}

	if err := RunSetupWithPrompter(prompter, path, &bytes.Buffer{}); err != nil {
		t.Fatalf("RunSetupWithPrompter() unexpected error: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Google.FolderID != "" || cfg.Google.CredentialsFile != "" {
		t.Errorf("google = %+v, want empty", cfg.Google)
	}
	if cfg.Audio.BitRate != 128000 || !cfg.Playback.Headless || cfg.Paths.OutputDirectory != "." {
		t.Errorf("config = %+v, want defaults with headless playback", cfg)
	}
}

func TestRunSetupWithPrompter_Errors(t *testing.T) {
	tests := []struct {
		name     string
		inputs   []string
		confirms []bool
		wantErr  string
	}{
		{"bad bit rate", []string{"", "/out", "fast"}, nil, "bit rate must be a positive number"},
		{"missing folder", []string{"", "/out", "<default>", "<default>", "<default>", "creds.json", ""}, []bool{false, false, true, false}, "folder ID is required"},
		{"bad sender", []string{"", "/out", "<default>", "<default>", "<default>", "creds.json", "<default>", "folder-1", "desk"}, []bool{false, false, true, true}, "valid email address"},
		{"cancelled", nil, nil, "prompt cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			prompter := &mockPrompter{inputs: tt.inputs, confirms: tt.confirms}

			err := RunSetupWithPrompter(prompter, path, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("RunSetupWithPrompter() error = %v, want %q", err, tt.wantErr)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Errorf("config file written despite error")
			}
		})
	}
}

func TestRunSetupWithPrompter_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("audio:\n  bitrate: 64000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	prompter := &mockPrompter{confirms: []bool{false}}
	var out bytes.Buffer

	if err := RunSetupWithPrompter(prompter, path, &out); err != nil {
		t.Fatalf("RunSetupWithPrompter() unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Setup cancelled.") {
		t.Errorf("output = %q", out.String())
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "64000") {
		t.Errorf("existing config overwritten: %s", data)
	}
}
