//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"audio-extractor/cmd"
	"audio-extractor/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	setupCancelled  bool
	originalContent string
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing
type MockPrompter struct {
	inputResponses   []string
	confirmResponses []bool
	inputIndex       int
	confirmIndex     int
}

func NewMockPrompter(inputs []string, confirms []bool) *MockPrompter {
	return &MockPrompter{
		inputResponses:   inputs,
		confirmResponses: confirms,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if m.inputIndex >= len(m.inputResponses) {
		if defaultValue != "" {
			return defaultValue, nil
		}
		return "", fmt.Errorf("no more input responses available for message: %s", message)
	}
	response := m.inputResponses[m.inputIndex]
	m.inputIndex++
	return response, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if m.confirmIndex >= len(m.confirmResponses) {
		return defaultValue, nil
	}
	response := m.confirmResponses[m.confirmIndex]
	m.confirmIndex++
	return response, nil
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		SharedSetupContext = &setupContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config", "config.yaml"),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedSetupContext.tempDir != "" {
			os.RemoveAll(SharedSetupContext.tempDir)
		}
		SharedSetupContext = &setupContext{}
		return c, nil
	})

	ctx.Step(`^no config file exists for setup$`, noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I run the setup command with inputs:$`, iRunTheSetupCommandWithInputs)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)"$`, iRunTheSetupCommandWithConfirmation)
	ctx.Step(`^a config file should exist$`, aConfigFileShouldExist)
	ctx.Step(`^the config should have source_directory "([^"]*)"$`, theConfigShouldHaveSourceDirectory)
	ctx.Step(`^the config should have output_directory "([^"]*)"$`, theConfigShouldHaveOutputDirectory)
	ctx.Step(`^the config should have bitrate (\d+)$`, theConfigShouldHaveBitrate)
	ctx.Step(`^the config should have folder_id "([^"]*)"$`, theConfigShouldHaveFolderID)
	ctx.Step(`^the setup should be cancelled$`, theSetupShouldBeCancelled)
	ctx.Step(`^the existing config should be unchanged$`, theExistingConfigShouldBeUnchanged)
}

func noConfigFileExistsForSetup() error {
	return os.MkdirAll(filepath.Dir(SharedSetupContext.configPath), 0755)
}

func aConfigFileAlreadyExistsForSetup() error {
	s := SharedSetupContext
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}

	content := `paths:
  source_directory: "/original/source"
  output_directory: "/original/out"
audio:
  bitrate: 64000
google:
  credentials_file: "original-creds.json"
  folder_id: "original-folder-id"
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0644)
}

func iRunTheSetupCommandWithInputs(table *godog.Table) error {
	s := SharedSetupContext
	inputs, confirms := parseInputTable(table)
	prompter := NewMockPrompter(inputs, confirms)

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, &bytes.Buffer{})
	if s.err != nil {
		return fmt.Errorf("setup command failed: %w", s.err)
	}
	return nil
}

func iRunTheSetupCommandWithConfirmation(confirmation string) error {
	s := SharedSetupContext
	confirm := strings.ToLower(confirmation) == "y"
	prompter := NewMockPrompter([]string{}, []bool{confirm})

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, &bytes.Buffer{})
	if !confirm {
		s.setupCancelled = true
	}
	return nil
}

// parseInputTable splits rows into text answers and y/n answers, keeping their order
func parseInputTable(table *godog.Table) ([]string, []bool) {
	var inputs []string
	var confirms []bool

	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		value := row.Cells[1].Value
		switch strings.ToLower(value) {
		case "y", "n":
			confirms = append(confirms, strings.ToLower(value) == "y")
		default:
			inputs = append(inputs, value)
		}
	}

	return inputs, confirms
}

func loadSetupConfig() (*config.Config, error) {
	cfg, err := config.Load(SharedSetupContext.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func aConfigFileShouldExist() error {
	if _, err := os.Stat(SharedSetupContext.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", SharedSetupContext.configPath)
	}
	return nil
}

func theConfigShouldHaveSourceDirectory(expected string) error {
	cfg, err := loadSetupConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.SourceDirectory != expected {
		return fmt.Errorf("expected source_directory %q, got %q", expected, cfg.Paths.SourceDirectory)
	}
	return nil
}

func theConfigShouldHaveOutputDirectory(expected string) error {
	cfg, err := loadSetupConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.OutputDirectory != expected {
		return fmt.Errorf("expected output_directory %q, got %q", expected, cfg.Paths.OutputDirectory)
	}
	return nil
}

func theConfigShouldHaveBitrate(expected int) error {
	cfg, err := loadSetupConfig()
	if err != nil {
		return err
	}
	if cfg.Audio.BitRate != expected {
		return fmt.Errorf("expected bitrate %d, got %d", expected, cfg.Audio.BitRate)
	}
	return nil
}

func theConfigShouldHaveFolderID(expected string) error {
	cfg, err := loadSetupConfig()
	if err != nil {
		return err
	}
	if cfg.Google.FolderID != expected {
		return fmt.Errorf("expected folder_id %q, got %q", expected, cfg.Google.FolderID)
	}
	return nil
}

func theSetupShouldBeCancelled() error {
	if !SharedSetupContext.setupCancelled {
		return fmt.Errorf("expected setup to be cancelled")
	}
	return nil
}

func theExistingConfigShouldBeUnchanged() error {
	content, err := os.ReadFile(SharedSetupContext.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if string(content) != SharedSetupContext.originalContent {
		return fmt.Errorf("config content was changed")
	}
	return nil
}
