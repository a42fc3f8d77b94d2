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

type configContext struct {
	tempDir    string
	configPath string
	cfg        *config.Config
	err        error
}

// SharedConfigContext is reset before each scenario via Before hook
var SharedConfigContext *configContext

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return c, err
		}
		SharedConfigContext = &configContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config", "config.yaml"),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedConfigContext != nil && SharedConfigContext.tempDir != "" {
			os.RemoveAll(SharedConfigContext.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^no configuration file exists$`, noConfigurationFileExists)
	ctx.Step(`^I load the configuration$`, iLoadTheConfiguration)
	ctx.Step(`^I set "([^"]*)" to "([^"]*)"$`, iSetTo)
	ctx.Step(`^the setting "([^"]*)" should be "([^"]*)"$`, theSettingShouldBe)
	ctx.Step(`^the config command should fail with "([^"]*)"$`, theConfigCommandShouldFailWith)
}

func noConfigurationFileExists() error {
	if _, err := os.Stat(SharedConfigContext.configPath); !os.IsNotExist(err) {
		return fmt.Errorf("config file unexpectedly exists at %s", SharedConfigContext.configPath)
	}
	return nil
}

func iLoadTheConfiguration() error {
	c := SharedConfigContext
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg
	return nil
}

func iSetTo(key, value string) error {
	c := SharedConfigContext
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return err
	}
	c.err = cmd.RunConfigSetWithDependencies(cfg, c.configPath, key, value, &bytes.Buffer{})
	return nil
}

func theSettingShouldBe(key, expected string) error {
	var out bytes.Buffer
	if err := cmd.RunConfigGetWithDependencies(SharedConfigContext.cfg, key, &out); err != nil {
		return err
	}
	if got := strings.TrimSpace(out.String()); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", key, expected, got)
	}
	return nil
}

func theConfigCommandShouldFailWith(text string) error {
	return expectErrorContaining(SharedConfigContext.err, text)
}
