//go:build integration

package steps

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// lastOutput is the output of the most recent command run by any scenario
var lastOutput = &bytes.Buffer{}

type mockFileChecker struct {
	existingFiles map[string]bool
}

func (m *mockFileChecker) Exists(path string) bool {
	return m.existingFiles[path]
}

func InitializeCommonScenario(ctx *godog.ScenarioContext) {
	ctx.Step(`^the output should contain "([^"]*)"$`, theOutputShouldContain)
}

func theOutputShouldContain(text string) error {
	if !strings.Contains(lastOutput.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, lastOutput.String())
	}
	return nil
}

func expectErrorContaining(err error, text string) error {
	if err == nil {
		return fmt.Errorf("expected an error containing %q, got none", text)
	}
	if !strings.Contains(err.Error(), text) {
		return fmt.Errorf("expected error containing %q, got %q", text, err.Error())
	}
	return nil
}
