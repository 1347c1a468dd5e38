package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
)

// WizardResult holds the answers collected by the interactive setup wizard.
type WizardResult struct {
	Host       string
	AuthHeader string
	AuthValue  string
	Recursive  bool
}

func authOptions() []huh.Option[string] {
	return []huh.Option[string]{
		huh.NewOption("None", "none"),
		huh.NewOption("Bearer token", "bearer"),
		huh.NewOption("API key header", "apikey"),
	}
}

// RunSetupWizard walks the user through a short interactive form and writes
// a starter config.resty (variables) and smoke.resty (one test) to dir.
func RunSetupWizard(dir string) (*WizardResult, error) {
	var (
		host     string
		authKind string
		apiKey   string
	)

	fmt.Println()
	fmt.Println("  Welcome to resty - a scriptable REST API test runner")
	fmt.Println("  Let's set up your first test file.")
	fmt.Println()

	hostForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL of the API under test").
				Description("Used as the $host variable in generated tests.").
				Placeholder("https://api.example.com").
				Value(&host),
			huh.NewSelect[string]().
				Title("Authentication").
				Description("How should generated requests authenticate?").
				Options(authOptions()...).
				Value(&authKind),
		),
	).WithTheme(huh.ThemeDracula())

	if err := hostForm.Run(); err != nil {
		return nil, fmt.Errorf("setup cancelled: %w", err)
	}

	result := &WizardResult{Host: host}

	if authKind != "none" {
		keyForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("API key or token").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
			),
		).WithTheme(huh.ThemeDracula())
		if err := keyForm.Run(); err != nil {
			return nil, fmt.Errorf("setup cancelled: %w", err)
		}
		if authKind == "bearer" {
			result.AuthHeader = "Authorization"
			result.AuthValue = "Bearer " + apiKey
		} else {
			result.AuthHeader = "X-API-Key"
			result.AuthValue = apiKey
		}
	}

	if err := writeStarterFiles(dir, result); err != nil {
		return nil, err
	}
	return result, nil
}

func writeStarterFiles(dir string, r *WizardResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.resty")
	if err := createFile(configPath, renderConfigBlock(r)); err != nil {
		return err
	}

	examplePath := filepath.Join(dir, "smoke.resty")
	return createFile(examplePath, renderSmokeTest(r))
}

func renderConfigBlock(r *WizardResult) string {
	s := "# Shared configuration\n\n```yaml\nconfig: true\nvariables:\n  host: \"" + r.Host + "\"\n"
	if r.AuthHeader != "" {
		s += "  auth_header: \"" + r.AuthHeader + "\"\n  auth_value: \"" + r.AuthValue + "\"\n"
	}
	s += "```\n"
	return s
}

func renderSmokeTest(r *WizardResult) string {
	s := "# Smoke test\n\n```yaml\ntest: ping the API\nget: \"$host/\"\n"
	if r.AuthHeader != "" {
		s += "headers:\n  " + r.AuthHeader + ": \"$auth_value\"\n"
	}
	s += "expect:\n  status: 200\n```\n"
	return s
}

// createFile writes content to path only if it does not already exist, so
// re-running the wizard never clobbers a file the user has edited.
func createFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
