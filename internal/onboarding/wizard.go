package onboarding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/fatih/color"
	"github.com/gmsas95/recovery-tracker/internal/catalog"
	"github.com/gmsas95/recovery-tracker/internal/config"
	"go.uber.org/zap"
)

// ErrConfigExists is returned when a config file is already present and
// the wizard was not asked to overwrite it.
var ErrConfigExists = errors.New("config file already exists")

// Wizard handles the interactive setup process
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
	logger *zap.Logger
	config *WizardConfig
	force  bool
}

// WizardConfig holds the configuration collected during setup
type WizardConfig struct {
	DataDir      string
	Backend      string
	Port         int
	Timezone     string
	Warmup       bool
	CatalogPath  string
	WatchCatalog bool
	JWTSecret    string
	Generated    string
}

// NewWizard creates a setup wizard reading answers from in. dataDir is the
// suggested data directory.
func NewWizard(in io.Reader, out io.Writer, logger *zap.Logger, dataDir string) *Wizard {
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
		logger: logger,
		config: &WizardConfig{
			DataDir:  dataDir,
			Backend:  "sqlite",
			Port:     8080,
			Timezone: "UTC",
			Warmup:   true,
		},
	}
}

// Force lets the wizard replace an existing config file
func (w *Wizard) Force(force bool) *Wizard {
	w.force = force
	return w
}

// Run asks each question, writes the config file and returns its path
func (w *Wizard) Run() (string, error) {
	fmt.Fprint(w.out, SetupWizardWelcome)

	if err := w.setupStorage(); err != nil {
		return "", fmt.Errorf("storage setup failed: %w", err)
	}

	configPath := filepath.Join(w.config.DataDir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !w.force {
		return "", fmt.Errorf("%w: %s", ErrConfigExists, configPath)
	}

	if err := w.setupProgram(); err != nil {
		return "", fmt.Errorf("program setup failed: %w", err)
	}

	if err := w.setupServer(); err != nil {
		return "", fmt.Errorf("server setup failed: %w", err)
	}

	if err := w.createConfiguration(configPath); err != nil {
		return "", fmt.Errorf("configuration creation failed: %w", err)
	}

	w.showCompletion(configPath)
	return configPath, nil
}

func (w *Wizard) step(title string) {
	fmt.Fprintf(w.out, "\n%s\n", color.New(color.FgCyan, color.Bold).Sprint(title))
}

func (w *Wizard) setupStorage() error {
	w.step("Step 1: Storage")

	dir, err := w.ask("Data directory", w.config.DataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	w.config.DataDir = dir

	for {
		backend, err := w.ask("Storage backend (sqlite, badger)", w.config.Backend)
		if err != nil {
			return err
		}
		backend = strings.ToLower(backend)
		if backend == "sqlite" || backend == "badger" {
			w.config.Backend = backend
			return nil
		}
		fmt.Fprintln(w.out, "Please answer sqlite or badger.")
	}
}

func (w *Wizard) setupProgram() error {
	w.step("Step 2: Recovery program")

	for {
		tz, err := w.ask("Time zone that defines a calendar day", w.config.Timezone)
		if err != nil {
			return err
		}
		if _, err := time.LoadLocation(tz); err == nil {
			w.config.Timezone = tz
			break
		}
		fmt.Fprintf(w.out, "Unknown time zone %q, try an IANA name such as Europe/Berlin.\n", tz)
	}

	warmup, err := w.confirm("Create day one tasks at enrollment", w.config.Warmup)
	if err != nil {
		return err
	}
	w.config.Warmup = warmup

	for {
		path, err := w.ask("Custom catalog file (empty for built-in)", "")
		if err != nil {
			return err
		}
		if path == "" {
			return nil
		}
		if _, err := catalog.Load(path); err != nil {
			fmt.Fprintf(w.out, "Cannot use that catalog: %v\n", err)
			continue
		}
		w.config.CatalogPath = path
		break
	}

	watch, err := w.confirm("Reload the catalog when the file changes", true)
	if err != nil {
		return err
	}
	w.config.WatchCatalog = watch
	return nil
}

func (w *Wizard) setupServer() error {
	w.step("Step 3: API server")

	for {
		answer, err := w.ask("Port", strconv.Itoa(w.config.Port))
		if err != nil {
			return err
		}
		port, err := strconv.Atoi(answer)
		if err == nil && port > 0 && port <= 65535 {
			w.config.Port = port
			break
		}
		fmt.Fprintln(w.out, "Please enter a port between 1 and 65535.")
	}

	w.config.JWTSecret = config.GenerateSecret()
	fmt.Fprintln(w.out, "A token signing secret was generated. Share it with your identity provider.")
	return nil
}

func (w *Wizard) createConfiguration(path string) error {
	tmpl, err := template.New("config").Parse(ConfigTemplate)
	if err != nil {
		return err
	}

	w.config.Generated = time.Now().Format("2006-01-02")

	var sb strings.Builder
	if err := tmpl.Execute(&sb, w.config); err != nil {
		return err
	}

	// the file holds the signing secret
	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	w.logger.Info("Config written", zap.String("path", path))
	return nil
}

func (w *Wizard) showCompletion(configPath string) {
	message := SetupCompleteMessage
	message = strings.ReplaceAll(message, "{{.ConfigPath}}", configPath)
	message = strings.ReplaceAll(message, "{{.DataDir}}", w.config.DataDir)
	fmt.Fprint(w.out, message)
}

// ask prints prompt with its default and returns the trimmed answer, or
// the default when the answer is empty.
func (w *Wizard) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	line, err := w.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (w *Wizard) confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		answer, err := w.ask(prompt+" ("+hint+")", "")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(w.out, "Please answer y or n.")
	}
}

// CheckFirstRun reports whether dataDir has no config file yet
func CheckFirstRun(dataDir string) bool {
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	_, err := os.Stat(filepath.Join(dataDir, config.FileName))
	return os.IsNotExist(err)
}
