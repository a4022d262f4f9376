// Package cli implements the appbuilder command tree.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"appbuilder/pkg/agent"
	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/config"
	"appbuilder/pkg/logx"
	runmetrics "appbuilder/pkg/metrics"
)

// ClientFunc builds the model client for a resolved configuration.
type ClientFunc func(cfg config.Config, secrets map[string]string, recorder runmetrics.Recorder) (llm.LLMClient, error)

// PassphraseFunc obtains the secrets passphrase. confirm asks twice, for a new file.
type PassphraseFunc func(confirm bool) (string, error)

// App carries the collaborators commands share. Tests replace NewClient and
// Passphrase.
type App struct {
	NewClient  ClientFunc
	Passphrase PassphraseFunc
	logger     *logx.Logger
	configPath string
	debug      bool
}

// NewApp returns an App wired to the real provider clients and the terminal.
func NewApp() *App {
	return &App{
		NewClient:  defaultClient,
		Passphrase: terminalPassphrase,
		logger:     logx.NewLogger("cli"),
	}
}

// NewRootCmd builds the command tree.
func (a *App) NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "appbuilder",
		Short: "Generate a small software project from a one-line request",
		Long: `appbuilder turns a free-text request into a project on disk.

A planner model writes a project plan, an architect model breaks it into one
implementation step per file, and a coder agent writes each file through a
sandboxed tool layer rooted at the project directory.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if a.debug {
				logx.SetDebug(true)
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultConfigFile+")")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.newRunCmd(),
		a.newHistoryCmd(),
		a.newSecretsCmd(),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with ctx and os.Args.
func Execute(ctx context.Context) error {
	return NewApp().NewRootCmd().ExecuteContext(ctx) //nolint:wrapcheck // surfaced as-is by main
}

// loadConfig resolves the configuration file and environment. Flag overrides are
// applied by the caller before Validate.
func (a *App) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.configPath, a.configPath != "")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadSecrets decrypts the secrets file when one exists. A file that cannot be
// unlocked is reported and skipped so environment keys still work.
func (a *App) loadSecrets() map[string]string {
	path, err := config.SecretsPath()
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	passphrase, err := a.Passphrase(false)
	if err != nil {
		a.logger.Warn("⚠️  Secrets file %s not unlocked: %v", path, err)
		return nil
	}
	secrets, err := config.LoadSecrets(path, passphrase)
	if err != nil {
		a.logger.Warn("⚠️  Secrets file %s not unlocked: %v", path, err)
		return nil
	}
	return secrets
}

func defaultClient(cfg config.Config, secrets map[string]string, recorder runmetrics.Recorder) (llm.LLMClient, error) {
	return agent.NewLLMClientFactory(cfg, secrets, recorder, logx.NewLogger("llm")).CreateClient() //nolint:wrapcheck // factory errors carry context
}

// terminalPassphrase reads APPBUILDER_PASSPHRASE, or prompts without echo.
func terminalPassphrase(confirm bool) (string, error) {
	if p := os.Getenv(config.EnvPassphrase); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt on; set %s", config.EnvPassphrase)
	}

	fmt.Fprint(os.Stderr, "Secrets passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passphrases do not match")
	}
	return string(first), nil
}

// readLine prompts on out and reads one trimmed line from in.
func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
