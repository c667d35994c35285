package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	verbose    bool
	cfg        Config
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "claude-session",
		Short:         "claude-session harvests a claude.ai session cookie and reports message usage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogger()
			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default "+configPath()+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.cookieCmd(),
		a.usageCmd(),
		a.validateCmd(),
		a.inspectCmd(),
		a.watchCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) setupLogger() {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	noColor := true
	if f, ok := a.stderr.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	logger := slog.New(tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
	slog.SetDefault(logger)
}

func (a *app) resolver(mode LoginMode, interactive bool) *Resolver {
	client := NewClient(a.cfg)
	var acq Acquirer
	if interactive {
		login := NewLogin(a.cfg, mode, client)
		login.out = a.stderr
		acq = login
	}
	return NewResolver(a.cfg, client, acq)
}

func (a *app) cookieCmd() *cobra.Command {
	var mode string
	var noLogin bool

	cmd := &cobra.Command{
		Use:   "cookie",
		Short: "Prints a working session cookie set, logging in through a browser if needed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.cfg.Mode
			}
			m, err := parseLoginMode(mode)
			if err != nil {
				return err
			}
			cred, err := a.resolver(m, !noLogin).Resolve(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(a.stdout, cred)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "login mode: watch, manual or persistent (default from config)")
	cmd.Flags().BoolVar(&noLogin, "no-login", false, "fail instead of opening a browser")
	return cmd
}

// readCookieFile loads the credential at path, or the configured cache when
// path is empty.
func (a *app) readCookieFile(path string) (Credential, error) {
	if path == "" {
		path = a.cfg.CookiePath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("cookie file not found: %s (run \"claude-session cookie\" first)", path)
	}
	return NewCredentialStore(path).Read()
}

func (a *app) usageCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "usage <cookie_file>",
		Short: "Fetches message usage for the first organization of the session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.readCookieFile(args[0])
			if err != nil {
				return err
			}
			usage, err := NewClient(a.cfg).FetchUsage(cmd.Context(), cred)
			if err != nil {
				return err
			}
			if compact {
				_, err := fmt.Fprintln(a.stdout, usage.Compact())
				return err
			}
			return writeJSON(a.stdout, usage)
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print a single status line")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var sessionOnly bool

	cmd := &cobra.Command{
		Use:   "validate [cookie_file]",
		Short: "Checks a cookie file against claude.ai.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.readCookieFile(firstArg(args))
			if err != nil {
				return err
			}
			if sessionOnly {
				key, ok := cred.SessionKey()
				if !ok {
					return ErrSessionKeyMissing
				}
				cred = Credential{key}
			}
			if !NewClient(a.cfg).Validate(cmd.Context(), cred) {
				fmt.Fprintln(a.stdout, "invalid")
				return ErrCredentialInvalid
			}
			fmt.Fprintln(a.stdout, "valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&sessionOnly, "session-only", false, "probe with the sessionKey cookie alone")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [cookie_file]",
		Short: "Prints the structure of a cookie file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.readCookieFile(firstArg(args))
			if err != nil {
				return err
			}
			renderCookies(a.stdout, cred)
			return nil
		},
	}
}

func renderCookies(w io.Writer, cred Credential) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Domain", "Path", "Secure", "HttpOnly", "Expires"})
	for i, ck := range cred {
		t.AppendRow(table.Row{i + 1, ck.Name, ck.Domain, ck.Path, ck.Secure, ck.HTTPOnly, formatExpiry(ck.Expires)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	key, ok := cred.SessionKey()
	if !ok {
		fmt.Fprintln(w, "sessionKey present: no")
		return
	}
	fmt.Fprintln(w, "sessionKey present: yes")
	fmt.Fprintf(w, "  Domain:   %s\n", key.Domain)
	fmt.Fprintf(w, "  Path:     %s\n", key.Path)
	fmt.Fprintf(w, "  Secure:   %t\n", key.Secure)
	fmt.Fprintf(w, "  HttpOnly: %t\n", key.HTTPOnly)
	fmt.Fprintf(w, "  Value:    %s\n", truncate(key.Value, 20))
}

func formatExpiry(expires float64) string {
	if expires <= 0 {
		return "session"
	}
	return time.Unix(int64(expires), 0).Format(time.ANSIC)
}

func (a *app) watchCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "watch [cookie_file]",
		Short: "Shows a live usage dashboard.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cred Credential
			var err error
			if len(args) == 1 {
				cred, err = a.readCookieFile(args[0])
			} else {
				if mode == "" {
					mode = a.cfg.Mode
				}
				var m LoginMode
				if m, err = parseLoginMode(mode); err != nil {
					return err
				}
				cred, err = a.resolver(m, true).Resolve(cmd.Context())
			}
			if err != nil {
				return err
			}

			client := NewClient(a.cfg)
			fetch := func(ctx context.Context) (*UsageSnapshot, error) {
				return client.FetchUsage(ctx, cred)
			}
			// the dashboard owns the terminal; keep log lines out of it
			slog.SetDefault(slog.New(slog.DiscardHandler))

			p := tea.NewProgram(newModel(cmd.Context(), fetch), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "login mode when no cookie file is given")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the effective configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(a.stdout, a.cfg)
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
