package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LoginMode selects how the browser login is detected.
type LoginMode string

const (
	// ModeWatch watches the page URL, then the cookie jar, until login shows up.
	ModeWatch LoginMode = "watch"
	// ModeManual waits for the user to press ENTER.
	ModeManual LoginMode = "manual"
	// ModePersistent is ModeManual on a durable browser profile.
	ModePersistent LoginMode = "persistent"
)

func parseLoginMode(s string) (LoginMode, error) {
	switch m := LoginMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeWatch, ModeManual, ModePersistent:
		return m, nil
	}
	return "", fmt.Errorf("unknown login mode %q (want watch, manual or persistent)", s)
}

// authenticatedRoutes are path fragments only a logged-in user reaches.
var authenticatedRoutes = []string{"/chat", "/settings", "/projects"}

// Acquirer produces a validated credential through an interactive login.
type Acquirer interface {
	Acquire(ctx context.Context) (Credential, error)
}

type validator interface {
	Validate(ctx context.Context, cred Credential) bool
}

// Login drives a browser through the claude.ai login and harvests its cookies.
type Login struct {
	Mode         LoginMode
	TargetURL    string
	ProfileDir   string
	UserAgent    string
	ExecPath     string
	Timeout      time.Duration
	PollInterval time.Duration

	validator validator
	launch    launcher
	confirm   confirmer
	out       io.Writer
}

func NewLogin(cfg Config, mode LoginMode, v validator) *Login {
	return &Login{
		Mode:         mode,
		TargetURL:    cfg.BaseURL,
		ProfileDir:   cfg.ProfileDir,
		UserAgent:    cfg.UserAgent,
		ExecPath:     cfg.ChromePath,
		Timeout:      cfg.loginTimeout(),
		PollInterval: cfg.pollInterval(),
		validator:    v,
		launch:       launchBrowser,
		confirm:      defaultConfirmer,
		out:          os.Stderr,
	}
}

// Acquire opens the browser, waits for the user to log in and returns the
// validated cookie set. The browser is closed before Acquire returns.
func (l *Login) Acquire(ctx context.Context) (cred Credential, err error) {
	ctx, span := tracer.Start(ctx, "login:Acquire")
	span.SetAttributes(attribute.String("login.mode", string(l.Mode)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	opts := launchOptions{
		UserAgent:      l.UserAgent,
		ExecPath:       l.ExecPath,
		HideAutomation: l.Mode != ModePersistent,
	}
	if l.Mode == ModePersistent {
		if err := os.MkdirAll(l.ProfileDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create browser profile directory: %w", err)
		}
		opts.ProfileDir = l.ProfileDir
	}

	l.printInstructions()

	sess, err := l.launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Debug("browser did not close cleanly", "err", cerr)
		}
	}()

	if err := sess.Navigate(ctx, l.TargetURL); err != nil {
		if ctx.Err() != nil {
			return nil, ErrUserCancelled
		}
		return nil, fmt.Errorf("failed to open %s: %w", l.TargetURL, err)
	}

	if l.Mode == ModeWatch {
		err = l.waitForLogin(ctx, sess)
	} else {
		err = l.confirm.Confirm("Press ENTER after you have logged in and see the Claude interface...")
	}
	if err != nil {
		return nil, err
	}

	slog.Info("extracting cookies")
	cookies, err := sess.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	cred = Credential(cookies)
	if !cred.HasSessionKey() {
		return nil, ErrSessionKeyMissing
	}
	slog.Info("found cookies including sessionKey", "count", len(cred))

	slog.Info("validating cookies")
	if !l.validator.Validate(ctx, cred) {
		return nil, ErrValidationFailed
	}
	slog.Info("cookies validated")
	return cred, nil
}

// waitForLogin waits for the page to land on an authenticated route and,
// failing that, for the session cookie to appear. Both share one deadline.
func (l *Login) waitForLogin(ctx context.Context, sess browserSession) error {
	deadline := time.Now().Add(l.Timeout)
	slog.Info("waiting for login completion", "timeout", l.Timeout)

	err := pollUntil(ctx, l.PollInterval, l.Timeout, func(ctx context.Context) error {
		loc, err := sess.URL(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if isAuthenticatedURL(loc) {
			return nil
		}
		return errNotReady
	})
	if err == nil {
		slog.Info("login detected via URL change")
		return nil
	}
	if ctx.Err() != nil {
		return ErrUserCancelled
	}
	slog.Info("URL detection failed, checking for sessionKey cookie", "reason", err)

	err = pollUntil(ctx, l.PollInterval, time.Until(deadline), func(ctx context.Context) error {
		cookies, err := sess.Cookies(ctx)
		if err != nil {
			return err
		}
		if Credential(cookies).HasSessionKey() {
			return nil
		}
		return errNotReady
	})
	switch {
	case err == nil:
		slog.Info("login detected via sessionKey cookie")
		return nil
	case ctx.Err() != nil:
		return ErrUserCancelled
	case errors.Is(err, errPollTimeout):
		return ErrLoginTimeout
	default:
		return fmt.Errorf("%w: %v", ErrLoginTimeout, err)
	}
}

func isAuthenticatedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, route := range authenticatedRoutes {
		if strings.Contains(u.Path, route) {
			return true
		}
	}
	return false
}

func (l *Login) printInstructions() {
	if l.Mode == ModeWatch {
		fmt.Fprintf(l.out, "Please log in to Claude.ai in the browser window.\n")
		fmt.Fprintf(l.out, "Waiting up to %s; navigate to any page (chat, settings, projects) once logged in.\n", l.Timeout)
		return
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(l.out, rule)
	if l.Mode == ModePersistent {
		fmt.Fprintf(l.out, "Opening browser with persistent profile %s\n", l.ProfileDir)
		fmt.Fprintln(l.out, "You may already be logged in from a previous run.")
	} else {
		fmt.Fprintln(l.out, "Opening browser for Claude.ai login")
	}
	fmt.Fprintln(l.out, rule)
	fmt.Fprintln(l.out, "1. Log in to Claude.ai in the browser window")
	fmt.Fprintln(l.out, "2. Navigate to any page (chat/settings/projects)")
	fmt.Fprintln(l.out, "3. Return to this terminal and press ENTER")
	fmt.Fprintln(l.out, rule)
}
