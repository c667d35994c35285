package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrowser stands in for a Chrome session. url and cookies are consulted
// on every poll so tests can script how the login unfolds.
type fakeBrowser struct {
	mu        sync.Mutex
	navigated string
	url       func() string
	cookies   func() Credential
	urlErr    error
	closed    bool
}

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigated = url
	return nil
}

func (b *fakeBrowser) URL(context.Context) (string, error) {
	if b.urlErr != nil {
		return "", b.urlErr
	}
	if b.url == nil {
		return "https://claude.ai/login", nil
	}
	return b.url(), nil
}

func (b *fakeBrowser) Cookies(context.Context) ([]Cookie, error) {
	if b.cookies == nil {
		return nil, nil
	}
	return b.cookies(), nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type stubValidator struct {
	ok    bool
	calls int
}

func (v *stubValidator) Validate(context.Context, Credential) bool {
	v.calls++
	return v.ok
}

type stubConfirmer struct {
	err    error
	prompt string
}

func (c *stubConfirmer) Confirm(prompt string) error {
	c.prompt = prompt
	return c.err
}

func newTestLogin(mode LoginMode, browser *fakeBrowser, v validator) (*Login, *launchOptions) {
	var got launchOptions
	l := &Login{
		Mode:         mode,
		TargetURL:    "https://claude.ai",
		ProfileDir:   "",
		UserAgent:    "test-agent",
		Timeout:      60 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		validator:    v,
		launch: func(_ context.Context, opts launchOptions) (browserSession, error) {
			got = opts
			return browser, nil
		},
		confirm: &stubConfirmer{},
		out:     &bytes.Buffer{},
	}
	return l, &got
}

func TestWatchLoginDetectsURL(t *testing.T) {
	browser := &fakeBrowser{
		url:     func() string { return "https://claude.ai/chat/abc" },
		cookies: testCredential,
	}
	v := &stubValidator{ok: true}
	l, opts := newTestLogin(ModeWatch, browser, v)

	cred, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testCredential(), cred)
	assert.Equal(t, "https://claude.ai", browser.navigated)
	assert.True(t, opts.HideAutomation)
	assert.Empty(t, opts.ProfileDir)
	assert.Equal(t, "test-agent", opts.UserAgent)
	assert.Equal(t, 1, v.calls)
	assert.True(t, browser.isClosed())
}

func TestWatchLoginFallsBackToCookie(t *testing.T) {
	browser := &fakeBrowser{
		url:     func() string { return "https://claude.ai/login" },
		cookies: testCredential,
	}
	l, _ := newTestLogin(ModeWatch, browser, &stubValidator{ok: true})

	cred, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, cred.HasSessionKey())
	assert.True(t, browser.isClosed())
}

func TestWatchLoginCookieAppearsLate(t *testing.T) {
	start := time.Now()
	browser := &fakeBrowser{
		url: func() string { return "https://claude.ai/login" },
		cookies: func() Credential {
			if time.Since(start) < 30*time.Millisecond {
				return []Cookie{{Name: "cf_clearance", Value: "x"}}
			}
			return testCredential()
		},
	}
	l, _ := newTestLogin(ModeWatch, browser, &stubValidator{ok: true})
	l.Timeout = 200 * time.Millisecond

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)
}

func TestWatchLoginTimeout(t *testing.T) {
	browser := &fakeBrowser{
		cookies: func() Credential { return []Cookie{{Name: "cf_clearance", Value: "x"}} },
	}
	v := &stubValidator{ok: true}
	l, _ := newTestLogin(ModeWatch, browser, v)

	start := time.Now()
	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLoginTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, v.calls)
	assert.True(t, browser.isClosed())
}

func TestWatchLoginURLFailureFallsBack(t *testing.T) {
	browser := &fakeBrowser{
		urlErr:  errors.New("target closed"),
		cookies: testCredential,
	}
	l, _ := newTestLogin(ModeWatch, browser, &stubValidator{ok: true})

	cred, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, cred.HasSessionKey())
}

func TestWatchLoginCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	browser := &fakeBrowser{
		url: func() string {
			cancel()
			return "https://claude.ai/login"
		},
	}
	l, _ := newTestLogin(ModeWatch, browser, &stubValidator{ok: true})
	l.Timeout = time.Minute

	_, err := l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.True(t, browser.isClosed())
}

func TestManualLoginConfirms(t *testing.T) {
	browser := &fakeBrowser{cookies: testCredential}
	l, opts := newTestLogin(ModeManual, browser, &stubValidator{ok: true})
	confirm := &stubConfirmer{}
	l.confirm = confirm

	cred, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, cred.HasSessionKey())
	assert.Contains(t, confirm.prompt, "Press ENTER")
	assert.True(t, opts.HideAutomation)
	assert.Contains(t, l.out.(*bytes.Buffer).String(), "3. Return to this terminal and press ENTER")
}

func TestManualLoginCancelled(t *testing.T) {
	browser := &fakeBrowser{cookies: testCredential}
	v := &stubValidator{ok: true}
	l, _ := newTestLogin(ModeManual, browser, v)
	l.confirm = &stubConfirmer{err: ErrUserCancelled}

	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.Zero(t, v.calls)
	assert.True(t, browser.isClosed())
}

func TestLoginSessionKeyMissing(t *testing.T) {
	browser := &fakeBrowser{
		cookies: func() Credential { return []Cookie{{Name: "anthropic-device-id", Value: "d"}} },
	}
	v := &stubValidator{ok: true}
	l, _ := newTestLogin(ModeManual, browser, v)

	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrSessionKeyMissing)
	assert.Zero(t, v.calls)
	assert.True(t, browser.isClosed())
}

func TestLoginValidationFailed(t *testing.T) {
	browser := &fakeBrowser{cookies: testCredential}
	l, _ := newTestLogin(ModeManual, browser, &stubValidator{ok: false})

	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.True(t, browser.isClosed())
}

func TestPersistentLoginUsesProfile(t *testing.T) {
	browser := &fakeBrowser{cookies: testCredential}
	l, opts := newTestLogin(ModePersistent, browser, &stubValidator{ok: true})
	l.ProfileDir = filepath.Join(t.TempDir(), "browser-data")

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(l.ProfileDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, l.ProfileDir, opts.ProfileDir)
	assert.False(t, opts.HideAutomation)
	assert.Contains(t, l.out.(*bytes.Buffer).String(), l.ProfileDir)
}

func TestLaunchFailure(t *testing.T) {
	l, _ := newTestLogin(ModeWatch, nil, &stubValidator{ok: true})
	boom := errors.New("chrome not found")
	l.launch = func(context.Context, launchOptions) (browserSession, error) {
		return nil, boom
	}

	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestIsAuthenticatedURL(t *testing.T) {
	tests := map[string]bool{
		"https://claude.ai/chat/123":             true,
		"https://claude.ai/new?chat=1":           false,
		"https://claude.ai/settings/profile":     true,
		"https://claude.ai/projects":             true,
		"https://claude.ai/login?returnTo=/chat": false,
		"https://claude.ai/":                     false,
		"::not a url":                            false,
	}
	for raw, want := range tests {
		assert.Equal(t, want, isAuthenticatedURL(raw), raw)
	}
}

func TestParseLoginMode(t *testing.T) {
	m, err := parseLoginMode(" Manual ")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, m)

	_, err = parseLoginMode("headless")
	assert.ErrorContains(t, err, "unknown login mode")
}
