package main

import (
	"encoding/json"
	"strings"
)

// sessionCookieName is the cookie whose presence marks an authenticated session.
const sessionCookieName = "sessionKey"

// Cookie mirrors the browser's cookie model so cached files stay
// interchangeable with what the browser hands back.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // seconds since epoch, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Credential is the ordered cookie set harvested from a logged-in browser.
type Credential []Cookie

// Header joins every cookie into a single Cookie header value.
func (c Credential) Header() string {
	pairs := make([]string, 0, len(c))
	for _, ck := range c {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	return strings.Join(pairs, "; ")
}

// SessionKey returns the load-bearing cookie, if present.
func (c Credential) SessionKey() (Cookie, bool) {
	for _, ck := range c {
		if ck.Name == sessionCookieName {
			return ck, true
		}
	}
	return Cookie{}, false
}

func (c Credential) HasSessionKey() bool {
	_, ok := c.SessionKey()
	return ok
}

// envCredential builds the single-cookie record used for the environment override.
func envCredential(value string) Credential {
	return Credential{{
		Name:   sessionCookieName,
		Value:  value,
		Domain: ".claude.ai",
		Path:   "/",
	}}
}

type Organization struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type usageResponse struct {
	MessageCount int             `json:"message_count"`
	MessageLimit int             `json:"message_limit"`
	ResetAt      *string         `json:"reset_at"`
	UsageType    *string         `json:"usage_type"`
	Usage7d      json.RawMessage `json:"usage_7d"`
}

// UsageSnapshot is the reshaped usage record printed to stdout.
type UsageSnapshot struct {
	CurrentPeriod PeriodUsage     `json:"current_period"`
	ResetAt       *string         `json:"reset_at"`
	UsageType     *string         `json:"usage_type"`
	Last7Days     json.RawMessage `json:"last_7_days,omitempty"`
}

type PeriodUsage struct {
	MessageCount int `json:"message_count"`
	MessageLimit int `json:"message_limit"`
	Remaining    int `json:"remaining"`
}

// WeeklyRollup is the 7-day minute budget nested in the usage response.
type WeeklyRollup struct {
	TotalMinutes float64 `json:"total_minutes"`
	LimitMinutes float64 `json:"limit_minutes"`
}
