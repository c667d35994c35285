package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// newUsageSnapshot lifts the fields we care about out of the raw usage
// response. The 7-day rollup is passed through untouched.
func newUsageSnapshot(raw usageResponse) *UsageSnapshot {
	s := &UsageSnapshot{
		CurrentPeriod: PeriodUsage{
			MessageCount: raw.MessageCount,
			MessageLimit: raw.MessageLimit,
			Remaining:    raw.MessageLimit - raw.MessageCount,
		},
		ResetAt:   raw.ResetAt,
		UsageType: raw.UsageType,
	}
	if len(raw.Usage7d) > 0 && string(raw.Usage7d) != "null" {
		s.Last7Days = raw.Usage7d
	}
	return s
}

// Weekly decodes the 7-day rollup, if the upstream sent one.
func (s *UsageSnapshot) Weekly() (*WeeklyRollup, bool) {
	if len(s.Last7Days) == 0 {
		return nil, false
	}
	var w WeeklyRollup
	if err := json.Unmarshal(s.Last7Days, &w); err != nil {
		return nil, false
	}
	return &w, true
}

// Compact renders the one-line form used by status bars.
func (s *UsageSnapshot) Compact() string {
	parts := []string{
		fmt.Sprintf("msgs:%d/%d", s.CurrentPeriod.Remaining, s.CurrentPeriod.MessageLimit),
	}
	if w, ok := s.Weekly(); ok {
		parts = append(parts, fmt.Sprintf("7d:%.0f/%.0fm", w.TotalMinutes, w.LimitMinutes))
	}
	return strings.Join(parts, " ")
}
