// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import "sync"

// Severity of an alert, mirroring the three message boxes of the dialog.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Alert is a message for the user.
type Alert struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Notifier shows alerts to the user.
type Notifier interface {
	Notify(a Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Alert)

func (f NotifierFunc) Notify(a Alert) {
	f(a)
}

// Collector keeps the alerts it receives, for callers that render them later.
type Collector struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *Collector) Notify(a Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alerts = append(c.alerts, a)
}

// Alerts returns a copy of what was collected so far.
func (c *Collector) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Alert(nil), c.alerts...)
}
