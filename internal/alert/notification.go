package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// Permission is the staff's answer to "may we show notifications".
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission accepts granted, denied or default in any case.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	}
	return "", fmt.Errorf("alert: unknown notification permission %q", s)
}

// PermissionProvider exposes the current grant state.
type PermissionProvider interface {
	Permission() Permission
}

// PermissionState is a PermissionProvider with an explicit request action.
// Like a browser, it only asks once: after granted or denied, Request
// returns the stored answer.
type PermissionState struct {
	mu    sync.RWMutex
	state Permission
}

// NewPermissionState starts in initial (PermissionDefault if empty).
func NewPermissionState(initial Permission) *PermissionState {
	if initial == "" {
		initial = PermissionDefault
	}
	return &PermissionState{state: initial}
}

// Permission implements PermissionProvider.
func (p *PermissionState) Permission() Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Request records the staff's answer if none was given yet and returns
// the resulting state.
func (p *PermissionState) Request(grant bool) Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PermissionDefault {
		if grant {
			p.state = PermissionGranted
		} else {
			p.state = PermissionDenied
		}
	}
	return p.state
}

// Reset returns the state to PermissionDefault so it can be asked again.
func (p *PermissionState) Reset() {
	p.mu.Lock()
	p.state = PermissionDefault
	p.mu.Unlock()
}

// Notification is a staff-facing message that stays until dismissed.
type Notification struct {
	ChildID            string         `json:"child_id,omitempty"`
	Title              string         `json:"title"`
	Message            string         `json:"message"`
	Severity           logic.Severity `json:"severity"`
	RequireInteraction bool           `json:"require_interaction"`
	Timestamp          time.Time      `json:"timestamp"`
}

// Notifier displays notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SystemNotification is the notification channel. It shows a notification
// only when permission has been granted and never asks for it.
type SystemNotification struct {
	permission PermissionProvider
	notifier   Notifier
	title      string
	now        func() time.Time
}

// NewSystemNotification creates the channel. title heads every notification.
func NewSystemNotification(permission PermissionProvider, notifier Notifier, title string) *SystemNotification {
	if title == "" {
		title = "Sleep check"
	}
	return &SystemNotification{
		permission: permission,
		notifier:   notifier,
		title:      title,
		now:        time.Now,
	}
}

// Name implements Channel.
func (s *SystemNotification) Name() string { return ChannelNotification }

// Alert implements Channel.
func (s *SystemNotification) Alert(ctx context.Context, message string, severity logic.Severity) error {
	if s.notifier == nil || s.permission == nil || s.permission.Permission() != PermissionGranted {
		return nil
	}
	return s.notifier.Notify(ctx, Notification{
		ChildID:            ChildFrom(ctx),
		Title:              s.title,
		Message:            message,
		Severity:           severity,
		RequireInteraction: true,
		Timestamp:          s.now(),
	})
}
