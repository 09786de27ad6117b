package client

import (
	"fmt"
	"sync"
)

// Session holds the signed-in identity. It changes only through SignIn and
// SignOut.
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) SignIn(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID, s.token = userID, token
}

func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID, s.token = "", ""
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SignedIn() bool {
	return s.UserID() != ""
}

// ThemeMode is the colour scheme preference.
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// Theme holds the display preference. It changes only through SetMode and Toggle.
type Theme struct {
	mu   sync.RWMutex
	mode ThemeMode
}

// NewTheme returns a theme in mode, falling back to ThemeSystem for unknown modes.
func NewTheme(mode ThemeMode) *Theme {
	t := &Theme{mode: ThemeSystem}
	_ = t.SetMode(mode)
	return t
}

func (t *Theme) Mode() ThemeMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

func (t *Theme) SetMode(mode ThemeMode) error {
	switch mode {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("unknown theme mode %q", mode)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	return nil
}

// Toggle flips between light and dark; system becomes dark.
func (t *Theme) Toggle() ThemeMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == ThemeDark {
		t.mode = ThemeLight
	} else {
		t.mode = ThemeDark
	}
	return t.mode
}
