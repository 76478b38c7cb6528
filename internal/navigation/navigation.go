// Package navigation tracks which screen is visible and which template, if
// any, is being recorded.
package navigation

import (
	"errors"
	"fmt"
)

// Screen names a view.
type Screen string

const (
	Dashboard      Screen = "dashboard"
	ChooseTemplate Screen = "chooseTemplate"
	ActiveSession  Screen = "activeSession"
	History        Screen = "history"
	LogWeight      Screen = "logWeight"
	Insights       Screen = "insights"
)

var screens = []Screen{Dashboard, ChooseTemplate, ActiveSession, History, LogWeight, Insights}

var (
	ErrUnknownScreen = errors.New("unknown screen")
	// ErrNoActiveSession guards ActiveSession, which is only reachable while a draft exists.
	ErrNoActiveSession = errors.New("no active session")
)

// Screens lists every screen in display order.
func Screens() []Screen {
	out := make([]Screen, len(screens))
	copy(out, screens)
	return out
}

// ParseScreen validates a screen name.
func ParseScreen(s string) (Screen, error) {
	for _, sc := range screens {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScreen, s)
}

// State is a point-in-time view of the router.
type State struct {
	Screen         Screen `json:"screen"`
	ActiveTemplate string `json:"activeTemplate,omitempty"`
}

// Router is the screen state machine. It holds no business logic beyond
// gating ActiveSession; it is not safe for concurrent use.
type Router struct {
	screen         Screen
	activeTemplate string
}

// NewRouter starts on the dashboard.
func NewRouter() *Router {
	return &Router{screen: Dashboard}
}

// State returns the current screen and active template.
func (r *Router) State() State {
	return State{Screen: r.screen, ActiveTemplate: r.activeTemplate}
}

// Go switches screens. Leaving ActiveSession this way keeps the draft, so the
// session can be resumed with Go(ActiveSession).
func (r *Router) Go(s Screen) error {
	if _, err := ParseScreen(string(s)); err != nil {
		return err
	}
	if s == ActiveSession && r.activeTemplate == "" {
		return ErrNoActiveSession
	}
	r.screen = s
	return nil
}

// EnterSession records templateID as active and shows ActiveSession.
func (r *Router) EnterSession(templateID string) {
	r.activeTemplate = templateID
	r.screen = ActiveSession
}

// ExitSession clears the active template and returns to the dashboard. Both
// cancel and finish end here.
func (r *Router) ExitSession() {
	r.activeTemplate = ""
	r.screen = Dashboard
}
