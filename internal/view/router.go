// Package view decides which top-level screen a visitor sees.
package view

import "sync"

// View names a screen.
type View string

const (
	SignUp View = "signup"
	Login  View = "login"
	Home   View = "home"
)

// Parse maps a query value onto a view. Unknown values report false.
func Parse(s string) (View, bool) {
	switch View(s) {
	case SignUp, Login, Home:
		return View(s), true
	default:
		return "", false
	}
}

// Router holds the current view. Home is reachable only through a session; with a session present
// manual navigation is ignored.
type Router struct {
	mu         sync.Mutex
	current    View
	hasSession bool
}

// NewRouter starts on the sign-up view.
func NewRouter() *Router {
	return &Router{current: SignUp}
}

// Current returns the active view.
func (r *Router) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate switches between the sign-up and login views. It reports whether the view changed.
func (r *Router) Navigate(v View) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasSession || (v != SignUp && v != Login) || v == r.current {
		return false
	}
	r.current = v
	return true
}

// SessionChanged reacts to auth transitions: a session forces Home, losing it returns to SignUp.
func (r *Router) SessionChanged(hasSession bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasSession = hasSession
	if hasSession {
		r.current = Home
		return
	}
	if r.current == Home {
		r.current = SignUp
	}
}
