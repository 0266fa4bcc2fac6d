package session

import "errors"

// Navigator is the client's view of where the user currently is.
type Navigator interface {
	CurrentPath() string
	// Replace moves to path without keeping the current location in history.
	Replace(path string) error
}

// Redirector sends the user to AuthPath and remembers where they were so
// the sign-in flow can resume there.
type Redirector struct {
	nav             Navigator
	setRedirectPath func(path string) error
}

func NewRedirector(nav Navigator, setRedirectPath func(path string) error) (*Redirector, error) {
	if nav == nil {
		return nil, errors.New("session: navigator is required")
	}
	if setRedirectPath == nil {
		return nil, errors.New("session: redirect path setter is required")
	}
	return &Redirector{nav: nav, setRedirectPath: setRedirectPath}, nil
}

// Redirect stores the current path and navigates to AuthPath. It does
// nothing and returns false when the navigator is already at AuthPath, so
// repeated failures cannot overwrite the saved location.
func (r *Redirector) Redirect() (bool, error) {
	current := r.nav.CurrentPath()
	if current == AuthPath {
		return false, nil
	}
	if err := r.setRedirectPath(current); err != nil {
		return false, err
	}
	if err := r.nav.Replace(AuthPath); err != nil {
		return false, err
	}
	return true, nil
}

// HandleError redirects when err is a session expiry and reports whether it
// did. Other errors are left to the caller.
func (r *Redirector) HandleError(err error) (bool, error) {
	if !IsExpired(err) {
		return false, nil
	}
	return r.Redirect()
}
