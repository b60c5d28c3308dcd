package navigation

import "errors"

// ErrWizardNotEntered is returned when a wizard could not enter its first step.
var ErrWizardNotEntered = errors.New("wizard first step was not entered")

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")
