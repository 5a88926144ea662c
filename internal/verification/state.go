// Package verification tracks a session's login and verification-wall state.
package verification

import "errors"

type State int

const (
	Anonymous State = iota
	LoginAttempted
	VerificationPending
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case LoginAttempted:
		return "login_attempted"
	case VerificationPending:
		return "verification_pending"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MaxLoginAttempts bounds automatic credential submissions per session.
const MaxLoginAttempts = 3

var (
	// ErrVerificationFailed is returned once the machine reached Failed. It is terminal
	// for the session.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrLoginRequired means a login wall was hit without configured credentials.
	ErrLoginRequired = errors.New("login required but no credentials configured")
	// ErrLoginRejected means credentials were submitted but the login page came back.
	ErrLoginRejected = errors.New("login rejected")
)
