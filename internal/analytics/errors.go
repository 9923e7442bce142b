package analytics

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
	ErrRegistryClosed  = errors.New("registry closed")
)

// ErrNoFingerprint у сессии нет кадров для построения отпечатка
var ErrNoFingerprint = errors.New("fingerprint unavailable")
