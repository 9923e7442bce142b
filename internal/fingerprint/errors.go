package fingerprint

import "errors"

var (
	ErrDatabaseFull   = errors.New("device database full")
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already registered")
	ErrInvalidName    = errors.New("invalid device name")
	// ErrNotReady отпечаток еще не сформирован
	ErrNotReady = errors.New("fingerprint not ready")
	// ErrInvalidLayout двоичное представление неверной длины
	ErrInvalidLayout = errors.New("invalid fingerprint layout")
	// ErrHashMismatch хеш не совпадает с содержимым
	ErrHashMismatch = errors.New("fingerprint hash mismatch")
)
