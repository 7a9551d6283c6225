package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnattributable   = errors.New("no audit log entry for event")
	ErrNoSnapshot       = errors.New("no snapshot for guild")
	ErrLockdownActive   = errors.New("lockdown already active")
	ErrNotLocked        = errors.New("guild is not in lockdown")
	ErrPermissionDenied = errors.New("bot lacks permissions")
	ErrNotFound         = errors.New("not found")
)

// PlatformError envuelve fallos de la API (red, rate-limit, permisos).
type PlatformError struct {
	Op     string
	Status int
	Code   int
	Err    error
}

func (e *PlatformError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: status %d code %d: %v", e.Op, e.Status, e.Code, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

func (e *PlatformError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		// 50001 missing access, 50013 missing permissions
		return e.Status == http.StatusForbidden || e.Code == 50001 || e.Code == 50013
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
