// internal/errors/errors.go
package appErrors

import (
    "errors"
    "fmt"
)

var (
    ErrMissingIdentifier    = errors.New("identifier is required")
    ErrGatewayUnauthorized  = errors.New("messaging gateway rejected credentials")
    ErrGatewayNotConfigured = errors.New("messaging gateway is not configured")
    ErrLeadNotFound         = errors.New("lead not found")
    ErrRunNotResumable      = errors.New("campaign run cannot be resumed")
)

// ErrRunNotFound is returned when a campaign run id has no row.
type ErrRunNotFound struct {
    RunID string
}

func (e *ErrRunNotFound) Error() string {
    return fmt.Sprintf("campaign run %s not found", e.RunID)
}

// Helper constructor
func NewRunNotFound(id string) error {
    return &ErrRunNotFound{RunID: id}
}

// ErrInvalidRunConfig rejects a run before any loop is started.
type ErrInvalidRunConfig struct {
    Reason string
}

func (e *ErrInvalidRunConfig) Error() string {
    return "invalid campaign run config: " + e.Reason
}

func NewInvalidRunConfig(format string, args ...any) error {
    return &ErrInvalidRunConfig{Reason: fmt.Sprintf(format, args...)}
}

// IsRunNotFound reports whether err wraps an ErrRunNotFound.
func IsRunNotFound(err error) bool {
    var target *ErrRunNotFound
    return errors.As(err, &target)
}

func IsInvalidRunConfig(err error) bool {
    var target *ErrInvalidRunConfig
    return errors.As(err, &target)
}
