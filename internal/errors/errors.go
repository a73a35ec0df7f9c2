package errors

import (
	"errors"
	"fmt"
)

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Credential errors

// ErrAuthorizationRequired means there is no usable token and the user must
// complete the authorization flow. Never retried automatically; callers fail
// fast without any network I/O.
var ErrAuthorizationRequired = errors.New("authorization by user is required")

// IsAuthorizationRequired reports whether err is the fail-fast
// no-usable-token condition.
func IsAuthorizationRequired(err error) bool {
	return errors.Is(err, ErrAuthorizationRequired)
}

// ErrTokenRefreshRejected means the refresh token itself was rejected by the
// authorization server. Terminal for the current credential set.
type ErrTokenRefreshRejected struct {
	Status int
}

func (e *ErrTokenRefreshRejected) Error() string {
	return fmt.Sprintf("token refresh rejected by authorization server (status %d)", e.Status)
}

// API errors

// ErrAPIStatus is a non-2xx response from an authenticated Ring API call.
type ErrAPIStatus struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *ErrAPIStatus) Error() string {
	return fmt.Sprintf("ring API %s %s returned status %d", e.Method, e.Path, e.Status)
}

// IsUnauthorized reports whether err is a 401 API response, the trigger for
// the one-shot retry-with-refresh.
func IsUnauthorized(err error) bool {
	var apiErr *ErrAPIStatus
	if errors.As(err, &apiErr) {
		return apiErr.Status == 401
	}
	return false
}

// Node errors

type ErrNodeNotFound struct {
	Address string
}

func (e *ErrNodeNotFound) Error() string {
	return fmt.Sprintf("node not found: %s", e.Address)
}

// IsNodeNotFound checks whether err is a missing-node error
func IsNodeNotFound(err error) bool {
	var nodeErr *ErrNodeNotFound
	return errors.As(err, &nodeErr)
}

type ErrUnknownCommand struct {
	Address string
	Command string
}

func (e *ErrUnknownCommand) Error() string {
	return fmt.Sprintf("node %s does not accept command %s", e.Address, e.Command)
}

// IsUnknownCommand checks whether err is an unsupported-command error
func IsUnknownCommand(err error) bool {
	var cmdErr *ErrUnknownCommand
	return errors.As(err, &cmdErr)
}

// Poll errors

// ErrPollBusy means a poll tick of the same kind was still running and the
// reentry lock could not be acquired within its bounded wait.
type ErrPollBusy struct {
	Kind string
}

func (e *ErrPollBusy) Error() string {
	return fmt.Sprintf("%s poll abandoned: previous poll still running", e.Kind)
}
