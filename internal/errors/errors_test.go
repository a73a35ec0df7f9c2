package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrAPIStatus(t *testing.T) {
	err := &ErrAPIStatus{Method: "GET", Path: "/devices", Status: 500}
	assert.Contains(t, err.Error(), "GET /devices")
	assert.Contains(t, err.Error(), "500")
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(&ErrAPIStatus{Status: 401}))
	assert.False(t, IsUnauthorized(&ErrAPIStatus{Status: 403}))
	assert.False(t, IsUnauthorized(errors.New("plain")))
	assert.False(t, IsUnauthorized(nil))

	// Wrapped API errors are still detected
	wrapped := fmt.Errorf("call failed: %w", &ErrAPIStatus{Status: 401})
	assert.True(t, IsUnauthorized(wrapped))
}

func TestIsAuthorizationRequired(t *testing.T) {
	assert.True(t, IsAuthorizationRequired(ErrAuthorizationRequired))
	assert.True(t, IsAuthorizationRequired(fmt.Errorf("devices: %w", ErrAuthorizationRequired)))
	assert.False(t, IsAuthorizationRequired(errors.New("other")))
}

func TestUnwrapChain(t *testing.T) {
	inner := errors.New("disk full")
	err := &ErrDatabaseQuery{Operation: "save token", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "save token")
}

func TestErrTokenRefreshRejected(t *testing.T) {
	err := &ErrTokenRefreshRejected{Status: 401}
	assert.Contains(t, err.Error(), "401")
}

func TestErrPollBusy(t *testing.T) {
	err := &ErrPollBusy{Kind: "short"}
	assert.Contains(t, err.Error(), "short poll abandoned")
}
