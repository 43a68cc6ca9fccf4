package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalizeKindThroughWrapping(t *testing.T) {
	base := &ChainFinalizeError{Kind: FinalizeSequencingConflict, Err: errors.New("nonce too low")}
	wrapped := fmt.Errorf("finalize item 7: %w", base)

	assert.True(t, IsSequencingConflict(wrapped))
	assert.False(t, IsAlreadyDone(wrapped))
	assert.Equal(t, FinalizeSequencingConflict, FinalizeKind(wrapped))
	assert.Equal(t, FinalizeErrorKind(""), FinalizeKind(errors.New("plain")))
}

func TestTransientNetworkError(t *testing.T) {
	assert.Nil(t, NewTransientNetworkError("eth_blockNumber", nil))

	cause := errors.New("connection refused")
	err := fmt.Errorf("poll: %w", NewTransientNetworkError("eth_blockNumber", cause))
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "eth_blockNumber")
}

func TestExternalServiceErrorMessage(t *testing.T) {
	assert.Equal(t, "image generator returned status 502: bad gateway",
		(&ExternalServiceError{Service: "image generator", StatusCode: 502, Body: "bad gateway"}).Error())
	assert.Equal(t, "pinata returned status 401",
		(&ExternalServiceError{Service: "pinata", StatusCode: 401}).Error())
	assert.Equal(t, "pinata failed: decode",
		(&ExternalServiceError{Service: "pinata", Err: errors.New("decode")}).Error())
}

func TestIsConfigurationError(t *testing.T) {
	err := fmt.Errorf("load: %w", &ConfigurationError{Field: "database.dsn", Reason: "required"})
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "database.dsn")
}
