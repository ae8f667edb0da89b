package faults

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("refresh call: %w", Wrap(KindNetwork, "dial upstream", cause))

	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestRetryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindTimeout, KindRateLimited}
	for _, kind := range retryable {
		assert.True(t, Retryable(New(kind, "x")), "kind %s", kind)
	}

	terminal := []Kind{
		KindUpstream, KindValidation, KindNotFound, KindConflict,
		KindUnauthorized, KindForbidden, KindSessionExpired,
		KindInvalidInput, KindStateError, KindUnknown, KindOffline,
	}
	for _, kind := range terminal {
		assert.False(t, Retryable(New(kind, "x")), "kind %s", kind)
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindSessionExpired))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindUpstream))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(KindStateError))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindUnknown))
}
