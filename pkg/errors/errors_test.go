package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	rootErr := New("connection refused")
	err := WithContext(WithContext(rootErr, "dial"), "connect to remote")

	assert.EqualError(t, err, "connect to remote: dial: connection refused")
	assert.Equal(t, rootErr, RootCause(err))
	assert.True(t, Is(err, rootErr))
	assert.NoError(t, WithContext(nil, "ignored"))
}

func TestGetFriendlyMessage(t *testing.T) {
	_, ok := GetFriendlyMessage(WithContext(New("plain"), "context"))
	assert.False(t, ok)

	friendly := NewFriendlyError("Host %q is not reachable.", "blog.example.com")
	msg, ok := GetFriendlyMessage(WithContext(friendly, "deploy"))
	assert.True(t, ok)
	assert.Equal(t, `Host "blog.example.com" is not reachable.`, msg)
}
