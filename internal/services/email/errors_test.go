package email

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("unexpected EOF"), true},
		{errors.New("imap: protocol error"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("socket closed"), true},
		{errors.New("LOGIN failed: invalid credentials"), false},
		{errors.New("mailbox does not exist"), false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, IsTransient(tt.err), "IsTransient(%v)", tt.err)
	}
}

func TestIsTransientSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("login: %w", errors.New("read tcp: i/o timeout"))
	require.True(t, IsTransient(err))
}

func TestIsAuthError(t *testing.T) {
	auth := &AuthError{Username: "u", Err: errors.New("bad credentials")}
	require.True(t, IsAuthError(auth))
	require.True(t, IsAuthError(fmt.Errorf("connect: %w", auth)))
	require.False(t, IsAuthError(errors.New("timeout")))
	require.False(t, IsAuthError(&ConnectionError{Err: errors.New("refused")}))
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{Err: errors.New("refused"), RetriesExhausted: true}
	require.Contains(t, err.Error(), "after all retries")
	require.ErrorContains(t, &ConnectionError{Err: errors.New("refused")}, "connection failed")
}
