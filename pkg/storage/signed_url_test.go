package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("lesson", "lessons/greetings.json")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	grant, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "lesson", grant.Kind)
	require.Equal(t, "lessons/greetings.json", grant.Path)
	require.Equal(t, expiresAt, grant.ExpiresAt)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("snapshot", "snapshots/student_data.json")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	grant, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "snapshots/student_data.json", grant.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("roster", "rosters/a.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "lesson"
	_, err = signer.Parse(strings.Join(parts, "."), false)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, err = NewSignedURLSigner("other", time.Hour).Parse(token, false)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, err = signer.Parse("not-a-token", false)
	require.ErrorIs(t, err, ErrTokenMalformed)
}
