package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-1", "Physics Batch.txt")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	grant, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "export-1", grant.ExportID)
	require.Equal(t, "Physics Batch.txt", grant.RelPath)
	require.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("export-1", "report.txt")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = signer.Parse(token, false)
	require.Error(t, err)

	grant, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "report.txt", grant.RelPath)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("export-1", "report.txt")
	require.NoError(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, err = other.Parse(token, false)
	require.Error(t, err)

	_, err = signer.Parse("export-1.123.abc", false)
	require.Error(t, err)

	_, _, err = signer.Generate("bad.id", "report.txt")
	require.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("export-1", "report.txt")
	require.Error(t, err)
}
