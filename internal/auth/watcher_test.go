package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlink/ringlink/internal/models"
)

func writeTokenFile(t *testing.T, path string, token *models.OAuthToken) {
	t.Helper()
	data, err := json.Marshal(token)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestImportOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	m, creds, _ := newTestManager(t, "http://unused.invalid")
	ti := NewTokenImporter(path, m)

	writeTokenFile(t, path, &models.OAuthToken{
		AccessToken:  "dropped-access",
		RefreshToken: "dropped-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	})

	imported, err := ti.ImportOnce()
	require.NoError(t, err)
	assert.True(t, imported)

	stored := creds.Token()
	require.NotNil(t, stored)
	assert.Equal(t, "dropped-access", stored.AccessToken)
	assert.NotZero(t, stored.CreatedAt)

	// The file is consumed.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestImportOnceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	m, _, _ := newTestManager(t, "http://unused.invalid")
	ti := NewTokenImporter(path, m)

	imported, err := ti.ImportOnce()
	require.NoError(t, err)
	assert.False(t, imported)
}

func TestImportOnceInvalidToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	m, creds, _ := newTestManager(t, "http://unused.invalid")
	ti := NewTokenImporter(path, m)

	writeTokenFile(t, path, &models.OAuthToken{AccessToken: "only-access"})

	imported, err := ti.ImportOnce()
	require.Error(t, err)
	assert.False(t, imported)
	assert.Nil(t, creds.Token())
}

func TestImportOnceDisabled(t *testing.T) {
	m, _, _ := newTestManager(t, "http://unused.invalid")
	ti := NewTokenImporter("", m)

	imported, err := ti.ImportOnce()
	require.NoError(t, err)
	assert.False(t, imported)
}

func TestWatchImportsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	m, creds, _ := newTestManager(t, "http://unused.invalid")
	ti := NewTokenImporter(path, m)

	ctx := t.Context()
	require.NoError(t, ti.Watch(ctx))

	writeTokenFile(t, path, &models.OAuthToken{
		AccessToken:  "watched-access",
		RefreshToken: "watched-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	})

	assert.Eventually(t, func() bool {
		stored := creds.Token()
		return stored != nil && stored.AccessToken == "watched-access"
	}, 3*time.Second, 10*time.Millisecond)
}
