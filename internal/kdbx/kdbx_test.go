package kdbx_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobischo/gokeepasslib/v3"

	"github.com/maynagashev/portfolio-backup/internal/kdbx"
)

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.kdbx")
	db, err := kdbx.NewDatabase("secret")
	require.NoError(t, err)

	want := kdbx.Session{ServerURL: "https://backup.example.com", Token: "jwt-token"}
	require.NoError(t, kdbx.SaveSession(db, want))
	require.NoError(t, kdbx.SaveFile(db, path, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	opened, err := kdbx.OpenFile(path, "secret")
	require.NoError(t, err)
	got, err := kdbx.LoadSession(opened)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveSessionEmptyValuesRemoveKeys(t *testing.T) {
	db, err := kdbx.NewDatabase("secret")
	require.NoError(t, err)
	require.NoError(t, kdbx.SaveSession(db, kdbx.Session{ServerURL: "http://a", Token: "t1"}))
	require.NoError(t, kdbx.SaveSession(db, kdbx.Session{ServerURL: "http://b", Token: "t2"}))
	assert.Len(t, db.Content.Meta.CustomData, 2, "Ключи обновляются, а не дублируются")

	require.NoError(t, kdbx.SaveSession(db, kdbx.Session{ServerURL: "http://b"}))

	got, err := kdbx.LoadSession(db)
	require.NoError(t, err)
	assert.Equal(t, kdbx.Session{ServerURL: "http://b"}, got)
	assert.NotNil(t, db.Content.Root.Groups[0].Times.LastModificationTime)
}

func TestLoadSessionErrors(t *testing.T) {
	_, err := kdbx.LoadSession(nil)
	require.Error(t, err)
	require.Error(t, kdbx.SaveSession(&gokeepasslib.Database{}, kdbx.Session{}))

	db, err := kdbx.NewDatabase("secret")
	require.NoError(t, err)
	s, err := kdbx.LoadSession(db)
	require.NoError(t, err)
	assert.Empty(t, s.Token)
}

func TestOpenFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := kdbx.OpenFile(filepath.Join(dir, "missing.kdbx"), "secret")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := filepath.Join(dir, "vault.kdbx")
	db, err := kdbx.NewDatabase("secret")
	require.NoError(t, err)
	require.NoError(t, kdbx.SaveFile(db, path, "secret"))

	_, err = kdbx.OpenFile(path, "wrong")
	assert.Error(t, err)
}

func TestNewDatabaseRequiresPassword(t *testing.T) {
	_, err := kdbx.NewDatabase("")
	assert.Error(t, err)
	assert.Error(t, kdbx.SaveFile(nil, filepath.Join(t.TempDir(), "x.kdbx"), "secret"))
}
