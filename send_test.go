package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsync-app/clipsync/internal/payload"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestBuildSendDescriptorSingleFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTempFile(t, dir, "notes.txt", "hello")

	desc, fileName, err := buildSendDescriptor([]string{path})
	require.NoError(t, err)

	assert.Equal(t, payload.KindFileSet, desc.Kind)
	assert.Equal(t, "notes.txt", fileName)
	require.Len(t, desc.Parts, 1)
	assert.Equal(t, int64(5), desc.Parts[0].Length)

	rc, err := desc.Parts[0].Open()
	require.NoError(t, err)

	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestBuildSendDescriptorMultipleFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", "aa")
	b := writeTempFile(t, dir, "b.txt", "bb")

	desc, fileName, err := buildSendDescriptor([]string{a, b})
	require.NoError(t, err)

	assert.Equal(t, "files.zip", fileName)
	require.Len(t, desc.Parts, 2)
	assert.Equal(t, "a.txt", desc.Parts[0].Name)
	assert.Equal(t, "b.txt", desc.Parts[1].Name)
}

func TestBuildSendDescriptorDuplicateBasenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o700))

	a := writeTempFile(t, dir, "same.txt", "one")
	b := writeTempFile(t, sub, "same.txt", "two")

	desc, _, err := buildSendDescriptor([]string{a, b})
	require.NoError(t, err)

	require.Len(t, desc.Parts, 2)
	assert.Equal(t, "same.txt", desc.Parts[0].Name)
	assert.Equal(t, "1_same.txt", desc.Parts[1].Name)
}

func TestBuildSendDescriptorMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := buildSendDescriptor([]string{filepath.Join(t.TempDir(), "nope.txt")})
	assert.Error(t, err)
}

func TestBuildSendDescriptorRejectsDirectories(t *testing.T) {
	t.Parallel()

	_, _, err := buildSendDescriptor([]string{t.TempDir()})
	assert.Error(t, err)
}
