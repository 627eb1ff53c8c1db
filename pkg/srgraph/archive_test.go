// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveLogs(t *testing.T) {
	s := newTestSession(t, nil)
	logDir := s.Config().LogDir
	require.NoError(t, os.MkdirAll(filepath.Join(logDir, "train"), 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "train", "events.jsonl"), []byte("{}\n"), 0o666))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "notes.txt"), []byte("hello"), 0o666))

	archive := s.ArchivePath("best")
	assert.Equal(t, filepath.Join(logDir+"_best", "lffn"), archive)
	require.NoError(t, os.MkdirAll(archive, 0o777))
	stale := filepath.Join(archive, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o666))

	var lastCopied, lastTotal int64
	ok := s.ArchiveLogs("best", WithArchiveProgress(func(copied, total int64) {
		lastCopied, lastTotal = copied, total
	}))
	require.True(t, ok)
	assert.Equal(t, int64(3+5), lastTotal)
	assert.Equal(t, lastTotal, lastCopied)

	data, err := os.ReadFile(filepath.Join(archive, "train", "events.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
	data, err = os.ReadFile(filepath.Join(archive, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveLogsFailureIsSwallowed(t *testing.T) {
	s := newTestSession(t, nil)
	archive := s.ArchivePath("best")
	require.NoError(t, os.MkdirAll(archive, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(archive, "stale.txt"), []byte("old"), 0o666))

	// The log directory doesn't exist: the archive fails, but the previous one is still removed.
	assert.False(t, s.ArchiveLogs("best"))
	_, err := os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
}
