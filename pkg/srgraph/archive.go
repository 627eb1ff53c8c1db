// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ArchiveProgressFn is called by ArchiveLogs after each file copied, with the bytes copied so far and the total.
type ArchiveProgressFn func(copied, total int64)

// ArchiveOption configures ArchiveLogs.
type ArchiveOption func(c *archiveConfig)

type archiveConfig struct {
	progress ArchiveProgressFn
}

// WithArchiveProgress sets a callback to report the progress of ArchiveLogs.
func WithArchiveProgress(progressFn ArchiveProgressFn) ArchiveOption {
	return func(c *archiveConfig) {
		c.progress = progressFn
	}
}

// ArchivePath returns the directory where ArchiveLogs copies the logs: "<log_dir>_<archiveName>/<model_name>".
func (s *Session) ArchivePath(archiveName string) string {
	return filepath.Join(s.config.LogDir+"_"+archiveName, s.name)
}

// ArchiveLogs copies the log directory (summaries) to ArchivePath(archiveName), removing first any previous
// contents of the destination.
//
// Errors are logged and otherwise ignored: the archive is a best-effort copy. It returns whether it succeeded.
func (s *Session) ArchiveLogs(archiveName string, options ...ArchiveOption) bool {
	var config archiveConfig
	for _, option := range options {
		option(&config)
	}
	src, dst := s.config.LogDir, s.ArchivePath(archiveName)
	if err := copyTree(src, dst, config.progress); err != nil {
		klog.Errorf("Failed to archive logs %q to %q: %+v", src, dst, err)
		return false
	}
	klog.V(1).Infof("Logs %q archived to %q", src, dst)
	return true
}

// copyTree copies the directory src to dst, replacing dst if it exists.
//
// dst is removed before anything else, so a failed copy never leaves a previous archive behind.
func copyTree(src, dst string, progress ArchiveProgressFn) error {
	if err := os.MkdirAll(filepath.Dir(dst), DirPermMode); err != nil {
		return errors.Wrapf(err, "failed to create archive directory %q", filepath.Dir(dst))
	}
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "failed to remove previous archive %q", dst)
	}

	var total int64
	err := filepath.WalkDir(src, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to list %q", src)
	}

	var copied int64
	return filepath.WalkDir(src, func(srcPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to read %q", srcPath)
		}
		relPath, err := filepath.Rel(src, srcPath)
		if err != nil {
			return errors.Wrapf(err, "failed to find path of %q relative to %q", srcPath, src)
		}
		dstPath := filepath.Join(dst, relPath)
		switch {
		case entry.IsDir():
			if err := os.MkdirAll(dstPath, DirPermMode); err != nil {
				return errors.Wrapf(err, "failed to create directory %q", dstPath)
			}
		case entry.Type().IsRegular():
			n, err := copyFile(srcPath, dstPath)
			if err != nil {
				return err
			}
			copied += n
			if progress != nil {
				progress(copied, total)
			}
		default:
			klog.Warningf("Archive skipping %q: not a regular file", srcPath)
		}
		return nil
	})
}

func copyFile(srcPath, dstPath string) (int64, error) {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open %q", srcPath)
	}
	defer func() { _ = srcFile.Close() }()
	dstFile, err := os.Create(dstPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create %q", dstPath)
	}
	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = dstFile.Close()
		return n, errors.Wrapf(err, "failed to copy %q to %q", srcPath, dstPath)
	}
	if err := dstFile.Close(); err != nil {
		return n, errors.Wrapf(err, "failed to close %q", dstPath)
	}
	return n, nil
}
