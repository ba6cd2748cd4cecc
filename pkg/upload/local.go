// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/behemotion/docbro/internal/errors"
)

const copyChunkSize = 64 * 1024

// localAdapter implements Adapter for filesystem sources.
type localAdapter struct{}

func newLocalAdapter() *localAdapter { return &localAdapter{} }

func (a *localAdapter) Validate(ctx context.Context, source *Source) (ValidationResult, error) {
	info, err := os.Stat(source.Location)
	if err != nil {
		return ValidationResult{OK: false, Errors: []string{"path does not exist or is not readable: " + source.Location}}, nil
	}
	if !info.IsDir() {
		if f, err := os.Open(source.Location); err == nil {
			f.Close()
		} else {
			return ValidationResult{OK: false, Errors: []string{"path is not readable: " + source.Location}}, nil
		}
	}
	return ValidationResult{OK: true}, nil
}

func (a *localAdapter) List(ctx context.Context, source *Source) (<-chan string, <-chan error) {
	paths := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		walkFn := func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil // vanished entry or broken symlink; skipped silently
				}
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if info.IsDir() {
				if path != source.Location && !source.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if matchesExcludePattern(filepath.Base(path), source.ExcludePatterns) {
				return nil
			}
			select {
			case paths <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}

		var err error
		if source.FollowSymlinks {
			err = filepath.Walk(source.Location, walkFn)
		} else {
			err = filepath.Walk(source.Location, func(path string, info os.FileInfo, err error) error {
				if err == nil && info.Mode()&os.ModeSymlink != 0 {
					return nil
				}
				return walkFn(path, info, err)
			})
		}
		if err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

func (a *localAdapter) Stat(ctx context.Context, source *Source, path string) (StatResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return StatResult{}, errors.NewInputError("Cannot stat file", "Failed to stat "+path, "Check the path exists and is readable")
	}
	modified := info.ModTime()
	return StatResult{Filename: filepath.Base(path), Size: info.Size(), IsDir: info.IsDir(), ModifiedAt: &modified}, nil
}

// Fetch streams the source file to localPath in 64 KiB chunks, reporting
// per-chunk progress.
func (a *localAdapter) Fetch(ctx context.Context, source *Source, remotePath, localPath string, progress ProgressFunc) error {
	return a.fetchFrom(ctx, remotePath, localPath, 0, progress)
}

func (a *localAdapter) Resume(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	return a.fetchFrom(ctx, remotePath, localPath, offset, progress)
}

func (a *localAdapter) fetchFrom(ctx context.Context, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	src, err := os.Open(remotePath)
	if err != nil {
		return errors.NewInputError("Cannot fetch file", "Failed to open "+remotePath, "Check the path exists and is readable")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return errors.NewInternalError("Cannot fetch file", "Failed to stat source file", "Retry the operation", err)
	}
	total := info.Size()

	if offset > 0 {
		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			return errors.NewInternalError("Cannot resume fetch", "Failed to seek source file", "Retry the operation from the beginning", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	dest, err := os.OpenFile(localPath, flags, 0o600)
	if err != nil {
		return errors.NewPermissionError("Cannot fetch file", "Failed to create destination file", "Check directory permissions", err)
	}
	defer dest.Close()

	buf := make([]byte, copyChunkSize)
	done := offset
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dest.Write(buf[:n]); err != nil {
				return errors.NewInternalError("Cannot fetch file", "Failed to write destination file", "Check available disk space", err)
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errors.NewInternalError("Cannot fetch file", "Failed to read source file", "Retry the operation", readErr)
		}
	}
}

func (a *localAdapter) Close() error { return nil }
