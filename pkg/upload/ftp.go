// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"sync"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/jlaffaye/ftp"
)

// ftpAdapter implements Adapter over FTP in passive mode, pooling one
// connection per location+credential pair.
type ftpAdapter struct {
	mu    sync.Mutex
	conns map[string]*ftp.ServerConn
}

func newFTPAdapter() *ftpAdapter {
	return &ftpAdapter{conns: make(map[string]*ftp.ServerConn)}
}

func (a *ftpAdapter) connKey(source *Source) string {
	user := "anonymous"
	if source.Credentials != nil && source.Credentials.Username != "" {
		user = source.Credentials.Username
	}
	return user + "@" + source.Location
}

func (a *ftpAdapter) connect(ctx context.Context, source *Source) (*ftp.ServerConn, string, error) {
	key := a.connKey(source)

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.conns[key]; ok {
		return c, key, nil
	}

	u, err := url.Parse(source.Location)
	if err != nil {
		return nil, key, errors.NewInputError("Invalid FTP location", "Failed to parse FTP URL "+source.Location, "Use ftp://host[:port]/path")
	}
	host := u.Host
	if u.Port() == "" {
		host = u.Host + ":21"
	}

	c, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(defaultConnectTimeout))
	if err != nil {
		return nil, key, errors.NewNetworkError("Cannot connect to FTP server", "Failed to dial "+host, "Check the host is reachable and the port is correct", err)
	}

	user, pass := "anonymous", "anonymous@"
	if source.Credentials != nil && source.Credentials.Username != "" {
		user = source.Credentials.Username
		pass = source.Credentials.Password
	}
	if err := c.Login(user, pass); err != nil {
		c.Quit()
		return nil, key, errors.NewAuthError("Cannot authenticate to FTP server", "FTP login failed for "+user, "Check the username and password", err)
	}

	a.conns[key] = c
	return c, key, nil
}

func (a *ftpAdapter) remotePath(source *Source, p string) string {
	u, err := url.Parse(source.Location)
	if err != nil {
		return p
	}
	return path.Join(u.Path, p)
}

func (a *ftpAdapter) Validate(ctx context.Context, source *Source) (ValidationResult, error) {
	c, _, err := a.connect(ctx, source)
	if err != nil {
		return ValidationResult{OK: false, Errors: []string{err.Error()}}, nil
	}
	u, _ := url.Parse(source.Location)
	if _, err := c.List(u.Path); err != nil {
		return ValidationResult{OK: false, Errors: []string{"cannot list remote path: " + u.Path}}, nil
	}
	return ValidationResult{OK: true}, nil
}

func (a *ftpAdapter) List(ctx context.Context, source *Source) (<-chan string, <-chan error) {
	paths := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		c, _, err := a.connect(ctx, source)
		if err != nil {
			errs <- err
			return
		}
		u, _ := url.Parse(source.Location)
		var walk func(dir string) error
		walk = func(dir string) error {
			entries, err := c.List(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.Name == "." || e.Name == ".." {
					continue
				}
				full := path.Join(dir, e.Name)
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if e.Type == ftp.EntryTypeFolder {
					if source.Recursive {
						if err := walk(full); err != nil {
							return err
						}
					}
					continue
				}
				if matchesExcludePattern(e.Name, source.ExcludePatterns) {
					continue
				}
				select {
				case paths <- full:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}
		if err := walk(u.Path); err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

func (a *ftpAdapter) Stat(ctx context.Context, source *Source, p string) (StatResult, error) {
	c, _, err := a.connect(ctx, source)
	if err != nil {
		return StatResult{}, err
	}
	size, err := c.FileSize(p)
	if err != nil {
		return StatResult{}, errors.NewNetworkError("Cannot stat FTP file", "SIZE failed for "+p, "Check the file exists on the server", err)
	}
	modified, _ := c.GetTime(p)
	return StatResult{Filename: path.Base(p), Size: size, ModifiedAt: &modified}, nil
}

func (a *ftpAdapter) Fetch(ctx context.Context, source *Source, remotePath, localPath string, progress ProgressFunc) error {
	return a.fetch(ctx, source, remotePath, localPath, 0, progress)
}

func (a *ftpAdapter) Resume(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	return a.fetch(ctx, source, remotePath, localPath, offset, progress)
}

func (a *ftpAdapter) fetch(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	c, _, err := a.connect(ctx, source)
	if err != nil {
		return err
	}

	total, _ := c.FileSize(remotePath)

	var resp *ftp.Response
	if offset > 0 {
		resp, err = c.RetrFrom(remotePath, uint64(offset))
	} else {
		resp, err = c.Retr(remotePath)
	}
	if err != nil {
		return errors.NewNetworkError("Cannot fetch FTP file", "RETR failed for "+remotePath, "Check the file exists and credentials allow read access", err)
	}
	defer resp.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	dest, err := os.OpenFile(localPath, flags, 0o600)
	if err != nil {
		return errors.NewPermissionError("Cannot fetch FTP file", "Failed to create destination file", "Check directory permissions", err)
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
		n, readErr := resp.Read(buf)
		if n > 0 {
			if _, err := dest.Write(buf[:n]); err != nil {
				return errors.NewInternalError("Cannot fetch FTP file", "Failed to write destination file", "Check available disk space", err)
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
			return errors.NewNetworkError("Cannot fetch FTP file", "Connection interrupted while reading "+remotePath, "Retry; the transfer can resume from the last byte", readErr)
		}
	}
}

func (a *ftpAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, c := range a.conns {
		c.Quit()
		delete(a.conns, key)
	}
	return nil
}
