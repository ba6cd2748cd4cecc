// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/hirochachacha/go-smb2"
)

// smbAdapter implements Adapter over SMB2/3. Sources are addressed as
// smb://host/share/path; go-smb2 receives the share name to mount and
// share-relative paths, and no UNC path is built.
type smbAdapter struct {
	mu      sync.Mutex
	clients map[string]*smbConn
}

type smbConn struct {
	tcp     net.Conn
	session *smb2.Session
	share   *smb2.Share
	name    string
}

func newSMBAdapter() *smbAdapter {
	return &smbAdapter{clients: make(map[string]*smbConn)}
}

// splitSMBURL parses smb://host[:port]/share/path into its parts.
func splitSMBURL(location string) (host, share, rel string, err error) {
	u, parseErr := url.Parse(location)
	if parseErr != nil {
		return "", "", "", errors.NewInputError("Invalid SMB location", "Failed to parse SMB URL "+location, "Use smb://host/share/path")
	}
	host = u.Host
	trimmed := strings.TrimPrefix(u.Path, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", "", errors.NewInputError("Invalid SMB location", "Missing share name in "+location, "Use smb://host/share/path")
	}
	share = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return host, share, rel, nil
}

func (a *smbAdapter) connKey(source *Source) string {
	user := ""
	if source.Credentials != nil {
		user = source.Credentials.Username
	}
	return user + "@" + source.Location
}

func (a *smbAdapter) connect(ctx context.Context, source *Source) (*smbConn, string, error) {
	key := a.connKey(source)

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[key]; ok {
		return c, key, nil
	}

	host, share, _, err := splitSMBURL(source.Location)
	if err != nil {
		return nil, key, err
	}
	if source.Credentials == nil || source.Credentials.Username == "" || source.Credentials.Password == "" {
		return nil, key, errors.NewAuthError("Missing SMB credentials", "SMB requires a username and password", "Provide credentials for this source", nil)
	}

	addr := host
	if !strings.Contains(addr, ":") {
		addr += ":445"
	}
	tcpConn, err := net.DialTimeout("tcp", addr, defaultConnectTimeout)
	if err != nil {
		return nil, key, errors.NewNetworkError("Cannot connect to SMB server", "Failed to dial "+addr, "Check the host is reachable and the port is correct", err)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     source.Credentials.Username,
			Password: source.Credentials.Password,
			Domain:   source.Credentials.Domain,
		},
	}
	session, err := d.DialContext(ctx, tcpConn)
	if err != nil {
		tcpConn.Close()
		return nil, key, errors.NewAuthError("Cannot authenticate to SMB server", "SMB session setup failed for "+source.Credentials.Username, "Check the username, password, and domain", err)
	}

	fs, err := session.Mount(share)
	if err != nil {
		session.Logoff()
		tcpConn.Close()
		return nil, key, errors.NewNetworkError("Cannot mount SMB share", "Failed to mount share "+share, "Check the share name exists on the server", err)
	}

	conn := &smbConn{tcp: tcpConn, session: session, share: fs, name: share}
	a.clients[key] = conn
	return conn, key, nil
}

func (a *smbAdapter) Validate(ctx context.Context, source *Source) (ValidationResult, error) {
	c, _, err := a.connect(ctx, source)
	if err != nil {
		return ValidationResult{OK: false, Errors: []string{err.Error()}}, nil
	}
	_, _, rel, _ := splitSMBURL(source.Location)
	if rel == "" {
		rel = "."
	}
	if _, err := c.share.Stat(rel); err != nil {
		return ValidationResult{OK: false, Errors: []string{"cannot stat remote path: " + rel}}, nil
	}
	return ValidationResult{OK: true}, nil
}

func (a *smbAdapter) List(ctx context.Context, source *Source) (<-chan string, <-chan error) {
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
		_, _, rel, _ := splitSMBURL(source.Location)
		if rel == "" {
			rel = "."
		}

		var walk func(dir string) error
		walk = func(dir string) error {
			entries, err := c.share.ReadDir(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.Name() == "." || e.Name() == ".." {
					continue
				}
				full := path.Join(dir, e.Name())
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if e.IsDir() {
					if source.Recursive {
						if err := walk(full); err != nil {
							return err
						}
					}
					continue
				}
				if matchesExcludePattern(e.Name(), source.ExcludePatterns) {
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
		if err := walk(rel); err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

func (a *smbAdapter) Stat(ctx context.Context, source *Source, p string) (StatResult, error) {
	c, _, err := a.connect(ctx, source)
	if err != nil {
		return StatResult{}, err
	}
	info, err := c.share.Stat(p)
	if err != nil {
		return StatResult{}, errors.NewNetworkError("Cannot stat SMB file", "Stat failed for "+p, "Check the file exists on the share", err)
	}
	modified := info.ModTime()
	return StatResult{Filename: path.Base(p), Size: info.Size(), IsDir: info.IsDir(), ModifiedAt: &modified}, nil
}

func (a *smbAdapter) Fetch(ctx context.Context, source *Source, remotePath, localPath string, progress ProgressFunc) error {
	return a.fetch(ctx, source, remotePath, localPath, 0, progress)
}

func (a *smbAdapter) Resume(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	return a.fetch(ctx, source, remotePath, localPath, offset, progress)
}

// fetch reads the remote file with offset-based reads, the way go-smb2
// exposes random access instead of a streaming reader with Seek.
func (a *smbAdapter) fetch(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	c, _, err := a.connect(ctx, source)
	if err != nil {
		return err
	}

	src, err := c.share.Open(remotePath)
	if err != nil {
		return errors.NewNetworkError("Cannot fetch SMB file", "Failed to open "+remotePath, "Check the file exists and credentials allow read access", err)
	}
	defer src.Close()

	info, err := src.Stat()
	var total int64
	if err == nil {
		total = info.Size()
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	dest, err := os.OpenFile(localPath, flags, 0o600)
	if err != nil {
		return errors.NewPermissionError("Cannot fetch SMB file", "Failed to create destination file", "Check directory permissions", err)
	}
	defer dest.Close()

	buf := make([]byte, copyChunkSize)
	pos := offset
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, readErr := src.ReadAt(buf, pos)
		if n > 0 {
			if _, err := dest.Write(buf[:n]); err != nil {
				return errors.NewInternalError("Cannot fetch SMB file", "Failed to write destination file", "Check available disk space", err)
			}
			pos += int64(n)
			if progress != nil {
				progress(pos, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errors.NewNetworkError("Cannot fetch SMB file", "Connection interrupted while reading "+remotePath, "Retry; the transfer can resume from the last byte", readErr)
		}
	}
}

func (a *smbAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, c := range a.clients {
		c.share.Umount()
		c.session.Logoff()
		c.tcp.Close()
		delete(a.clients, key)
	}
	return nil
}
