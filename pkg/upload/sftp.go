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
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpAdapter implements Adapter over SSH/SFTP, pooling one client per
// location+credential-identity pair.
type sftpAdapter struct {
	mu      sync.Mutex
	clients map[string]*sftpConn
}

type sftpConn struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func newSFTPAdapter() *sftpAdapter {
	return &sftpAdapter{clients: make(map[string]*sftpConn)}
}

func (a *sftpAdapter) connKey(source *Source) string {
	user := ""
	if source.Credentials != nil {
		user = source.Credentials.Username
	}
	return user + "@" + source.Location
}

// authMethod picks password, inline key, or key-file-path, in that order
// of precedence.
func authMethod(creds *Credentials) (ssh.AuthMethod, error) {
	if creds == nil {
		return nil, errors.NewAuthError("Missing SFTP credentials", "No credentials supplied for SFTP source", "Provide a username and password or private key", nil)
	}
	if creds.Password != "" {
		return ssh.Password(creds.Password), nil
	}
	if creds.Key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(creds.Key))
		if err == nil {
			return ssh.PublicKeys(signer), nil
		}
		keyBytes, readErr := os.ReadFile(creds.Key)
		if readErr != nil {
			return nil, errors.NewAuthError("Invalid SFTP key", "Key is neither a valid inline private key nor a readable file path", "Check the key value", readErr)
		}
		signer, err = ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, errors.NewAuthError("Invalid SFTP key", "Failed to parse private key file "+creds.Key, "Check the key file is an unencrypted PEM private key", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return nil, errors.NewAuthError("Missing SFTP credentials", "Neither password nor key supplied", "Provide a password or private key", nil)
}

func (a *sftpAdapter) connect(ctx context.Context, source *Source) (*sftpConn, error) {
	key := a.connKey(source)

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[key]; ok {
		return c, nil
	}

	u, err := url.Parse(source.Location)
	if err != nil {
		return nil, errors.NewInputError("Invalid SFTP location", "Failed to parse SFTP URL "+source.Location, "Use sftp://host[:port]/path")
	}
	host := u.Host
	if u.Port() == "" {
		host += ":22"
	}

	auth, err := authMethod(source.Credentials)
	if err != nil {
		return nil, err
	}
	user := ""
	if source.Credentials != nil {
		user = source.Credentials.Username
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         defaultConnectTimeout,
	}

	sshClient, err := ssh.Dial("tcp", host, config)
	if err != nil {
		return nil, errors.NewNetworkError("Cannot connect to SFTP server", "Failed to dial "+host, "Check the host is reachable and the port is correct", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, errors.NewNetworkError("Cannot start SFTP session", "Failed to open SFTP subsystem on "+host, "Check the server has SFTP enabled", err)
	}

	conn := &sftpConn{ssh: sshClient, sftp: sftpClient}
	a.clients[key] = conn
	return conn, nil
}

func (a *sftpAdapter) remotePath(source *Source, p string) string {
	u, err := url.Parse(source.Location)
	if err != nil {
		return p
	}
	return path.Join(u.Path, p)
}

func (a *sftpAdapter) Validate(ctx context.Context, source *Source) (ValidationResult, error) {
	c, err := a.connect(ctx, source)
	if err != nil {
		return ValidationResult{OK: false, Errors: []string{err.Error()}}, nil
	}
	u, _ := url.Parse(source.Location)
	if _, err := c.sftp.Stat(u.Path); err != nil {
		return ValidationResult{OK: false, Errors: []string{"cannot stat remote path: " + u.Path}}, nil
	}
	return ValidationResult{OK: true}, nil
}

func (a *sftpAdapter) List(ctx context.Context, source *Source) (<-chan string, <-chan error) {
	paths := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		c, err := a.connect(ctx, source)
		if err != nil {
			errs <- err
			return
		}
		u, _ := url.Parse(source.Location)

		var walk func(dir string) error
		walk = func(dir string) error {
			entries, err := c.sftp.ReadDir(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
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
		if err := walk(u.Path); err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

func (a *sftpAdapter) Stat(ctx context.Context, source *Source, p string) (StatResult, error) {
	c, err := a.connect(ctx, source)
	if err != nil {
		return StatResult{}, err
	}
	info, err := c.sftp.Stat(p)
	if err != nil {
		return StatResult{}, errors.NewNetworkError("Cannot stat SFTP file", "Stat failed for "+p, "Check the file exists on the server", err)
	}
	modified := info.ModTime()
	return StatResult{Filename: path.Base(p), Size: info.Size(), IsDir: info.IsDir(), ModifiedAt: &modified}, nil
}

func (a *sftpAdapter) Fetch(ctx context.Context, source *Source, remotePath, localPath string, progress ProgressFunc) error {
	return a.fetch(ctx, source, remotePath, localPath, 0, progress)
}

func (a *sftpAdapter) Resume(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	return a.fetch(ctx, source, remotePath, localPath, offset, progress)
}

func (a *sftpAdapter) fetch(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error {
	c, err := a.connect(ctx, source)
	if err != nil {
		return err
	}

	src, err := c.sftp.Open(remotePath)
	if err != nil {
		return errors.NewNetworkError("Cannot fetch SFTP file", "Failed to open "+remotePath, "Check the file exists and credentials allow read access", err)
	}
	defer src.Close()

	info, err := src.Stat()
	var total int64
	if err == nil {
		total = info.Size()
	}

	if offset > 0 {
		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			return errors.NewInternalError("Cannot resume SFTP fetch", "Failed to seek remote file", "Retry the operation from the beginning", err)
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
		return errors.NewPermissionError("Cannot fetch SFTP file", "Failed to create destination file", "Check directory permissions", err)
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
				return errors.NewInternalError("Cannot fetch SFTP file", "Failed to write destination file", "Check available disk space", err)
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
			return errors.NewNetworkError("Cannot fetch SFTP file", "Connection interrupted while reading "+remotePath, "Retry; the transfer can resume from the last byte", readErr)
		}
	}
}

func (a *sftpAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, c := range a.clients {
		c.sftp.Close()
		c.ssh.Close()
		delete(a.clients, key)
	}
	return nil
}
