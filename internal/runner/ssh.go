// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/opsforge/quartermaster/internal/db"
)

// SSHRunner executes provisioning commands on a remote host over SSH.
type SSHRunner struct {
	client *ssh.Client
	sftp   *sftp.Client
	target string
}

// hostKeyCallback verifies the remote host key against the journal's pinned
// known_hosts entries. Unknown hosts must be trusted explicitly first.
func hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	// The hostname passed to the callback can include the port; strip it so
	// the journal lookup uses the bare host.
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	presentedKey := string(ssh.MarshalAuthorizedKey(key))

	knownKey, err := db.GetKnownHostKey(host)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("unknown host key for %s. run 'quartermaster trust-host' to add it", host)
	}
	if err != nil {
		return fmt.Errorf("failed to query known_hosts journal: %w", err)
	}

	if knownKey != presentedKey {
		return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
	}

	return nil
}

// NewSSHRunner connects to user@host. When privateKey is non-empty it is
// tried first; on an authentication failure the local SSH agent is used as a
// fallback.
func NewSSHRunner(host, user, privateKey string) (*SSHRunner, error) {
	addr := CanonicalizeHostPort(host)

	var finalErr error

	// --- Attempt 1: the provided private key ---
	if privateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(privateKey))
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}

		config := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}

		client, err := ssh.Dial("tcp", addr, config)
		if err == nil {
			sftpClient, sftpErr := sftp.NewClient(client)
			if sftpErr != nil {
				_ = client.Close()
				return nil, fmt.Errorf("failed to create sftp client: %w", sftpErr)
			}
			return &SSHRunner{client: client, sftp: sftpClient, target: user + "@" + host}, nil
		}

		// Anything but an auth failure is fatal; auth failures fall through
		// to the agent.
		if !strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("connection with provisioning key failed: %w", err)
		}
		finalErr = err
	}

	// --- Attempt 2: the SSH agent ---
	agentClient := getSSHAgent()
	if agentClient == nil {
		if finalErr != nil {
			return nil, fmt.Errorf("key authentication failed, and no SSH agent available for fallback: %w", finalErr)
		}
		return nil, fmt.Errorf("no authentication method available (no key provided and no ssh agent found)")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	return &SSHRunner{client: client, sftp: sftpClient, target: user + "@" + host}, nil
}

// Run executes the command in a fresh SSH session. Exit status is carried in
// Result; transport failures are returned as errors.
func (r *SSHRunner) Run(ctx context.Context, command string) (Result, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer func() { _ = session.Close() }()

	type output struct {
		data []byte
		err  error
	}
	done := make(chan output, 1)
	go func() {
		data, err := session.CombinedOutput(command)
		done <- output{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		// Best effort: tear the session down so the remote command dies.
		_ = session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case out := <-done:
		res := Result{Output: string(out.data)}
		if out.err != nil {
			var exitErr *ssh.ExitError
			if ok := asExitError(out.err, &exitErr); ok {
				res.ExitCode = exitErr.ExitStatus()
				return res, nil
			}
			return res, fmt.Errorf("remote command failed: %w", out.err)
		}
		return res, nil
	}
}

// asExitError unwraps an *ssh.ExitError from err.
func asExitError(err error, target **ssh.ExitError) bool {
	if e, ok := err.(*ssh.ExitError); ok {
		*target = e
		return true
	}
	return false
}

// Upload copies a local file to the remote host via SFTP, creating parent
// directories as needed.
func (r *SSHRunner) Upload(localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", localPath, err)
	}

	if dir := path.Dir(remotePath); dir != "" && dir != "." {
		_ = r.sftp.MkdirAll(dir)
	}

	f, err := r.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = r.sftp.Remove(remotePath)
		return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}
	return f.Close()
}

// Target returns user@host for journaling.
func (r *SSHRunner) Target() string { return r.target }

// Close closes the underlying SSH and SFTP clients.
func (r *SSHRunner) Close() error {
	if r.sftp != nil {
		_ = r.sftp.Close()
	}
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// CanonicalizeHostPort appends the default SSH port when host has none.
func CanonicalizeHostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, "22")
	}
	return host
}

// GetRemoteHostKey connects to a host just to retrieve its public key, for
// the trust-host flow.
func GetRemoteHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		// No authentication needed; the handshake is aborted once the host
		// key has been seen.
		User: "quartermaster-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			return fmt.Errorf("quartermaster: successfully retrieved host key")
		},
		Timeout: 5 * time.Second,
	}

	addr := CanonicalizeHostPort(host)

	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), "quartermaster: successfully retrieved host key") {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}

	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}
