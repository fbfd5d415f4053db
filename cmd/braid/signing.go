package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/braid/pkg/object"
	"github.com/odvcencio/braid/pkg/repo"
)

// Signatures are "braid-sshsig-v1:<format>:<base64 public key>:<base64 blob>".
const signaturePrefix = "braid-sshsig-v1"

var errUnsigned = errors.New("commit is not signed")

// newSSHSigner loads an SSH private key and returns a signer for merge
// commits along with the key path it used.
func newSSHSigner(keyPath string) (repo.CommitSigner, string, error) {
	path, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", path, err)
	}
	key, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", path, err)
	}
	pub := base64.StdEncoding.EncodeToString(key.PublicKey().Marshal())

	sign := func(payload []byte) (string, error) {
		sig, err := key.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		return strings.Join([]string{signaturePrefix, sig.Format, pub, base64.StdEncoding.EncodeToString(sig.Blob)}, ":"), nil
	}
	return sign, path, nil
}

// verifyCommit checks c's signature against its signing payload and returns
// the public key that made it.
func verifyCommit(c *object.Commit) (ssh.PublicKey, error) {
	if c.Signature == "" {
		return nil, errUnsigned
	}
	parts := strings.Split(strings.TrimSpace(c.Signature), ":")
	if len(parts) != 4 || parts[0] != signaturePrefix {
		return nil, fmt.Errorf("unrecognized signature format")
	}
	rawPub, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(rawPub)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if err := pub.Verify(object.CommitSigningPayload(c), &ssh.Signature{Format: parts[1], Blob: blob}); err != nil {
		return nil, fmt.Errorf("bad signature: %w", err)
	}
	return pub, nil
}

func resolveSigningKeyPath(path string) (string, error) {
	if path = strings.TrimSpace(path); path != "" {
		return expandUserPath(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
