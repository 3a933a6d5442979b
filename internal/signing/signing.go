// SPDX-License-Identifier: MPL-2.0

// Package signing produces armored OpenPGP detached signatures for staged
// release files.
package signing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// SignatureExt is appended to a file name to form its signature file.
const SignatureExt = ".asc"

// ErrSigningFailed is the sentinel for every signing failure.
var ErrSigningFailed = errors.New("signing failed")

type (
	// Signer writes a detached signature of r to w.
	Signer interface {
		Sign(r io.Reader, w io.Writer) error
	}

	// SigningError describes a signing failure for a file or key.
	SigningError struct {
		// Subject is the file being signed, or "key" for key material errors.
		Subject string
		Err     error
	}

	// PGPSigner signs with a decrypted OpenPGP entity.
	PGPSigner struct {
		entity *openpgp.Entity
		config *packet.Config
	}
)

// Error implements error.
func (e *SigningError) Error() string {
	return fmt.Sprintf("signing %s: %v", e.Subject, e.Err)
}

// Unwrap returns ErrSigningFailed and the underlying cause.
func (e *SigningError) Unwrap() []error { return []error{ErrSigningFailed, e.Err} }

// NewPGPSigner parses an armored private key and decrypts it with
// passphrase. An empty passphrase is only valid for unencrypted keys.
func NewPGPSigner(armoredKey, passphrase string) (*PGPSigner, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, &SigningError{Subject: "key", Err: fmt.Errorf("parsing armored key: %w", err)}
	}

	var entity *openpgp.Entity
	for _, e := range keyring {
		if e.PrivateKey != nil {
			entity = e
			break
		}
	}
	if entity == nil {
		return nil, &SigningError{Subject: "key", Err: errors.New("key ring contains no private key")}
	}

	if err := decrypt(entity, []byte(passphrase)); err != nil {
		return nil, &SigningError{Subject: "key", Err: err}
	}
	return &PGPSigner{entity: entity}, nil
}

func decrypt(e *openpgp.Entity, passphrase []byte) error {
	if e.PrivateKey.Encrypted {
		if err := e.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("decrypting primary key: %w", err)
		}
	}
	for i := range e.Subkeys {
		sk := e.Subkeys[i].PrivateKey
		if sk == nil || !sk.Encrypted {
			continue
		}
		if err := sk.Decrypt(passphrase); err != nil {
			return fmt.Errorf("decrypting subkey %X: %w", sk.KeyId, err)
		}
	}
	return nil
}

// KeyID returns the primary key id as upper-case hex.
func (s *PGPSigner) KeyID() string {
	return fmt.Sprintf("%016X", s.entity.PrimaryKey.KeyId)
}

// Sign writes an armored detached signature of r to w.
func (s *PGPSigner) Sign(r io.Reader, w io.Writer) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, r, s.config); err != nil {
		return &SigningError{Subject: "stream", Err: err}
	}
	return nil
}

// SignFile signs path and writes the signature to path+".asc", returning the
// signature path.
func SignFile(signer Signer, path string) (_ string, err error) {
	in, err := os.Open(path)
	if err != nil {
		return "", &SigningError{Subject: path, Err: err}
	}
	defer func() { _ = in.Close() }() // read-only handle

	sigPath := path + SignatureExt
	out, err := os.Create(sigPath)
	if err != nil {
		return "", &SigningError{Subject: path, Err: err}
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = &SigningError{Subject: path, Err: closeErr}
		}
	}()

	if err := signer.Sign(in, out); err != nil {
		var sigErr *SigningError
		if errors.As(err, &sigErr) {
			sigErr.Subject = path
			return "", sigErr
		}
		return "", &SigningError{Subject: path, Err: err}
	}
	return sigPath, nil
}
