package detectors

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/25smoking/mcpscan/internal/core"
	"github.com/ProtonMail/go-crypto/openpgp"
)

const (
	pgpKeyHeader       = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
	pgpSignatureHeader = "-----BEGIN PGP SIGNATURE-----"
)

var errMissingSignature = errors.New("signature or public key missing")

// SignatureVerifier decides whether a plugin's code is signed by its key.
type SignatureVerifier interface {
	Verify(p core.PluginSource) error
}

// DefaultVerifier accepts PEM encoded RSA, ECDSA and Ed25519 keys with a base64 or hex
// signature over the SHA-256 digest of the code, and OpenPGP armored keys with a
// detached signature.
type DefaultVerifier struct{}

// Verify returns nil only when the signature checks out. Every failure, including a
// malformed key, means "not verified".
func (DefaultVerifier) Verify(p core.PluginSource) error {
	if strings.TrimSpace(p.Signature) == "" || strings.TrimSpace(p.PublicKey) == "" {
		return errMissingSignature
	}

	if strings.Contains(p.PublicKey, pgpKeyHeader) {
		return verifyOpenPGP(p)
	}

	pub, err := parsePublicKey([]byte(p.PublicKey))
	if err != nil {
		return err
	}

	for _, sig := range decodeSignature(p.Signature) {
		if verifyWithKey(pub, []byte(p.Code), sig) {
			return nil
		}
	}
	return errors.New("signature does not match code")
}

func parsePublicKey(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, errors.New("public key is not PEM encoded")
	}

	switch block.Type {
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		return cert.PublicKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// decodeSignature returns every plausible decoding of s. Hex strings are also valid
// base64, so both are tried.
func decodeSignature(s string) [][]byte {
	s = strings.TrimSpace(s)
	var out [][]byte
	if b, err := hex.DecodeString(s); err == nil && len(b) > 0 {
		out = append(out, b)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil && len(b) > 0 {
			out = append(out, b)
			break
		}
	}
	return out
}

func verifyWithKey(pub crypto.PublicKey, code, sig []byte) bool {
	digest := sha256.Sum256(code)

	switch k := pub.(type) {
	case *rsa.PublicKey:
		if rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], sig) == nil {
			return true
		}
		return rsa.VerifyPSS(k, crypto.SHA256, digest[:], sig, nil) == nil
	case *ecdsa.PublicKey:
		return ecdsa.VerifyASN1(k, digest[:], sig)
	case ed25519.PublicKey:
		// Ed25519 hashes the message itself.
		return ed25519.Verify(k, code, sig)
	default:
		return false
	}
}

func verifyOpenPGP(p core.PluginSource) error {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(p.PublicKey))
	if err != nil {
		return fmt.Errorf("read pgp key: %w", err)
	}
	if len(keyring) == 0 {
		return errors.New("no pgp keys found")
	}

	code := strings.NewReader(p.Code)
	if strings.Contains(p.Signature, pgpSignatureHeader) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, code, strings.NewReader(p.Signature), nil)
		return err
	}

	for _, sig := range decodeSignature(p.Signature) {
		if _, err = openpgp.CheckDetachedSignature(keyring, strings.NewReader(p.Code), bytes.NewReader(sig), nil); err == nil {
			return nil
		}
	}
	if err == nil {
		err = errors.New("undecodable pgp signature")
	}
	return err
}
