package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PubKey is a 32-byte ed25519 public key, the identity trusted for price
// attestations in the registry.
type PubKey [ed25519.PublicKeySize]byte

func (p PubKey) Bytes() []byte { return p[:] }

func (p PubKey) Hex() string { return hex.EncodeToString(p[:]) }

// IsZero reports whether no key has been set.
func (p PubKey) IsZero() bool { return p == PubKey{} }

// MarshalJSON encodes the key as a hex string
func (p PubKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Hex())
}

func (p *PubKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	pk, err := PubKeyFromHex(s)
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

func PubKeyFromHex(s string) (PubKey, error) {
	var pk PubKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("failed to parse public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return pk, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// OracleKey holds the oracle's ed25519 signing key.
// Signatures are detached 64-byte signatures over a 32-byte payload digest.
type OracleKey struct {
	priv ed25519.PrivateKey
	pub  PubKey
}

// GenerateOracleKey creates a new random ed25519 key pair
func GenerateOracleKey() (*OracleKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	var pk PubKey
	copy(pk[:], pub)
	return &OracleKey{priv: priv, pub: pk}, nil
}

// OracleKeyFromSeed derives a key pair from a 32-byte seed (deterministic, for tests)
func OracleKeyFromSeed(seed []byte) *OracleKey {
	priv := ed25519.NewKeyFromSeed(seed)

	var pk PubKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return &OracleKey{priv: priv, pub: pk}
}

// OracleKeyFromHex creates an OracleKey from a hex-encoded 32-byte seed
func OracleKeyFromHex(hexSeed string) (*OracleKey, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return OracleKeyFromSeed(seed), nil
}

// Public returns the verifying key
func (k *OracleKey) Public() PubKey { return k.pub }

// SeedHex returns the private seed as hex string
// WARNING: Keep this secret! Never expose to users or logs
func (k *OracleKey) SeedHex() string {
	return hex.EncodeToString(k.priv.Seed())
}

// Sign produces a detached signature over a 32-byte digest
func (k *OracleKey) Sign(digest []byte) ([]byte, error) {
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(digest))
	}
	return ed25519.Sign(k.priv, digest), nil
}

// SignatureSize is the length of a detached oracle signature
const SignatureSize = ed25519.SignatureSize

// DigestSize is the length of a payload digest
const DigestSize = 32

// Verify reports whether sig is a valid oracle signature by pub over digest.
// This is the capability the settlement engine invokes before any state
// transition that consumes an attestation.
func Verify(pub PubKey, digest, sig []byte) bool {
	if len(sig) != SignatureSize || len(digest) != DigestSize {
		return false
	}
	return ed25519.Verify(pub[:], digest, sig)
}

// PayloadDigest hashes an encoded payload with keccak-256
func PayloadDigest(encoded []byte) [DigestSize]byte {
	var out [DigestSize]byte
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out
}
