package crypto

import (
	"bytes"
	"testing"
)

func testDigest(b byte) []byte {
	d := make([]byte, DigestSize)
	for i := range d {
		d[i] = b
	}
	return d
}

func TestSignAndVerify(t *testing.T) {
	key, err := GenerateOracleKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	digest := testDigest(0x42)
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Fatalf("signature is %d bytes, want %d", len(sig), SignatureSize)
	}

	if !Verify(key.Public(), digest, sig) {
		t.Error("valid signature rejected")
	}
}

func TestVerifyWrongKey(t *testing.T) {
	key, _ := GenerateOracleKey()
	other, _ := GenerateOracleKey()

	digest := testDigest(0x42)
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if Verify(other.Public(), digest, sig) {
		t.Error("signature verified under the wrong key")
	}
}

func TestVerifyWrongDigest(t *testing.T) {
	key, _ := GenerateOracleKey()

	sig, err := key.Sign(testDigest(0x42))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if Verify(key.Public(), testDigest(0x43), sig) {
		t.Error("signature verified over a different digest")
	}
}

func TestVerifyMalformedInputs(t *testing.T) {
	key, _ := GenerateOracleKey()
	digest := testDigest(0x42)
	sig, _ := key.Sign(digest)

	if Verify(key.Public(), digest, sig[:SignatureSize-1]) {
		t.Error("truncated signature accepted")
	}
	if Verify(key.Public(), digest[:DigestSize-1], sig) {
		t.Error("truncated digest accepted")
	}
	if Verify(key.Public(), digest, nil) {
		t.Error("nil signature accepted")
	}
}

func TestSignRejectsBadDigestSize(t *testing.T) {
	key, _ := GenerateOracleKey()
	if _, err := key.Sign([]byte("short")); err == nil {
		t.Error("expected error signing a non-digest input")
	}
}

func TestKeyFromSeedDeterministic(t *testing.T) {
	seed := testDigest(0x07)
	a := OracleKeyFromSeed(seed)
	b := OracleKeyFromSeed(seed)

	if a.Public() != b.Public() {
		t.Error("same seed produced different public keys")
	}

	digest := testDigest(0x42)
	sigA, _ := a.Sign(digest)
	sigB, _ := b.Sign(digest)
	if !bytes.Equal(sigA, sigB) {
		t.Error("same seed produced different signatures")
	}
}

func TestKeyHexRoundTrip(t *testing.T) {
	key, _ := GenerateOracleKey()

	restored, err := OracleKeyFromHex(key.SeedHex())
	if err != nil {
		t.Fatalf("restore from hex: %v", err)
	}
	if restored.Public() != key.Public() {
		t.Error("hex round trip changed the key")
	}

	pub, err := PubKeyFromHex(key.Public().Hex())
	if err != nil {
		t.Fatalf("pubkey from hex: %v", err)
	}
	if pub != key.Public() {
		t.Error("pubkey hex round trip mismatch")
	}
}

func TestPubKeyIsZero(t *testing.T) {
	var zero PubKey
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}

	key, _ := GenerateOracleKey()
	if key.Public().IsZero() {
		t.Error("generated key should not be zero")
	}
}

func TestPayloadDigestStable(t *testing.T) {
	a := PayloadDigest([]byte("record"))
	b := PayloadDigest([]byte("record"))
	if a != b {
		t.Error("same input hashed differently")
	}
	if a == PayloadDigest([]byte("recore")) {
		t.Error("different inputs collided")
	}
}
