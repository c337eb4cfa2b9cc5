package oracle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ProofRef is an opaque content address of an off-ledger execution report.
// The engine records and emits it verbatim and never interprets it.
type ProofRef [sha256.Size]byte

// NewProofRef content-addresses an execution report
func NewProofRef(report []byte) ProofRef {
	return sha256.Sum256(report)
}

func (r ProofRef) Hex() string { return hex.EncodeToString(r[:]) }

// MarshalJSON encodes the ref as a hex string
func (r ProofRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Hex())
}

func (r *ProofRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := ProofRefFromHex(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

func ProofRefFromHex(s string) (ProofRef, error) {
	var ref ProofRef
	b, err := hex.DecodeString(s)
	if err != nil {
		return ref, fmt.Errorf("failed to parse proof ref: %w", err)
	}
	if len(b) != len(ref) {
		return ref, fmt.Errorf("proof ref must be %d bytes, got %d", len(ref), len(b))
	}
	copy(ref[:], b)
	return ref, nil
}
