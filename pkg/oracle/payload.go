package oracle

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
)

// Side is the maker's direction
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the side as "buy"/"sell"
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	side, err := ParseSide(v)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// ParseSide converts "buy"/"sell" to a Side
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

// OrderType distinguishes oracle-priced market orders from maker-priced
// limit orders. Limit iff the caller supplied an explicit price.
type OrderType int8

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the type as "market"/"limit"
func (t OrderType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *OrderType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "market":
		*t = Market
	case "limit":
		*t = Limit
	default:
		return fmt.Errorf("invalid order type %q", v)
	}
	return nil
}

// Payload is one oracle attestation: the economic terms of a single order,
// time-boxed and consumed at most once per (maker, id).
//
// Side and Type ride alongside the signed record but are not part of it;
// the wire layout below is the canonical signing format.
type Payload struct {
	ID   uint64    `json:"id"`
	Side Side      `json:"side"`
	Type OrderType `json:"orderType"`

	TickerMint ledger.AccountID `json:"tickerMint"`
	Amount     uint64           `json:"amount"`

	PaymentMint ledger.AccountID `json:"paymentMint"`
	Price       uint64           `json:"price"`
	Fee         uint64           `json:"fee"`

	ExpiresAt uint64 `json:"expiresAt"`
}

// EncodedSize is the width of the signed wire record:
// id u64 | tickerMint 32 | amount u64 | paymentMint 32 | price u64 | fee u64 | expiresAt u64
const EncodedSize = 8 + 32 + 8 + 32 + 8 + 8 + 8

// Encode serializes the payload to the fixed-width little-endian record the
// oracle signs. Field order and widths are fixed.
func (p *Payload) Encode() []byte {
	buf := make([]byte, EncodedSize)
	off := 0

	binary.LittleEndian.PutUint64(buf[off:], p.ID)
	off += 8
	copy(buf[off:], p.TickerMint[:])
	off += 32
	binary.LittleEndian.PutUint64(buf[off:], p.Amount)
	off += 8
	copy(buf[off:], p.PaymentMint[:])
	off += 32
	binary.LittleEndian.PutUint64(buf[off:], p.Price)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], p.Fee)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], p.ExpiresAt)

	return buf
}

// Decode parses a wire record. Side and Type are not on the wire and are
// left at their zero values.
func Decode(buf []byte) (Payload, error) {
	var p Payload
	if len(buf) != EncodedSize {
		return p, fmt.Errorf("payload must be %d bytes, got %d", EncodedSize, len(buf))
	}

	off := 0
	p.ID = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(p.TickerMint[:], buf[off:])
	off += 32
	p.Amount = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(p.PaymentMint[:], buf[off:])
	off += 32
	p.Price = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	p.Fee = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	p.ExpiresAt = binary.LittleEndian.Uint64(buf[off:])

	return p, nil
}

// Digest is the keccak-256 hash of the encoded record; the oracle's
// detached signature covers this digest.
func (p *Payload) Digest() [crypto.DigestSize]byte {
	return crypto.PayloadDigest(p.Encode())
}
