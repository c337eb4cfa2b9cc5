package oracle

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/util"
)

var testSeed = func() []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = byte(i)
	}
	return s
}()

func newTestService(t *testing.T) (*Service, *util.FixedClock) {
	clock := &util.FixedClock{T: time.Unix(1_700_000_000, 0)}
	key := crypto.OracleKeyFromSeed(testSeed)
	paymentMint := ledger.Derive("mint", []byte("USD"))
	return NewService(key, paymentMint, clock), clock
}

func TestFee(t *testing.T) {
	cases := []struct {
		price, amount, want uint64
	}{
		{5, 10, 5},    // 50 * 10% = 5
		{100, 1, 10},  // 100 * 10% = 10
		{1, 1, 0},     // 0.1 floors to 0
		{3, 3, 0},     // 0.9 floors to 0
		{7, 13, 9},    // 91 * 10% = 9.1 floors to 9
		{0, 100, 0},   // zero price
		{100, 0, 0},   // zero amount
		{33, 33, 108}, // 1089 * 10% = 108.9 floors to 108
	}
	for _, c := range cases {
		if got := Fee(c.price, c.amount); got != c.want {
			t.Errorf("Fee(%d, %d) = %d, want %d", c.price, c.amount, got, c.want)
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	p := Payload{
		ID:          0x0102030405060708,
		Side:        Sell,  // not on the wire
		Type:        Limit, // not on the wire
		TickerMint:  ledger.Derive("mint", []byte("XYZ")),
		Amount:      10,
		PaymentMint: ledger.Derive("mint", []byte("USD")),
		Price:       5,
		Fee:         5,
		ExpiresAt:   1_700_000_060,
	}

	buf := p.Encode()
	if len(buf) != EncodedSize {
		t.Fatalf("encoded %d bytes, want %d", len(buf), EncodedSize)
	}

	if got := binary.LittleEndian.Uint64(buf[0:8]); got != p.ID {
		t.Errorf("id = %#x, want %#x", got, p.ID)
	}
	var tm ledger.AccountID
	copy(tm[:], buf[8:40])
	if tm != p.TickerMint {
		t.Error("ticker mint not at offset 8")
	}
	if got := binary.LittleEndian.Uint64(buf[40:48]); got != p.Amount {
		t.Errorf("amount = %d, want %d", got, p.Amount)
	}
	var pm ledger.AccountID
	copy(pm[:], buf[48:80])
	if pm != p.PaymentMint {
		t.Error("payment mint not at offset 48")
	}
	if got := binary.LittleEndian.Uint64(buf[80:88]); got != p.Price {
		t.Errorf("price = %d, want %d", got, p.Price)
	}
	if got := binary.LittleEndian.Uint64(buf[88:96]); got != p.Fee {
		t.Errorf("fee = %d, want %d", got, p.Fee)
	}
	if got := binary.LittleEndian.Uint64(buf[96:104]); got != p.ExpiresAt {
		t.Errorf("expiresAt = %d, want %d", got, p.ExpiresAt)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	p := Payload{
		ID:          42,
		TickerMint:  ledger.Derive("mint", []byte("XYZ")),
		Amount:      10,
		PaymentMint: ledger.Derive("mint", []byte("USD")),
		Price:       5,
		Fee:         5,
		ExpiresAt:   1_700_000_060,
	}

	got, err := Decode(p.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != p {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}

	if _, err := Decode(make([]byte, EncodedSize-1)); err == nil {
		t.Error("expected error decoding short buffer")
	}
}

// Side and type ride alongside the signed record but are not part of it, so
// payloads differing only in side or type share a digest.
func TestDigestExcludesSideAndType(t *testing.T) {
	p := Payload{ID: 1, Amount: 10, Price: 5, Fee: 5, ExpiresAt: 60}
	q := p
	q.Side = Sell
	q.Type = Limit

	if p.Digest() != q.Digest() {
		t.Error("side/type changed the digest")
	}

	r := p
	r.Price = 6
	if p.Digest() == r.Digest() {
		t.Error("price change did not change the digest")
	}
}

func TestAttestMarket(t *testing.T) {
	svc, clock := newTestService(t)
	now := uint64(clock.Now().Unix())

	for i := 0; i < 200; i++ {
		att, err := svc.AttestMarket("XYZ", Buy, 10)
		if err != nil {
			t.Fatalf("attest: %v", err)
		}
		p := att.Payload

		if p.Price < 1 || p.Price > MaxMarketPrice {
			t.Fatalf("market price %d outside [1, %d]", p.Price, MaxMarketPrice)
		}
		if p.Type != Market {
			t.Errorf("type = %s, want market", p.Type)
		}
		if p.Fee != Fee(p.Price, p.Amount) {
			t.Errorf("fee = %d, want %d", p.Fee, Fee(p.Price, p.Amount))
		}
		if p.ID != now {
			t.Errorf("id = %d, want %d", p.ID, now)
		}
		if p.ExpiresAt != now+TTL {
			t.Errorf("expiresAt = %d, want %d", p.ExpiresAt, now+TTL)
		}
	}
}

func TestAttestLimit(t *testing.T) {
	svc, _ := newTestService(t)

	att, err := svc.AttestLimit("XYZ", Sell, 10, 5)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	p := att.Payload

	if p.Price != 5 {
		t.Errorf("price = %d, want 5", p.Price)
	}
	if p.Type != Limit {
		t.Errorf("type = %s, want limit", p.Type)
	}
	if p.Side != Sell {
		t.Errorf("side = %s, want sell", p.Side)
	}
	if p.Fee != 5 {
		t.Errorf("fee = %d, want 5", p.Fee)
	}
	if p.TickerMint != ledger.Derive("mint", []byte("XYZ")) {
		t.Error("ticker mint not derived from symbol")
	}
}

func TestAttestationVerifies(t *testing.T) {
	svc, _ := newTestService(t)

	att, err := svc.AttestLimit("XYZ", Buy, 10, 5)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}

	if att.Digest != att.Payload.Digest() {
		t.Error("digest does not bind the payload")
	}
	if !crypto.Verify(svc.Public(), att.Digest[:], att.Sig) {
		t.Error("attestation signature does not verify")
	}

	other, _ := crypto.GenerateOracleKey()
	if crypto.Verify(other.Public(), att.Digest[:], att.Sig) {
		t.Error("attestation verified under an unrelated key")
	}
}

func TestParseSide(t *testing.T) {
	if s, err := ParseSide("buy"); err != nil || s != Buy {
		t.Errorf("ParseSide(buy) = %v, %v", s, err)
	}
	if s, err := ParseSide("sell"); err != nil || s != Sell {
		t.Errorf("ParseSide(sell) = %v, %v", s, err)
	}
	if _, err := ParseSide("hold"); err == nil {
		t.Error("expected error for unknown side")
	}
}

func TestProofRef(t *testing.T) {
	a := NewProofRef([]byte("report"))
	b := NewProofRef([]byte("report"))
	if a != b {
		t.Error("same report produced different refs")
	}

	got, err := ProofRefFromHex(a.Hex())
	if err != nil {
		t.Fatalf("from hex: %v", err)
	}
	if got != a {
		t.Error("hex round trip mismatch")
	}
}
