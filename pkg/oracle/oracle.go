// Package oracle builds and signs order attestations off-ledger. The signer
// is stateless: every call prices, serializes, hashes and signs one payload
// and holds nothing back.
package oracle

import (
	"fmt"
	"math/rand"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/util"
)

const (
	// TTL is the attestation validity window in seconds
	TTL = 60

	// FeeRateBps is the settlement fee rate: 10%
	FeeRateBps = 1000

	// Market orders are priced uniformly in [1, MaxMarketPrice]
	MaxMarketPrice = 100
)

// Fee computes floor(price * amount * 10%) in integer math
func Fee(price, amount uint64) uint64 {
	return price * amount * FeeRateBps / 10_000
}

// Attestation is a signed payload ready for submission to the engine
type Attestation struct {
	Payload Payload
	Digest  [crypto.DigestSize]byte
	Sig     []byte
}

// Service signs attestations with the oracle key. PaymentMint is the quote
// token every attested order settles in.
type Service struct {
	key         *crypto.OracleKey
	paymentMint ledger.AccountID
	clock       util.Clock
	rng         *rand.Rand
}

// NewService creates an attestation service
func NewService(key *crypto.OracleKey, paymentMint ledger.AccountID, clock util.Clock) *Service {
	return &Service{
		key:         key,
		paymentMint: paymentMint,
		clock:       clock,
		rng:         rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Public returns the service's verifying key
func (s *Service) Public() crypto.PubKey { return s.key.Public() }

// AttestMarket prices the order itself: uniform random price in [1, 100]
func (s *Service) AttestMarket(symbol string, side Side, amount uint64) (*Attestation, error) {
	price := uint64(s.rng.Intn(MaxMarketPrice)) + 1
	return s.attest(symbol, side, amount, price, Market)
}

// AttestLimit attests the caller's explicit price
func (s *Service) AttestLimit(symbol string, side Side, amount, price uint64) (*Attestation, error) {
	return s.attest(symbol, side, amount, price, Limit)
}

func (s *Service) attest(symbol string, side Side, amount, price uint64, typ OrderType) (*Attestation, error) {
	now := uint64(s.clock.Now().Unix())

	p := Payload{
		ID:   now,
		Side: side,
		Type: typ,

		TickerMint: ledger.Derive("mint", []byte(symbol)),
		Amount:     amount,

		PaymentMint: s.paymentMint,
		Price:       price,
		Fee:         Fee(price, amount),

		ExpiresAt: now + TTL,
	}

	digest := p.Digest()
	sig, err := s.key.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return &Attestation{Payload: p, Digest: digest, Sig: sig}, nil
}
