package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tickerlabs/ticksettle/pkg/api"
	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/oracle"
	"github.com/tickerlabs/ticksettle/pkg/util"
)

func main() {
	var (
		symbol  = flag.String("symbol", "XYZ", "ticker symbol to attest")
		payment = flag.String("payment", "USD", "payment mint symbol")
		side    = flag.String("side", "buy", "order side: buy | sell")
		amount  = flag.Uint64("amount", 10, "order amount in ticker units")
		price   = flag.Uint64("price", 0, "limit price; 0 lets the oracle pick a market price")
		maker   = flag.String("maker", "", "maker account id (hex) to embed in the request")
	)
	flag.Parse()

	// Step 1: Generate or load the oracle key (ORACLE_SEED = 32-byte seed, hex)
	var key *crypto.OracleKey
	var err error
	if seed := os.Getenv("ORACLE_SEED"); seed != "" {
		key, err = crypto.OracleKeyFromHex(seed)
		if err != nil {
			fmt.Printf("Error loading ORACLE_SEED: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Loaded oracle key from ORACLE_SEED")
	} else {
		fmt.Println("Generating new oracle keypair...")
		key, err = crypto.GenerateOracleKey()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seed: %s (KEEP SECRET!)\n", key.SeedHex())
	}
	fmt.Printf("Public Key: %s\n\n", key.Public().Hex())

	// Step 2: Build and sign the attestation
	orderSide, err := oracle.ParseSide(*side)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	paymentMint := ledger.Derive("mint", []byte(*payment))
	svc := oracle.NewService(key, paymentMint, util.RealClock{})

	var att *oracle.Attestation
	if *price == 0 {
		att, err = svc.AttestMarket(*symbol, orderSide, *amount)
	} else {
		att, err = svc.AttestLimit(*symbol, orderSide, *amount, *price)
	}
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	p := att.Payload
	fmt.Println("Attestation:")
	fmt.Printf("  ID: %d\n", p.ID)
	fmt.Printf("  Side: %s\n", p.Side)
	fmt.Printf("  Type: %s\n", p.Type)
	fmt.Printf("  Ticker Mint: %s\n", p.TickerMint.Hex())
	fmt.Printf("  Amount: %d\n", p.Amount)
	fmt.Printf("  Payment Mint: %s\n", p.PaymentMint.Hex())
	fmt.Printf("  Price: %d\n", p.Price)
	fmt.Printf("  Fee: %d\n", p.Fee)
	fmt.Printf("  Expires At: %d\n\n", p.ExpiresAt)

	// Step 3: Self-verify before printing anything submittable
	if !crypto.Verify(key.Public(), att.Digest[:], att.Sig) {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")

	// Step 4: Serialize as a ready-to-POST order request
	req := api.CreateOrderRequest{
		Maker: *maker,
		Payload: api.PayloadRequest{
			ID:          p.ID,
			Side:        p.Side.String(),
			Type:        p.Type.String(),
			TickerMint:  p.TickerMint.Hex(),
			Amount:      p.Amount,
			PaymentMint: p.PaymentMint.Hex(),
			Price:       p.Price,
			Fee:         p.Fee,
			ExpiresAt:   p.ExpiresAt,
		},
		Digest: hex.EncodeToString(att.Digest[:]),
		Sig:    hex.EncodeToString(att.Sig),
	}

	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nTo submit this order:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(reqJSON))
}
