package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pricefeed"
	"github.com/DustGate/dustgate/internal/service"
)

// inspector is the feeder/ops companion: key generation, packet signing and
// verification, and maker destination authorizations, all offline.

var logger = log.New(os.Stderr, "[inspector] ", log.LstdFlags)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "keygen":
		runKeygen()
	case "sign":
		runSign(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "digest":
		runDigest(os.Args[2:])
	case "sign-destination":
		runSignDestination(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: inspector <command> [flags]

Commands:
  keygen            generate an attestor keypair
  sign              build and sign a price packet from decimal quotes
  verify            verify a packet against a trusted signer set
  digest            print a packet's signing digest
  sign-destination  sign a maker payout destination authorization`)
}

func runKeygen() {
	key, err := crypto.GenerateKey()
	if err != nil {
		logger.Fatalf("keygen failed: %v", err)
	}
	printJSON(map[string]string{
		"private_key": common.Bytes2Hex(crypto.FromECDSA(key)),
		"address":     crypto.PubkeyToAddress(key.PublicKey).Hex(),
	})
}

func runSign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyHex := fs.String("key", "", "attestor private key hex (required)")
	quotesArg := fs.String("quotes", "", "comma-separated token=price list, price in native units per whole token (required)")
	chainID := fs.Int64("chain-id", 137, "feed chain id")
	deadline := fs.Int64("deadline", 0, "unix deadline; 0 derives it from -ttl")
	ttl := fs.Duration("ttl", 5*time.Minute, "packet lifetime when -deadline is 0")
	fs.Parse(args)

	if *keyHex == "" {
		logger.Fatal("-key is required")
	}
	if *quotesArg == "" {
		logger.Fatal("-quotes is required")
	}

	quotes, err := parseQuotes(*quotesArg)
	if err != nil {
		logger.Fatalf("invalid quotes: %v", err)
	}

	dl := *deadline
	if dl == 0 {
		dl = time.Now().Add(*ttl).Unix()
	}

	packet := &pricefeed.Packet{
		Quotes:      quotes,
		RequestType: pricefeed.RequestTypeDustSweep,
		Deadline:    dl,
	}

	signer, err := pricefeed.NewSigner(*keyHex, *chainID)
	if err != nil {
		logger.Fatalf("bad key: %v", err)
	}
	signature, err := signer.SignPacket(packet)
	if err != nil {
		logger.Fatalf("signing failed: %v", err)
	}

	logger.Printf("attestor %s, digest 0x%s",
		signer.Address().Hex(),
		common.Bytes2Hex(pricefeed.NewDomain(*chainID).Digest(packet)))

	entries := make([]model.PacketEntryDTO, 0, len(packet.Quotes))
	for _, q := range packet.Quotes {
		entries = append(entries, model.PacketEntryDTO{
			Token: q.Token.Hex(),
			Price: q.Price.String(),
		})
	}
	printJSON(model.PacketDTO{
		Entries:     entries,
		RequestType: packet.RequestType,
		Deadline:    packet.Deadline,
		Signature:   signature,
	})
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	packetPath := fs.String("packet", "", "packet JSON file, or - for stdin (required)")
	chainID := fs.Int64("chain-id", 137, "feed chain id")
	signersArg := fs.String("signers", "", "comma-separated trusted attestor addresses (required)")
	fs.Parse(args)

	if *signersArg == "" {
		logger.Fatal("-signers is required")
	}
	packet := readPacket(*packetPath)

	verifier, err := pricefeed.NewVerifier(*chainID, pricefeed.RequestTypeDustSweep, strings.Split(*signersArg, ","))
	if err != nil {
		logger.Fatalf("bad signer set: %v", err)
	}
	attestor, err := verifier.Verify(packet)
	if err != nil {
		logger.Fatalf("verification failed: %v", err)
	}
	printJSON(map[string]string{
		"attestor": attestor.Hex(),
		"digest":   "0x" + common.Bytes2Hex(verifier.Digest(packet)),
	})
}

func runDigest(args []string) {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	packetPath := fs.String("packet", "", "packet JSON file, or - for stdin (required)")
	chainID := fs.Int64("chain-id", 137, "feed chain id")
	fs.Parse(args)

	packet := readPacket(*packetPath)
	digest := pricefeed.NewDomain(*chainID).Digest(packet)
	printJSON(map[string]string{"digest": "0x" + common.Bytes2Hex(digest)})
}

func runSignDestination(args []string) {
	fs := flag.NewFlagSet("sign-destination", flag.ExitOnError)
	keyHex := fs.String("key", "", "maker private key hex (required)")
	destArg := fs.String("destination", "", "payout destination address (required)")
	deadline := fs.Int64("deadline", 0, "unix deadline; 0 derives it from -ttl")
	ttl := fs.Duration("ttl", 15*time.Minute, "authorization lifetime when -deadline is 0")
	fs.Parse(args)

	if *keyHex == "" {
		logger.Fatal("-key is required")
	}
	if !common.IsHexAddress(*destArg) {
		logger.Fatalf("invalid destination address: %s", *destArg)
	}

	key, err := crypto.HexToECDSA(*keyHex)
	if err != nil {
		logger.Fatalf("bad key: %v", err)
	}
	maker := crypto.PubkeyToAddress(key.PublicKey)
	destination := common.HexToAddress(*destArg)

	dl := *deadline
	if dl == 0 {
		dl = time.Now().Add(*ttl).Unix()
	}

	digest := service.DestinationDigest(maker, destination, dl)
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		logger.Fatalf("signing failed: %v", err)
	}
	if signature[64] < 27 {
		signature[64] += 27
	}

	printJSON(model.SetDestinationRequest{
		Maker:       maker.Hex(),
		Destination: destination.Hex(),
		Deadline:    dl,
		Signature:   "0x" + common.Bytes2Hex(signature),
	})
}

// parseQuotes turns "0xTOKEN=1.5,0xTOKEN2=0.003" into packet quotes. Prices
// are native coins per whole token and must not have sub-wei precision.
func parseQuotes(arg string) ([]pricefeed.Quote, error) {
	parts := strings.Split(arg, ",")
	quotes := make([]pricefeed.Quote, 0, len(parts))
	for _, part := range parts {
		tokenPrice := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(tokenPrice) != 2 {
			return nil, fmt.Errorf("expected token=price, got %q", part)
		}
		if !common.IsHexAddress(tokenPrice[0]) {
			return nil, fmt.Errorf("invalid token address: %s", tokenPrice[0])
		}
		human, err := decimal.NewFromString(tokenPrice[1])
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", tokenPrice[1], err)
		}
		price, err := pricefeed.PriceFromDecimal(human)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, pricefeed.Quote{
			Token: common.HexToAddress(tokenPrice[0]),
			Price: price,
		})
	}
	return quotes, nil
}

func readPacket(path string) *pricefeed.Packet {
	if path == "" {
		logger.Fatal("-packet is required")
	}
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		logger.Fatalf("cannot read packet: %v", err)
	}

	var dto model.PacketDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		logger.Fatalf("invalid packet JSON: %v", err)
	}

	quotes := make([]pricefeed.Quote, 0, len(dto.Entries))
	for _, e := range dto.Entries {
		if !common.IsHexAddress(e.Token) {
			logger.Fatalf("invalid token address in packet: %s", e.Token)
		}
		price, err := pricefeed.ParsePrice(e.Price)
		if err != nil {
			logger.Fatalf("invalid price in packet: %v", err)
		}
		quotes = append(quotes, pricefeed.Quote{Token: common.HexToAddress(e.Token), Price: price})
	}
	signature, err := pricefeed.ParseSignature(dto.Signature)
	if err != nil {
		logger.Fatalf("invalid signature: %v", err)
	}

	return &pricefeed.Packet{
		Quotes:      quotes,
		RequestType: dto.RequestType,
		Deadline:    dto.Deadline,
		Signature:   signature,
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Fatalf("encoding output: %v", err)
	}
}
