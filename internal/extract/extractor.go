// Package extract recognizes pump.fun token-creation transactions inside
// the raw Geyser transaction stream and projects them into CreateRecords.
package extract

import (
	"strings"

	"github.com/mr-tron/base58"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// Instruction markers emitted to the program log by the pump.fun program.
// The v2 marker contains the v1 marker as a prefix, so v2 must be tested
// first and v1 holds only when the v2 marker is absent from the whole blob.
const (
	createMarker   = "Instruction: Create"
	createV2Marker = "Instruction: CreateV2"
)

// zeroAddress is the base58 form of the all-zero system address. A mint
// containing it can never be a freshly created token.
const zeroAddress = "11111111111111111111111111111111"

// CreateRecord is one decoded token-creation event. Records are immutable
// once built and are shared by pointer across all fan-out receivers.
type CreateRecord struct {
	Signature      string
	MintAddress    string
	CreatorAddress string
	Slot           uint64
	IsCreateV2     bool
}

// Extractor maps raw transaction updates of a single on-chain program to
// CreateRecords. It is stateless and safe for concurrent use, though in
// practice it runs serially on the subscriber goroutine.
type Extractor struct {
	programID string
}

// NewExtractor creates an extractor for the given program ID. The ID is
// matched verbatim against the transaction log output.
func NewExtractor(programID string) *Extractor {
	return &Extractor{programID: programID}
}

// Extract returns the CreateRecord encoded in tx, or nil when tx is not a
// creation event of the target program. It never mutates tx. The checks are
// ordered cheapest-first so the almost-always-miss path allocates nothing
// beyond the joined log blob.
func (e *Extractor) Extract(tx *pb.SubscribeUpdateTransaction) *CreateRecord {
	info := tx.GetTransaction()
	if info == nil {
		return nil
	}
	meta := info.GetMeta()
	if meta == nil {
		return nil
	}

	// Geyser exposes log output as discrete lines; join them so markers
	// are matched against the whole blob.
	logs := strings.Join(meta.GetLogMessages(), "\n")
	if !strings.Contains(logs, e.programID) {
		return nil
	}
	isCreateV2 := strings.Contains(logs, createV2Marker)
	if !isCreateV2 && !strings.Contains(logs, createMarker) {
		return nil
	}

	sig := signature(info)
	if sig == "" {
		return nil
	}
	creator := firstAccountKey(info)
	if creator == "" {
		return nil
	}
	mint := newMint(meta)
	if mint == "" {
		return nil
	}

	return &CreateRecord{
		Signature:      sig,
		MintAddress:    mint,
		CreatorAddress: creator,
		Slot:           tx.GetSlot(),
		IsCreateV2:     isCreateV2,
	}
}

// signature prefers the top-level signature bytes and falls back to the
// first signature of the inner transaction.
func signature(info *pb.SubscribeUpdateTransactionInfo) string {
	if sig := info.GetSignature(); len(sig) > 0 {
		return base58.Encode(sig)
	}
	sigs := info.GetTransaction().GetSignatures()
	if len(sigs) == 0 || len(sigs[0]) == 0 {
		return ""
	}
	return base58.Encode(sigs[0])
}

// firstAccountKey returns the first key of the inner message, which for a
// creation transaction is the creator paying the fees.
func firstAccountKey(info *pb.SubscribeUpdateTransactionInfo) string {
	keys := info.GetTransaction().GetMessage().GetAccountKeys()
	if len(keys) == 0 || len(keys[0]) == 0 {
		return ""
	}
	return base58.Encode(keys[0])
}

// newMint picks the mint introduced by the transaction: any post-trade
// token-balance mint absent from the pre-trade set, excluding the zero
// address. Pump.fun vanity mints end in "pump", so such a candidate wins
// over other new mints; otherwise the first candidate is taken.
func newMint(meta *pb.TransactionStatusMeta) string {
	preMints := make(map[string]struct{}, len(meta.GetPreTokenBalances()))
	for _, b := range meta.GetPreTokenBalances() {
		preMints[b.GetMint()] = struct{}{}
	}

	var candidates []string
	for _, b := range meta.GetPostTokenBalances() {
		mint := b.GetMint()
		if _, seen := preMints[mint]; seen {
			continue
		}
		if strings.Contains(mint, zeroAddress) {
			continue
		}
		candidates = append(candidates, mint)
	}

	for _, mint := range candidates {
		if strings.HasSuffix(mint, "pump") {
			return mint
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}
