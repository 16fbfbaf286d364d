package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
)

const splTokenAccountSize = 165

// SolanaProvider reads balances and token assets over JSON-RPC. Collections
// are resolved from the Metaplex token-metadata account of each mint.
type SolanaProvider struct {
	RpcClient  *rpc.Client
	Commitment rpc.CommitmentType
}

func NewSolanaProvider(endpoint string) *SolanaProvider {
	return &SolanaProvider{
		RpcClient:  rpc.New(endpoint),
		Commitment: rpc.CommitmentFinalized,
	}
}

func (sp *SolanaProvider) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := sp.RpcClient.GetBalance(ctx, account, sp.Commitment)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", account.String(), err)
	}
	return out.Value, nil
}

func (sp *SolanaProvider) GetHeldAssets(ctx context.Context, account solana.PublicKey) ([]HeldAsset, error) {
	out, err := sp.RpcClient.GetTokenAccountsByOwner(
		ctx,
		account,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{
			Commitment: sp.Commitment,
			Encoding:   solana.EncodingBase64,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("get token accounts for %s: %w", account.String(), err)
	}

	assets := make([]HeldAsset, 0, len(out.Value))
	for _, tokenAccount := range out.Value {
		data := tokenAccount.Account.Data.GetBinary()
		if len(data) < splTokenAccountSize {
			continue
		}

		mint := solana.PublicKeyFromBytes(data[0:32])
		amount := binary.LittleEndian.Uint64(data[64:72])

		asset := HeldAsset{
			AssetID: mint,
			Burnt:   amount == 0,
		}

		if collection, ok := sp.resolveCollection(ctx, mint); ok {
			asset.Collection = collection
		}

		assets = append(assets, asset)
	}

	logger.Default().Debugf("wallet %s holds %d token assets", account.String(), len(assets))
	return assets, nil
}

// resolveCollection fetches the token-metadata account for a mint and
// extracts the verified collection key, if any.
func (sp *SolanaProvider) resolveCollection(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, bool) {
	metadataAddress, _, err := solana.FindTokenMetadataAddress(mint)
	if err != nil {
		return solana.PublicKey{}, false
	}

	info, err := sp.RpcClient.GetAccountInfoWithOpts(ctx, metadataAddress, &rpc.GetAccountInfoOpts{
		Commitment: sp.Commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil || info.Value == nil {
		return solana.PublicKey{}, false
	}

	return decodeMetadataCollection(info.Value.Data.GetBinary())
}

// decodeMetadataCollection walks the borsh layout of a Metaplex Metadata
// account far enough to reach the optional collection field. Malformed or
// truncated data reads as "no collection".
func decodeMetadataCollection(data []byte) (solana.PublicKey, bool) {
	r := metadataReader{data: data}

	r.skip(1)  // key
	r.skip(32) // update authority
	r.skip(32) // mint
	r.skipString()
	r.skipString()
	r.skipString()
	r.skip(2) // seller fee basis points

	// creators: Option<Vec<Creator>>, each creator 34 bytes
	if r.readOptionFlag() {
		count := r.readU32()
		r.skip(int(count) * 34)
	}

	r.skip(1) // primary sale happened
	r.skip(1) // is mutable

	if r.readOptionFlag() {
		r.skip(1) // edition nonce
	}
	if r.readOptionFlag() {
		r.skip(1) // token standard
	}

	// collection: Option<{verified: bool, key: Pubkey}>
	if !r.readOptionFlag() {
		return solana.PublicKey{}, false
	}
	verified := r.readU8() == 1
	keyBytes := r.read(32)
	if r.failed || !verified {
		return solana.PublicKey{}, false
	}

	return solana.PublicKeyFromBytes(keyBytes), true
}

type metadataReader struct {
	data   []byte
	offset int
	failed bool
}

func (r *metadataReader) read(n int) []byte {
	if r.failed || r.offset+n > len(r.data) {
		r.failed = true
		return make([]byte, n)
	}
	out := r.data[r.offset : r.offset+n]
	r.offset += n
	return out
}

func (r *metadataReader) skip(n int) { r.read(n) }

func (r *metadataReader) readU8() byte { return r.read(1)[0] }

func (r *metadataReader) readU32() uint32 {
	return binary.LittleEndian.Uint32(r.read(4))
}

func (r *metadataReader) readOptionFlag() bool {
	return r.readU8() == 1
}

func (r *metadataReader) skipString() {
	n := r.readU32()
	r.skip(int(n))
}
