package prepare

import (
	"context"
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/gagliardetto/solana-go"

	"github.com/digitaldrreamer/veiled-sub002/pkg/fieldhash"
	"github.com/digitaldrreamer/veiled-sub002/pkg/ledger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
	"github.com/digitaldrreamer/veiled-sub002/pkg/signer"
	"github.com/digitaldrreamer/veiled-sub002/pkg/zkp"
)

type fakeLedger struct {
	balance      uint64
	assets       []ledger.HeldAsset
	balanceCalls int
	assetCalls   int
	err          error
}

func (f *fakeLedger) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	f.balanceCalls++
	return f.balance, f.err
}

func (f *fakeLedger) GetHeldAssets(ctx context.Context, account solana.PublicKey) ([]ledger.HeldAsset, error) {
	f.assetCalls++
	return f.assets, f.err
}

func newTestPreparer(t *testing.T, l ledger.DataProvider) *Preparer {
	t.Helper()
	device, err := signer.NewRandomLocal()
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return New(device, l)
}

func TestPrepareOwnershipDerivation(t *testing.T) {
	p := newTestPreparer(t, nil)

	prepared, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "example.com", nil)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if len(prepared.Inputs.PublicInputs) != 3 {
		t.Fatalf("expected 3 public inputs, got %d", len(prepared.Inputs.PublicInputs))
	}
	if prepared.Inputs.PublicInputs[2] != prepared.Nullifier.String() {
		t.Error("nullifier public input does not match derived nullifier")
	}

	// MiMC(secretHash, domainHash, seed) must reproduce the nullifier.
	var seed fr.Element
	if _, err := seed.SetString(prepared.Inputs.Witness[zkp.WitnessSeed]); err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	rederived := fieldhash.MiMCChain(prepared.SecretHash, prepared.DomainHash, seed)
	if !rederived.Equal(&prepared.Nullifier) {
		t.Error("nullifier derivation diverges from the shared MiMC chain")
	}
}

func TestPrepareNullifierDeterministicForSameSeed(t *testing.T) {
	p := newTestPreparer(t, nil)

	var seed fr.Element
	seed.SetUint64(42)

	first, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "example.com", &seed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	second, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "example.com", &seed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if !first.Nullifier.Equal(&second.Nullifier) {
		t.Error("identical (secret, domain, seed) produced different nullifiers")
	}
}

func TestPrepareFreshSeedChangesNullifier(t *testing.T) {
	p := newTestPreparer(t, nil)

	first, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "example.com", nil)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	second, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "example.com", nil)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if first.Nullifier.Equal(&second.Nullifier) {
		t.Error("fresh seeds produced identical nullifiers")
	}
}

func TestPrepareDomainsYieldDistinctNullifiers(t *testing.T) {
	p := newTestPreparer(t, nil)

	var seed fr.Element
	seed.SetUint64(7)

	a, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "example.com", &seed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	b, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, "other.com", &seed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if a.Nullifier.Equal(&b.Nullifier) {
		t.Error("different domains produced the same nullifier")
	}
}

func TestPrepareRejectsOversizedDomainBeforeSigning(t *testing.T) {
	p := newTestPreparer(t, nil)

	long := "this-domain-is-far-longer-than-thirty-two-bytes.example.com"
	_, err := p.Prepare(context.Background(), zkp.CircuitAccountOwnership, zkp.Requirements{}, long, nil)
	if !errors.Is(err, reasoncodes.ErrDomainTooLong) {
		t.Errorf("expected ErrDomainTooLong, got %v", err)
	}
}

func TestPrepareBalanceInsufficientFailsFast(t *testing.T) {
	fake := &fakeLedger{balance: 5_000_000_000}
	p := newTestPreparer(t, fake)

	req := zkp.Requirements{Balance: &zkp.BalanceConstraint{MinimumLamports: 10_000_000_000}}
	_, err := p.Prepare(context.Background(), zkp.CircuitBalanceRange, req, "example.com", nil)

	if !errors.Is(err, reasoncodes.ErrInsufficientEligibility) {
		t.Fatalf("expected ErrInsufficientEligibility, got %v", err)
	}
	if fake.balanceCalls != 1 {
		t.Errorf("expected exactly one balance fetch, got %d", fake.balanceCalls)
	}
}

func TestPrepareBalanceBucketFromThresholds(t *testing.T) {
	fake := &fakeLedger{balance: 25_000_000_000} // 25 SOL
	p := newTestPreparer(t, fake)

	req := zkp.Requirements{Balance: &zkp.BalanceConstraint{MinimumLamports: 1_000_000_000}}
	prepared, err := p.Prepare(context.Background(), zkp.CircuitBalanceRange, req, "example.com", nil)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.Bucket == nil {
		t.Fatal("expected a disclosure bucket")
	}
	if prepared.Bucket.LowLamports != 10_000_000_000 || prepared.Bucket.HighLamports != 100_000_000_000 {
		t.Errorf("25 SOL bucketed as [%d, %d)", prepared.Bucket.LowLamports, prepared.Bucket.HighLamports)
	}
	if len(prepared.Inputs.PublicInputs) != 5 {
		t.Errorf("expected 5 public inputs, got %d", len(prepared.Inputs.PublicInputs))
	}
}

func TestPrepareAssetNotFound(t *testing.T) {
	collection := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	fake := &fakeLedger{assets: []ledger.HeldAsset{
		{AssetID: solana.NewWallet().PublicKey(), Collection: other},
	}}
	p := newTestPreparer(t, fake)

	req := zkp.Requirements{Asset: &zkp.AssetConstraint{Collection: collection}}
	_, err := p.Prepare(context.Background(), zkp.CircuitAssetOwnership, req, "example.com", nil)

	if !errors.Is(err, reasoncodes.ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestPrepareAssetSkipsBurnt(t *testing.T) {
	collection := solana.NewWallet().PublicKey()
	fake := &fakeLedger{assets: []ledger.HeldAsset{
		{AssetID: solana.NewWallet().PublicKey(), Collection: collection, Burnt: true},
	}}
	p := newTestPreparer(t, fake)

	req := zkp.Requirements{Asset: &zkp.AssetConstraint{Collection: collection}}
	_, err := p.Prepare(context.Background(), zkp.CircuitAssetOwnership, req, "example.com", nil)

	if !errors.Is(err, reasoncodes.ErrAssetNotFound) {
		t.Errorf("burnt asset satisfied the constraint: %v", err)
	}
}

func TestPrepareAssetMatch(t *testing.T) {
	collection := solana.NewWallet().PublicKey()
	fake := &fakeLedger{assets: []ledger.HeldAsset{
		{AssetID: solana.NewWallet().PublicKey(), Collection: collection},
	}}
	p := newTestPreparer(t, fake)

	req := zkp.Requirements{Asset: &zkp.AssetConstraint{Collection: collection}}
	prepared, err := p.Prepare(context.Background(), zkp.CircuitAssetOwnership, req, "example.com", nil)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if len(prepared.Inputs.PublicInputs) != 5 {
		t.Errorf("expected 5 public inputs, got %d", len(prepared.Inputs.PublicInputs))
	}
	if _, ok := prepared.Inputs.Witness[zkp.WitnessAssetID]; !ok {
		t.Error("held asset id missing from private witness")
	}
}

func TestBucketFor(t *testing.T) {
	cases := []struct {
		lamports uint64
		low      uint64
		high     uint64
	}{
		{0, 0, 1_000_000_000},
		{999_999_999, 0, 1_000_000_000},
		{1_000_000_000, 1_000_000_000, 10_000_000_000},
		{50_000_000_000, 10_000_000_000, 100_000_000_000},
		{2_000_000_000_000, 1_000_000_000_000, 0},
	}

	for _, tc := range cases {
		bucket := BucketFor(tc.lamports)
		if bucket.LowLamports != tc.low || bucket.HighLamports != tc.high {
			t.Errorf("BucketFor(%d) = [%d, %d), want [%d, %d)",
				tc.lamports, bucket.LowLamports, bucket.HighLamports, tc.low, tc.high)
		}
	}
}
