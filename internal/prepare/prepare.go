// Package prepare gathers private witness and public inputs per circuit and
// enforces eligibility locally before any proof work starts.
package prepare

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/gagliardetto/solana-go"

	"github.com/digitaldrreamer/veiled-sub002/pkg/fieldhash"
	"github.com/digitaldrreamer/veiled-sub002/pkg/ledger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
	"github.com/digitaldrreamer/veiled-sub002/pkg/signer"
	"github.com/digitaldrreamer/veiled-sub002/pkg/zkp"
)

// secretDerivationMessage is the fixed message the device signs to derive
// the account secret. Deterministic per account: the same wallet always
// derives the same secret.
const secretDerivationMessage = "veiled:account-secret:v1"

// Prepared is the full output of input preparation for one sign-in.
type Prepared struct {
	Inputs      *zkp.InputSet
	Nullifier   fr.Element
	SecretHash  fr.Element
	DomainHash  fr.Element
	DomainBytes [fieldhash.DomainByteLength]byte
	Bucket      *BalanceBucket
}

// Preparer derives witness values from the device signer and, for the
// eligibility circuits, from the ledger data provider.
type Preparer struct {
	Signer signer.Device
	Ledger ledger.DataProvider
	log    *logger.Logger
}

func New(device signer.Device, provider ledger.DataProvider) *Preparer {
	return &Preparer{Signer: device, Ledger: provider, log: logger.Default()}
}

// Prepare dispatches to the per-circuit preparer. seedOverride, when
// non-nil, reuses a seed across sign-ins; that intentionally makes sessions
// to the same relying party linkable and is a caller decision, never a
// default.
func (p *Preparer) Prepare(ctx context.Context, id zkp.CircuitID, req zkp.Requirements, domain string, seedOverride *fr.Element) (*Prepared, error) {
	base, err := p.deriveBase(ctx, domain, seedOverride)
	if err != nil {
		return nil, err
	}

	switch id {
	case zkp.CircuitAccountOwnership:
		return p.prepareOwnership(base)
	case zkp.CircuitBalanceRange:
		if req.Balance == nil {
			return nil, fmt.Errorf("balance circuit selected without a balance constraint")
		}
		return p.prepareBalanceRange(ctx, base, req.Balance)
	case zkp.CircuitAssetOwnership:
		if req.Asset == nil {
			return nil, fmt.Errorf("asset circuit selected without an asset constraint")
		}
		return p.prepareAssetOwnership(ctx, base, req.Asset)
	default:
		return nil, fmt.Errorf("unknown circuit id '%s'", id)
	}
}

// derivedBase carries the shared hash/nullifier derivation. All three
// circuits use it unchanged; divergence would break cross-circuit
// nullifier comparability.
type derivedBase struct {
	secret      fr.Element
	seed        fr.Element
	secretHash  fr.Element
	domainHash  fr.Element
	nullifier   fr.Element
	domainBytes [fieldhash.DomainByteLength]byte
}

func (p *Preparer) deriveBase(ctx context.Context, domain string, seedOverride *fr.Element) (*derivedBase, error) {
	// Domain validation happens before any hashing or signer interaction.
	domainBytes, err := fieldhash.EncodeDomain(domain)
	if err != nil {
		return nil, err
	}

	if p.Signer == nil {
		return nil, reasoncodes.ErrSignerUnavailable
	}

	sig, err := p.Signer.SignMessage(ctx, []byte(secretDerivationMessage))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reasoncodes.ErrSignerUnavailable, err)
	}
	if len(sig) < signer.SignatureLength {
		return nil, fmt.Errorf("%w: signature is %d bytes, need %d",
			reasoncodes.ErrSignerUnavailable, len(sig), signer.SignatureLength)
	}

	var seed fr.Element
	if seedOverride != nil {
		seed.Set(seedOverride)
	} else {
		if _, err := seed.SetRandom(); err != nil {
			return nil, fmt.Errorf("derive seed: %w", err)
		}
	}

	secret := fieldhash.HashToField(sig)
	secretHash := fieldhash.MiMCChain(secret)
	domainHash := fieldhash.HashToField(domainBytes[:])
	nullifier := fieldhash.MiMCChain(secretHash, domainHash, seed)

	return &derivedBase{
		secret:      secret,
		seed:        seed,
		secretHash:  secretHash,
		domainHash:  domainHash,
		nullifier:   nullifier,
		domainBytes: domainBytes,
	}, nil
}

func (p *Preparer) prepareOwnership(base *derivedBase) (*Prepared, error) {
	witness := base.sharedWitness()

	return &Prepared{
		Inputs: &zkp.InputSet{
			Witness:      witness,
			PublicInputs: base.sharedPublicInputs(),
		},
		Nullifier:   base.nullifier,
		SecretHash:  base.secretHash,
		DomainHash:  base.domainHash,
		DomainBytes: base.domainBytes,
	}, nil
}

// prepareBalanceRange fetches the real balance and fails fast when it is
// below the declared minimum, before any backend work. The short-circuit
// leaks the comparison outcome via timing, to the caller that declared the
// threshold; the amount itself never leaves the witness.
func (p *Preparer) prepareBalanceRange(ctx context.Context, base *derivedBase, constraint *zkp.BalanceConstraint) (*Prepared, error) {
	if p.Ledger == nil {
		return nil, fmt.Errorf("balance circuit requires a ledger data provider")
	}

	balance, err := p.Ledger.GetBalance(ctx, p.Signer.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}

	if balance < constraint.MinimumLamports {
		p.log.Debugf("balance eligibility failed: have less than declared minimum %d",
			constraint.MinimumLamports)
		return nil, fmt.Errorf("%w: balance below declared minimum %d",
			reasoncodes.ErrInsufficientEligibility, constraint.MinimumLamports)
	}

	bucket := BucketFor(balance)

	var balanceEl, minEl, bucketEl fr.Element
	balanceEl.SetUint64(balance)
	minEl.SetUint64(constraint.MinimumLamports)
	bucketEl.SetUint64(bucket.LowLamports)

	witness := base.sharedWitness()
	witness[zkp.WitnessBalance] = balanceEl.String()
	witness[zkp.WitnessMinBalance] = minEl.String()
	witness[zkp.WitnessBucketLow] = bucketEl.String()

	return &Prepared{
		Inputs: &zkp.InputSet{
			Witness:      witness,
			PublicInputs: append(base.sharedPublicInputs(), minEl.String(), bucketEl.String()),
		},
		Nullifier:   base.nullifier,
		SecretHash:  base.secretHash,
		DomainHash:  base.domainHash,
		DomainBytes: base.domainBytes,
		Bucket:      &bucket,
	}, nil
}

func (p *Preparer) prepareAssetOwnership(ctx context.Context, base *derivedBase, constraint *zkp.AssetConstraint) (*Prepared, error) {
	if p.Ledger == nil {
		return nil, fmt.Errorf("asset circuit requires a ledger data provider")
	}

	assets, err := p.Ledger.GetHeldAssets(ctx, p.Signer.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("fetch held assets: %w", err)
	}

	matched, ok := firstInCollection(assets, constraint.Collection)
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", reasoncodes.ErrAssetNotFound,
			constraint.Collection.String())
	}

	// The held asset id stays private witness; only the collection id and
	// the commitment binding the asset to it are disclosed.
	assetEl := fieldhash.HashToField(matched.AssetID.Bytes())
	collectionEl := fieldhash.HashToField(constraint.Collection.Bytes())
	commitment := fieldhash.MiMCChain(assetEl, collectionEl)

	witness := base.sharedWitness()
	witness[zkp.WitnessAssetID] = assetEl.String()
	witness[zkp.WitnessCollectionID] = collectionEl.String()
	witness[zkp.WitnessAssetCommitment] = commitment.String()

	return &Prepared{
		Inputs: &zkp.InputSet{
			Witness:      witness,
			PublicInputs: append(base.sharedPublicInputs(), collectionEl.String(), commitment.String()),
		},
		Nullifier:   base.nullifier,
		SecretHash:  base.secretHash,
		DomainHash:  base.domainHash,
		DomainBytes: base.domainBytes,
	}, nil
}

func (b *derivedBase) sharedWitness() map[string]string {
	return map[string]string{
		zkp.WitnessSecret:     b.secret.String(),
		zkp.WitnessSeed:       b.seed.String(),
		zkp.WitnessSecretHash: b.secretHash.String(),
		zkp.WitnessDomainHash: b.domainHash.String(),
		zkp.WitnessNullifier:  b.nullifier.String(),
	}
}

func (b *derivedBase) sharedPublicInputs() []string {
	return []string{b.secretHash.String(), b.domainHash.String(), b.nullifier.String()}
}

func firstInCollection(assets []ledger.HeldAsset, collection solana.PublicKey) (ledger.HeldAsset, bool) {
	for _, asset := range assets {
		if asset.Burnt {
			continue
		}
		if asset.Collection.Equals(collection) {
			return asset, true
		}
	}
	return ledger.HeldAsset{}, false
}
