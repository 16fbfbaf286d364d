package zkp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// Witness field names shared across circuits. The hash/nullifier derivation
// is identical in all three circuits; the extra statements only add
// constraints on top of it.
const (
	WitnessSecret     = "secret"
	WitnessSeed       = "seed"
	WitnessSecretHash = "secret_hash"
	WitnessDomainHash = "domain_hash"
	WitnessNullifier  = "nullifier"

	WitnessBalance    = "balance"
	WitnessMinBalance = "min_balance"
	WitnessBucketLow  = "bucket_low"

	WitnessAssetID         = "asset_id"
	WitnessCollectionID    = "collection_id"
	WitnessAssetCommitment = "asset_commitment"
)

// AccountOwnershipCircuit proves knowledge of the account secret behind a
// public commitment and that the nullifier was derived from that secret,
// the relying-party domain and a fresh seed.
//
// Public input order is the declaration order below and is part of the
// protocol: [secret_hash, domain_hash, nullifier].
type AccountOwnershipCircuit struct {
	Secret frontend.Variable `gnark:",secret"`
	Seed   frontend.Variable `gnark:",secret"`

	SecretHash frontend.Variable `gnark:",public"`
	DomainHash frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
}

func (c *AccountOwnershipCircuit) Define(api frontend.API) error {
	return defineOwnership(api, c.Secret, c.Seed, c.SecretHash, c.DomainHash, c.Nullifier)
}

// BalanceRangeCircuit extends ownership with a hidden-balance statement:
// the secret balance meets the declared minimum and the disclosed bucket
// lower bound. Public input order: [secret_hash, domain_hash, nullifier,
// min_balance, bucket_low].
type BalanceRangeCircuit struct {
	Secret  frontend.Variable `gnark:",secret"`
	Seed    frontend.Variable `gnark:",secret"`
	Balance frontend.Variable `gnark:",secret"`

	SecretHash frontend.Variable `gnark:",public"`
	DomainHash frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	MinBalance frontend.Variable `gnark:",public"`
	BucketLow  frontend.Variable `gnark:",public"`
}

func (c *BalanceRangeCircuit) Define(api frontend.API) error {
	if err := defineOwnership(api, c.Secret, c.Seed, c.SecretHash, c.DomainHash, c.Nullifier); err != nil {
		return err
	}

	api.AssertIsLessOrEqual(c.MinBalance, c.Balance)
	api.AssertIsLessOrEqual(c.BucketLow, c.Balance)

	return nil
}

// AssetOwnershipCircuit extends ownership with a hidden-asset statement:
// the secret asset id, bound to the public collection id, matches the
// disclosed commitment. Public input order: [secret_hash, domain_hash,
// nullifier, collection_id, asset_commitment].
type AssetOwnershipCircuit struct {
	Secret  frontend.Variable `gnark:",secret"`
	Seed    frontend.Variable `gnark:",secret"`
	AssetID frontend.Variable `gnark:",secret"`

	SecretHash      frontend.Variable `gnark:",public"`
	DomainHash      frontend.Variable `gnark:",public"`
	Nullifier       frontend.Variable `gnark:",public"`
	CollectionID    frontend.Variable `gnark:",public"`
	AssetCommitment frontend.Variable `gnark:",public"`
}

func (c *AssetOwnershipCircuit) Define(api frontend.API) error {
	if err := defineOwnership(api, c.Secret, c.Seed, c.SecretHash, c.DomainHash, c.Nullifier); err != nil {
		return err
	}

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.AssetID, c.CollectionID)
	api.AssertIsEqual(h.Sum(), c.AssetCommitment)

	return nil
}

// defineOwnership constrains the shared derivation:
// MiMC(secret) = secretHash and MiMC(secretHash, domainHash, seed) = nullifier.
func defineOwnership(api frontend.API, secret, seed, secretHash, domainHash, nullifier frontend.Variable) error {
	commit, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	commit.Write(secret)
	api.AssertIsEqual(commit.Sum(), secretHash)

	derive, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	derive.Write(secretHash, domainHash, seed)
	api.AssertIsEqual(derive.Sum(), nullifier)

	return nil
}

// blankCircuit returns an unassigned circuit for compilation.
func blankCircuit(id CircuitID) (frontend.Circuit, error) {
	switch id {
	case CircuitAccountOwnership:
		return &AccountOwnershipCircuit{}, nil
	case CircuitBalanceRange:
		return &BalanceRangeCircuit{}, nil
	case CircuitAssetOwnership:
		return &AssetOwnershipCircuit{}, nil
	default:
		return nil, fmt.Errorf("unknown circuit id '%s'", id)
	}
}

// witnessFieldOrder lists every witness key a circuit requires.
func witnessFieldOrder(id CircuitID) []string {
	shared := []string{WitnessSecret, WitnessSeed, WitnessSecretHash, WitnessDomainHash, WitnessNullifier}
	switch id {
	case CircuitBalanceRange:
		return append(shared, WitnessBalance, WitnessMinBalance, WitnessBucketLow)
	case CircuitAssetOwnership:
		return append(shared, WitnessAssetID, WitnessCollectionID, WitnessAssetCommitment)
	default:
		return shared
	}
}

// PublicInputNames returns the fixed positional meaning of a circuit's
// public inputs.
func PublicInputNames(id CircuitID) []string {
	shared := []string{WitnessSecretHash, WitnessDomainHash, WitnessNullifier}
	switch id {
	case CircuitBalanceRange:
		return append(shared, WitnessMinBalance, WitnessBucketLow)
	case CircuitAssetOwnership:
		return append(shared, WitnessCollectionID, WitnessAssetCommitment)
	default:
		return shared
	}
}

// assignmentFromMap builds a fully-assigned circuit from decimal witness
// values, rejecting unknown and missing keys.
func assignmentFromMap(id CircuitID, values map[string]string) (frontend.Circuit, error) {
	required := witnessFieldOrder(id)

	parsed := make(map[string]*big.Int, len(values))
	for name, raw := range values {
		if !containsField(required, name) {
			return nil, fmt.Errorf("witness references unknown field '%s' for circuit %s", name, id)
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid decimal value for field '%s'", name)
		}
		parsed[name] = v
	}

	for _, name := range required {
		if _, ok := parsed[name]; !ok {
			return nil, fmt.Errorf("required field '%s' missing from witness", name)
		}
	}

	switch id {
	case CircuitAccountOwnership:
		return &AccountOwnershipCircuit{
			Secret:     parsed[WitnessSecret],
			Seed:       parsed[WitnessSeed],
			SecretHash: parsed[WitnessSecretHash],
			DomainHash: parsed[WitnessDomainHash],
			Nullifier:  parsed[WitnessNullifier],
		}, nil
	case CircuitBalanceRange:
		return &BalanceRangeCircuit{
			Secret:     parsed[WitnessSecret],
			Seed:       parsed[WitnessSeed],
			Balance:    parsed[WitnessBalance],
			SecretHash: parsed[WitnessSecretHash],
			DomainHash: parsed[WitnessDomainHash],
			Nullifier:  parsed[WitnessNullifier],
			MinBalance: parsed[WitnessMinBalance],
			BucketLow:  parsed[WitnessBucketLow],
		}, nil
	case CircuitAssetOwnership:
		return &AssetOwnershipCircuit{
			Secret:          parsed[WitnessSecret],
			Seed:            parsed[WitnessSeed],
			AssetID:         parsed[WitnessAssetID],
			SecretHash:      parsed[WitnessSecretHash],
			DomainHash:      parsed[WitnessDomainHash],
			Nullifier:       parsed[WitnessNullifier],
			CollectionID:    parsed[WitnessCollectionID],
			AssetCommitment: parsed[WitnessAssetCommitment],
		}, nil
	default:
		return nil, fmt.Errorf("unknown circuit id '%s'", id)
	}
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
