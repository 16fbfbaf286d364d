package zkp

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

const ElipticalCurveID = ecc.BN254

// Proof is an opaque proof plus its ordered public inputs as decimal
// field-element strings. Positional meaning is fixed per circuit, see
// PublicInputNames.
type Proof struct {
	ProofBytes   []byte   `json:"proof_bytes"`
	PublicInputs []string `json:"public_inputs"`
}

// Backend is one proving backend bound to a single circuit. Construction is
// expensive (compile + setup) and instances are cached by the Pipeline.
type Backend interface {
	// Execute runs witness computation over decimal witness values and
	// returns the serialized full witness.
	Execute(witnessValues map[string]string) ([]byte, error)

	// GenerateProof proves the statement over a serialized witness.
	GenerateProof(witnessBytes []byte) (*Proof, error)

	// VerifyProof checks a proof against the exact public inputs returned
	// at generation time. Mismatched count or order is a deterministic
	// false, never a panic.
	VerifyProof(proof *Proof) (bool, error)

	// VerificationKey returns the serialized verifying key.
	VerificationKey() ([]byte, error)
}

// GnarkBackend proves and verifies one circuit with groth16 over BN254.
type GnarkBackend struct {
	circuitID CircuitID
	ccs       constraint.ConstraintSystem
	pk        groth16.ProvingKey
	vk        groth16.VerifyingKey
}

func NewGnarkBackend(id CircuitID) (*GnarkBackend, error) {
	circuit, err := blankCircuit(id)
	if err != nil {
		return nil, err
	}

	ccs, err := frontend.Compile(ElipticalCurveID.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile circuit %s: %w", id, err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup circuit %s: %w", id, err)
	}

	return &GnarkBackend{circuitID: id, ccs: ccs, pk: pk, vk: vk}, nil
}

func (b *GnarkBackend) CircuitID() CircuitID { return b.circuitID }

func (b *GnarkBackend) Execute(witnessValues map[string]string) ([]byte, error) {
	assignment, err := assignmentFromMap(b.circuitID, witnessValues)
	if err != nil {
		return nil, err
	}

	w, err := frontend.NewWitness(assignment, ElipticalCurveID.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}

	return w.MarshalBinary()
}

func (b *GnarkBackend) GenerateProof(witnessBytes []byte) (*Proof, error) {
	w, err := witness.New(ElipticalCurveID.ScalarField())
	if err != nil {
		return nil, err
	}
	if err := w.UnmarshalBinary(witnessBytes); err != nil {
		return nil, fmt.Errorf("decode witness: %w", err)
	}

	proof, err := groth16.Prove(b.ccs, b.pk, w)
	if err != nil {
		return nil, fmt.Errorf("prove %s: %w", b.circuitID, err)
	}

	publicWitness, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}

	vector, ok := publicWitness.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected public witness vector type %T", publicWitness.Vector())
	}

	publicInputs := make([]string, len(vector))
	for i := range vector {
		publicInputs[i] = vector[i].String()
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	return &Proof{ProofBytes: buf.Bytes(), PublicInputs: publicInputs}, nil
}

func (b *GnarkBackend) VerifyProof(p *Proof) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("nil proof")
	}

	expected := len(PublicInputNames(b.circuitID))
	if len(p.PublicInputs) != expected {
		return false, nil
	}

	proof := groth16.NewProof(ElipticalCurveID)
	if _, err := proof.ReadFrom(bytes.NewReader(p.ProofBytes)); err != nil {
		return false, nil
	}

	publicWitness, err := b.publicWitnessFromStrings(p.PublicInputs)
	if err != nil {
		return false, nil
	}

	if err := groth16.Verify(proof, b.vk, publicWitness); err != nil {
		return false, nil
	}

	return true, nil
}

func (b *GnarkBackend) VerificationKey() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize verifying key: %w", err)
	}
	return buf.Bytes(), nil
}

// publicWitnessFromStrings rebuilds a public-only witness from decimal
// strings in positional order.
func (b *GnarkBackend) publicWitnessFromStrings(inputs []string) (witness.Witness, error) {
	w, err := witness.New(ElipticalCurveID.ScalarField())
	if err != nil {
		return nil, err
	}

	values := make(chan any, len(inputs))
	for _, s := range inputs {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			close(values)
			return nil, fmt.Errorf("invalid public input '%s'", s)
		}
		values <- v
	}
	close(values)

	if err := w.Fill(len(inputs), 0, values); err != nil {
		return nil, err
	}

	return w, nil
}
