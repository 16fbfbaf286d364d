package zkp

import (
	"context"
	"fmt"
	"sync"

	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
)

// InputSet pairs the private witness with the public inputs derived at
// preparation time. The pipeline requires the backend to reproduce
// PublicInputs exactly, in count and order.
type InputSet struct {
	Witness      map[string]string
	PublicInputs []string
}

// BackendFactory builds a backend for a circuit. Swapped out in tests.
type BackendFactory func(CircuitID) (Backend, error)

type backendEntry struct {
	once    sync.Once
	backend Backend
	err     error
}

// Pipeline orchestrates witness computation, proof generation and local
// verification. It owns one lazily-built backend per circuit; construction
// runs at most once per circuit even under concurrent sign-ins.
type Pipeline struct {
	mu         sync.Mutex
	backends   map[CircuitID]*backendEntry
	newBackend BackendFactory
	log        *logger.Logger
}

func NewPipeline() *Pipeline {
	return NewPipelineWithFactory(func(id CircuitID) (Backend, error) {
		return NewGnarkBackend(id)
	})
}

func NewPipelineWithFactory(factory BackendFactory) *Pipeline {
	return &Pipeline{
		backends:   make(map[CircuitID]*backendEntry),
		newBackend: factory,
		log:        logger.Default(),
	}
}

// Backend returns the cached backend for a circuit, building it on first
// use. A failed build is cached too; callers retry with a fresh pipeline.
func (p *Pipeline) Backend(id CircuitID) (Backend, error) {
	p.mu.Lock()
	entry, ok := p.backends[id]
	if !ok {
		entry = &backendEntry{}
		p.backends[id] = entry
	}
	p.mu.Unlock()

	entry.once.Do(func() {
		p.log.Infof("building proving backend for circuit %s", id)
		entry.backend, entry.err = p.newBackend(id)
	})

	return entry.backend, entry.err
}

// Execute runs the full proving sequence: witness computation, proof
// generation, then local verification. A locally-invalid proof is never
// reported as success.
func (p *Pipeline) Execute(ctx context.Context, id CircuitID, inputs *InputSet) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	backend, err := p.Backend(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reasoncodes.ErrProofGenerationFailed, err)
	}

	witnessBytes, err := backend.Execute(inputs.Witness)
	if err != nil {
		return nil, fmt.Errorf("%w: witness computation: %v", reasoncodes.ErrProofGenerationFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proof, err := backend.GenerateProof(witnessBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reasoncodes.ErrProofGenerationFailed, err)
	}

	if !publicInputsMatch(inputs.PublicInputs, proof.PublicInputs) {
		return nil, fmt.Errorf("%w: prepared public inputs diverge from generated ones",
			reasoncodes.ErrProofInvalid)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valid, err := backend.VerifyProof(proof)
	if err != nil {
		return nil, fmt.Errorf("%w: local verification: %v", reasoncodes.ErrProofInvalid, err)
	}
	if !valid {
		return nil, reasoncodes.ErrProofInvalid
	}

	p.log.Debugf("circuit %s proved and locally verified, %d public inputs", id, len(proof.PublicInputs))
	return proof, nil
}

// Verify checks a proof against the exact public inputs it was generated
// with.
func (p *Pipeline) Verify(ctx context.Context, id CircuitID, proof *Proof) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	backend, err := p.Backend(id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", reasoncodes.ErrProofGenerationFailed, err)
	}

	return backend.VerifyProof(proof)
}

func publicInputsMatch(prepared, generated []string) bool {
	if len(prepared) != len(generated) {
		return false
	}
	for i := range prepared {
		if prepared[i] != generated[i] {
			return false
		}
	}
	return true
}
