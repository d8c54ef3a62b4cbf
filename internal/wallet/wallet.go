// Package wallet verifies that a login challenge was signed by the wallet
// that claims it. Each supported network has its own SignatureVerifier.
package wallet

import (
	"errors"
	"fmt"

	"emi-service/internal/models"
)

var (
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrSignatureMismatch  = errors.New("signature does not match wallet")
)

// Proof is a signed login challenge.
type Proof struct {
	Address   string
	Message   string
	Signature string
	// PublicKey is required by networks whose addresses do not commit to a
	// recoverable key (TON).
	PublicKey string
}

// SignatureVerifier checks proofs for one network.
type SignatureVerifier interface {
	Network() models.Network
	NormalizeAddress(address string) (string, error)
	Verify(p Proof) error
}

// Registry dispatches to the verifier of a network.
type Registry struct {
	verifiers map[models.Network]SignatureVerifier
}

// NewRegistry builds a registry from verifiers. A later verifier for the same
// network replaces an earlier one.
func NewRegistry(verifiers ...SignatureVerifier) *Registry {
	r := &Registry{verifiers: make(map[models.Network]SignatureVerifier, len(verifiers))}
	for _, v := range verifiers {
		r.verifiers[v.Network()] = v
	}
	return r
}

// DefaultRegistry supports every network users can log in with.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewEVMVerifier(models.NetworkBSC),
		NewEVMVerifier(models.NetworkEthereum),
		TronVerifier{},
		TONVerifier{},
	)
}

func (r *Registry) get(network models.Network) (SignatureVerifier, error) {
	v, ok := r.verifiers[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}
	return v, nil
}

// NormalizeAddress returns the canonical stored form of address.
func (r *Registry) NormalizeAddress(network models.Network, address string) (string, error) {
	v, err := r.get(network)
	if err != nil {
		return "", err
	}
	return v.NormalizeAddress(address)
}

// Verify checks p against the verifier of network.
func (r *Registry) Verify(network models.Network, p Proof) error {
	v, err := r.get(network)
	if err != nil {
		return err
	}
	return v.Verify(p)
}
