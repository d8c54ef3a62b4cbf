package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"emi-service/internal/models"
)

// EVMVerifier checks personal_sign signatures for EVM chains (BSC, Ethereum).
type EVMVerifier struct {
	network models.Network
}

func NewEVMVerifier(network models.Network) EVMVerifier {
	return EVMVerifier{network: network}
}

func (v EVMVerifier) Network() models.Network { return v.network }

// NormalizeAddress lower-cases a 0x-prefixed hex address.
func (v EVMVerifier) NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}

func (v EVMVerifier) Verify(p Proof) error {
	if _, err := v.NormalizeAddress(p.Address); err != nil {
		return err
	}
	recovered, err := recoverSigner(prefixedHash("\x19Ethereum Signed Message:\n", p.Message), p.Signature)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(p.Address) {
		return ErrSignatureMismatch
	}
	return nil
}

// prefixedHash is keccak256(prefix || len(message) || message), the digest
// signed by wallet personal_sign implementations.
func prefixedHash(prefix, message string) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("%s%d%s", prefix, len(message), message)))
}

// recoverSigner returns the address whose key produced the 65-byte
// [R || S || V] signature over hash. V may be 0/1 or 27/28.
func recoverSigner(hash []byte, signature string) (common.Address, error) {
	sig := common.FromHex(strings.TrimSpace(signature))
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
