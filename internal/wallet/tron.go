package wallet

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"emi-service/internal/models"
)

const tronAddressPrefix = 0x41

// TronVerifier checks TronWeb signMessageV2 signatures against base58check
// T-addresses.
type TronVerifier struct{}

func (TronVerifier) Network() models.Network { return models.NetworkTron }

func (TronVerifier) NormalizeAddress(address string) (string, error) {
	account, err := decodeTronAddress(strings.TrimSpace(address))
	if err != nil {
		return "", err
	}
	return EncodeTronAddress(account), nil
}

func (TronVerifier) Verify(p Proof) error {
	want, err := decodeTronAddress(strings.TrimSpace(p.Address))
	if err != nil {
		return err
	}
	recovered, err := recoverSigner(prefixedHash("\x19TRON Signed Message:\n", p.Message), p.Signature)
	if err != nil {
		return err
	}
	if recovered != want {
		return ErrSignatureMismatch
	}
	return nil
}

// decodeTronAddress validates the checksum and returns the 20-byte account.
func decodeTronAddress(address string) (common.Address, error) {
	if len(address) != 34 || address[0] != 'T' {
		return common.Address{}, ErrInvalidAddress
	}
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 25 || raw[0] != tronAddressPrefix {
		return common.Address{}, ErrInvalidAddress
	}
	payload, checksum := raw[:21], raw[21:]
	if !bytes.Equal(tronChecksum(payload), checksum) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.BytesToAddress(payload[1:]), nil
}

func tronChecksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// EncodeTronAddress renders a 20-byte account as a base58check T-address.
func EncodeTronAddress(account common.Address) string {
	payload := append([]byte{tronAddressPrefix}, account.Bytes()...)
	return base58.Encode(append(payload, tronChecksum(payload)...))
}
