package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"emi-service/internal/models"
)

// TONVerifier checks ed25519 signatures over the raw challenge. TON
// addresses hash the wallet contract rather than the key, so the caller
// supplies the public key alongside the proof.
type TONVerifier struct{}

func (TONVerifier) Network() models.Network { return models.NetworkTON }

// NormalizeAddress accepts the 48-character user-friendly form (EQ.. or
// UQ..) with a valid CRC16 tag.
func (TONVerifier) NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) != 48 || !(strings.HasPrefix(address, "EQ") || strings.HasPrefix(address, "UQ")) {
		return "", ErrInvalidAddress
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.NewReplacer("+", "-", "/", "_").Replace(address))
	if err != nil || len(raw) != 36 {
		return "", ErrInvalidAddress
	}
	sum := crc16(raw[:34])
	if raw[34] != byte(sum>>8) || raw[35] != byte(sum) {
		return "", ErrInvalidAddress
	}
	return address, nil
}

func (v TONVerifier) Verify(p Proof) error {
	if _, err := v.NormalizeAddress(p.Address); err != nil {
		return err
	}
	pub, err := decodeBytes(p.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	sig, err := decodeBytes(p.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(p.Message), sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// decodeBytes accepts hex (optionally 0x-prefixed) or standard base64.
func decodeBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// crc16 is CRC-16/XMODEM as used by TON user-friendly addresses.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
