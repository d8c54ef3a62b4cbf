package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedChallenge = errors.New("malformed auth message")
	ErrChallengeExpired   = errors.New("message expired or invalid")
)

// Challenge is the message a wallet signs to log in.
type Challenge struct {
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

// ParsedChallenge holds the fields recovered from a signed message.
type ParsedChallenge struct {
	Wallet    string
	Nonce     string
	Timestamp time.Time
}

// NewChallenge builds a login message for wallet issued at now.
func NewChallenge(wallet string, now time.Time, validity time.Duration) (Challenge, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)
	ts := now.Unix()
	msg := fmt.Sprintf("Welcome to EMI!\n\n"+
		"Please sign this message to authenticate.\n\n"+
		"Wallet: %s\n"+
		"Nonce: %s\n"+
		"Timestamp: %d\n\n"+
		"This request will expire in %d minutes.",
		wallet, nonce, ts, int(validity.Minutes()))
	return Challenge{Message: msg, Nonce: nonce, Timestamp: ts}, nil
}

// ParseChallenge extracts the Wallet, Nonce and Timestamp lines.
func ParseChallenge(message string) (ParsedChallenge, error) {
	var p ParsedChallenge
	var haveTS bool
	for _, line := range strings.Split(message, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Wallet":
			p.Wallet = value
		case "Nonce":
			p.Nonce = value
		case "Timestamp":
			sec, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ParsedChallenge{}, ErrMalformedChallenge
			}
			p.Timestamp = time.Unix(sec, 0)
			haveTS = true
		}
	}
	if !haveTS || p.Wallet == "" || p.Nonce == "" {
		return ParsedChallenge{}, ErrMalformedChallenge
	}
	return p, nil
}

// Fresh reports whether the challenge was issued within validity of now.
// Timestamps in the future are rejected.
func (p ParsedChallenge) Fresh(now time.Time, validity time.Duration) bool {
	age := now.Sub(p.Timestamp)
	return age >= -time.Minute && age <= validity
}
