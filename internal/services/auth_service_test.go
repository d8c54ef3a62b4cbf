package services

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"emi-service/internal/apperr"
	"emi-service/internal/auth"
	"emi-service/internal/mocks"
	"emi-service/internal/models"
	"emi-service/internal/wallet"
)

type authFixture struct {
	svc    *AuthService
	users  *mocks.UserRepositoryMock
	tokens *auth.JWTManager
	key    *ecdsa.PrivateKey
	addr   string
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	users := &mocks.UserRepositoryMock{}
	tokens := auth.NewJWTManager("test-secret", time.Hour)
	svc := NewAuthService(users, wallet.DefaultRegistry(), tokens, auth.NewMemoryNonceStore(), 10*time.Minute, nil)
	svc.now = fixedClock
	return authFixture{svc: svc, users: users, tokens: tokens, key: key, addr: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (f authFixture) sign(t *testing.T, message string) string {
	t.Helper()
	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	sig, err := crypto.Sign(hash, f.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestLoginIssuesTokenForNewWallet(t *testing.T) {
	f := newAuthFixture(t)
	lower := strings.ToLower(f.addr)
	f.users.On("UpsertWalletUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.WalletAddress == lower &&
			u.Network == models.NetworkBSC &&
			*u.Username == "user_"+lower[len(lower)-6:] &&
			strings.HasPrefix(*u.Avatar, "https://api.dicebear.com/7.x/identicon/svg?seed=")
	})).Return(models.User{ID: 9, WalletAddress: lower, Network: models.NetworkBSC}, true, nil)

	challenge, err := f.svc.GenerateMessage(context.Background(), f.addr, models.NetworkBSC)
	require.NoError(t, err)
	assert.Contains(t, challenge.Message, "Wallet: "+lower)

	res, err := f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: f.addr, Network: models.NetworkBSC, Message: challenge.Message, Signature: f.sign(t, challenge.Message),
	})
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	uid, err := f.tokens.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(9), uid)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: f.addr, Network: models.NetworkBSC, Message: challenge.Message, Signature: f.sign(t, challenge.Message),
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "challenge is single use")
	f.users.AssertNumberOfCalls(t, "UpsertWalletUser", 1)
}

func TestLoginRejectsExpiredChallenge(t *testing.T) {
	f := newAuthFixture(t)
	challenge, err := f.svc.GenerateMessage(context.Background(), f.addr, models.NetworkEthereum)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return fixedNow.Add(11 * time.Minute) }
	_, err = f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: f.addr, Network: models.NetworkEthereum, Message: challenge.Message, Signature: f.sign(t, challenge.Message),
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	f.users.AssertNotCalled(t, "UpsertWalletUser", mock.Anything, mock.Anything)
}

func TestLoginRejectsForeignSignature(t *testing.T) {
	f := newAuthFixture(t)
	other := newAuthFixture(t)
	challenge, err := f.svc.GenerateMessage(context.Background(), f.addr, models.NetworkBSC)
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: f.addr, Network: models.NetworkBSC, Message: challenge.Message, Signature: other.sign(t, challenge.Message),
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: other.addr, Network: models.NetworkBSC, Message: challenge.Message, Signature: other.sign(t, challenge.Message),
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "message issued for a different wallet")
}

func TestLoginCannotSpendAnotherWalletsNonce(t *testing.T) {
	f := newAuthFixture(t)
	attacker := newAuthFixture(t)
	attacker.svc = f.svc
	lower := strings.ToLower(f.addr)
	f.users.On("UpsertWalletUser", mock.Anything, mock.Anything).
		Return(models.User{ID: 9, WalletAddress: lower, Network: models.NetworkBSC}, false, nil)

	challenge, err := f.svc.GenerateMessage(context.Background(), f.addr, models.NetworkBSC)
	require.NoError(t, err)

	stolen := strings.Replace(challenge.Message, "Wallet: "+lower, "Wallet: "+strings.ToLower(attacker.addr), 1)
	_, err = f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: attacker.addr, Network: models.NetworkBSC, Message: stolen, Signature: attacker.sign(t, stolen),
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	f.users.AssertNotCalled(t, "UpsertWalletUser", mock.Anything, mock.Anything)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		WalletAddress: f.addr, Network: models.NetworkBSC, Message: challenge.Message, Signature: f.sign(t, challenge.Message),
	})
	require.NoError(t, err, "owner can still use the challenge")
}

func TestLoginValidatesInput(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Login(context.Background(), LoginRequest{WalletAddress: f.addr, Network: "DOGE", Message: "m", Signature: "s"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Login(context.Background(), LoginRequest{WalletAddress: "nope", Network: models.NetworkBSC, Message: "m", Signature: "s"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Login(context.Background(), LoginRequest{WalletAddress: f.addr, Network: models.NetworkBSC, Message: "hello", Signature: "0x00"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.GenerateMessage(context.Background(), "nope", models.NetworkTron)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestLogoutAndMe(t *testing.T) {
	f := newAuthFixture(t)
	f.users.On("SetOffline", mock.Anything, int64(9)).Return(nil)
	f.users.On("GetUser", mock.Anything, int64(9)).Return(models.User{ID: 9}, nil)

	assert.NoError(t, f.svc.Logout(context.Background(), 9))
	user, err := f.svc.Me(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)
}

func TestDefaultUsername(t *testing.T) {
	assert.Equal(t, "user_abcdef", DefaultUsername("0x12345678ABCDEF"))
	assert.Equal(t, "user_abc", DefaultUsername("abc"))
}
