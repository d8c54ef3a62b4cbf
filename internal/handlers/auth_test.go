package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"emi-service/internal/auth"
	"emi-service/internal/middleware"
	"emi-service/internal/mocks"
	"emi-service/internal/models"
	"emi-service/internal/services"
	"emi-service/internal/wallet"
)

func TestWalletLoginFlow(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	tokens := auth.NewJWTManager("secret", time.Hour)
	svc := services.NewAuthService(users, wallet.DefaultRegistry(), tokens, auth.NewMemoryNonceStore(), 10*time.Minute, nil)
	handler := NewAuthHandler(svc)

	r := newTestRouter()
	r.POST("/auth/generate-message", handler.GenerateMessage)
	r.POST("/auth/login", handler.Login)
	protected := r.Group("/", middleware.AuthMiddleware(tokens))
	protected.GET("/auth/me", handler.Me)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	rec := doJSON(t, r, http.MethodPost, "/auth/generate-message", fmt.Sprintf(`{"wallet_address":%q,"network":"BSC"}`, address))
	require.Equal(t, http.StatusOK, rec.Code)
	var challenge auth.Challenge
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&challenge))

	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(challenge.Message), challenge.Message)))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	users.On("UpsertWalletUser", mock.Anything, mock.Anything).Return(models.User{ID: 42, Network: models.NetworkBSC}, true, nil).Once()
	users.On("GetUser", mock.Anything, int64(42)).Return(models.User{ID: 42, Network: models.NetworkBSC}, nil)

	login, err := json.Marshal(services.LoginRequest{
		WalletAddress: address,
		Network:       models.NetworkBSC,
		Message:       challenge.Message,
		Signature:     hexutil.Encode(sig),
	})
	require.NoError(t, err)
	rec = doJSON(t, r, http.MethodPost, "/auth/login", string(login))
	require.Equal(t, http.StatusOK, rec.Code)
	var res services.LoginResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "bearer", res.TokenType)

	req := doRequestWithToken(t, r, "/auth/me", res.AccessToken)
	require.Equal(t, http.StatusOK, req.Code)
	assert.Equal(t, float64(42), decode(t, req)["id"])

	rec = doJSON(t, r, http.MethodPost, "/auth/login", string(login))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenerateMessageRejectsBadAddress(t *testing.T) {
	svc := services.NewAuthService(new(mocks.UserRepositoryMock), wallet.DefaultRegistry(),
		auth.NewJWTManager("secret", time.Hour), auth.NewMemoryNonceStore(), 10*time.Minute, nil)
	r := newTestRouter()
	r.POST("/auth/generate-message", NewAuthHandler(svc).GenerateMessage)

	rec := doJSON(t, r, http.MethodPost, "/auth/generate-message", `{"wallet_address":"0x12","network":"BSC"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/auth/generate-message", `{"wallet_address":"0x12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
