package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"emi-service/internal/apperr"
	"emi-service/internal/auth"
	"emi-service/internal/models"
	"emi-service/internal/observability"
	"emi-service/internal/repositories"
	"emi-service/internal/telemetry"
	"emi-service/internal/wallet"
)

const userEvents = "domain_events.users"

// WalletVerifier checks addresses and signatures per network.
type WalletVerifier interface {
	NormalizeAddress(network models.Network, address string) (string, error)
	Verify(network models.Network, proof wallet.Proof) error
}

type LoginRequest struct {
	WalletAddress string         `json:"wallet_address"`
	Network       models.Network `json:"network"`
	Signature     string         `json:"signature"`
	Message       string         `json:"message"`
	PublicKey     string         `json:"public_key,omitempty"`
}

type LoginResult struct {
	User        models.User `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
}

// AuthService turns signed wallet challenges into access tokens.
type AuthService struct {
	users    repositories.UserRepository
	wallets  WalletVerifier
	tokens   auth.TokenIssuer
	nonces   auth.NonceStore
	validity time.Duration
	notify   notifier
	now      func() time.Time
}

func NewAuthService(users repositories.UserRepository, wallets WalletVerifier, tokens auth.TokenIssuer, nonces auth.NonceStore, validity time.Duration, audit *telemetry.AuditEmitter) *AuthService {
	return &AuthService{
		users:    users,
		wallets:  wallets,
		tokens:   tokens,
		nonces:   nonces,
		validity: validity,
		notify:   notifier{audit: audit},
		now:      utcNow,
	}
}

// GenerateMessage issues a single-use login challenge for the wallet.
func (s *AuthService) GenerateMessage(ctx context.Context, walletAddress string, network models.Network) (auth.Challenge, error) {
	if !network.Valid() {
		return auth.Challenge{}, apperr.InvalidInput("unsupported network")
	}
	address, err := s.wallets.NormalizeAddress(network, walletAddress)
	if err != nil {
		return auth.Challenge{}, apperr.InvalidInput("invalid wallet address")
	}

	challenge, err := auth.NewChallenge(address, s.now(), s.validity)
	if err != nil {
		return auth.Challenge{}, apperr.Internal("build challenge", err)
	}
	if err := s.nonces.Put(ctx, address, challenge.Nonce, s.validity); err != nil {
		return auth.Challenge{}, apperr.Internal("store nonce", err)
	}
	return challenge, nil
}

// Login verifies a signed challenge, creates the user on first sight and
// issues an access token. Each challenge can be used once.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (result LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "rejected"
		}
		observability.IncLogin(string(req.Network), outcome)
		finish(span, err)
	}()

	if !req.Network.Valid() {
		return LoginResult{}, apperr.InvalidInput("unsupported network")
	}
	if req.Signature == "" || req.Message == "" {
		return LoginResult{}, apperr.InvalidInput("signature and message required")
	}
	address, err := s.wallets.NormalizeAddress(req.Network, req.WalletAddress)
	if err != nil {
		return LoginResult{}, apperr.InvalidInput("invalid wallet address")
	}

	challenge, err := auth.ParseChallenge(req.Message)
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid auth message")
	}
	signed, err := s.wallets.NormalizeAddress(req.Network, challenge.Wallet)
	if err != nil || signed != address {
		return LoginResult{}, apperr.Unauthorized("auth message was issued for another wallet")
	}
	if !challenge.Fresh(s.now(), s.validity) {
		return LoginResult{}, apperr.Unauthorized(auth.ErrChallengeExpired.Error())
	}

	err = s.wallets.Verify(req.Network, wallet.Proof{
		Address:   address,
		Message:   req.Message,
		Signature: req.Signature,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		if !errors.Is(err, wallet.ErrSignatureMismatch) && !errors.Is(err, wallet.ErrInvalidSignature) {
			log.Warn().Err(err).Str("network", string(req.Network)).Msg("wallet verification failed")
		}
		return LoginResult{}, apperr.Unauthorized("invalid signature")
	}

	fresh, err := s.nonces.Consume(ctx, address, challenge.Nonce)
	if err != nil {
		return LoginResult{}, apperr.Internal("consume nonce", err)
	}
	if !fresh {
		return LoginResult{}, apperr.Unauthorized(auth.ErrChallengeExpired.Error())
	}

	username := DefaultUsername(address)
	avatar := DefaultAvatar(address)
	user, created, err := s.users.UpsertWalletUser(ctx, models.User{
		WalletAddress: address,
		Network:       req.Network,
		Username:      &username,
		Avatar:        &avatar,
	})
	if err != nil {
		return LoginResult{}, storeErr("upsert user", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, apperr.Internal("issue token", err)
	}

	if created {
		s.notify.record(ctx, user.ID, "user registered", userEvents, "user_registered", map[string]interface{}{
			"user_id": user.ID,
			"network": user.Network,
		})
	} else {
		s.notify.audit.Emit(ctx, "INFO", "user logged in", observability.RequestIDFromContext(ctx), user.ID)
	}
	return LoginResult{User: user, AccessToken: token, TokenType: "bearer"}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if err := s.users.SetOffline(ctx, userID); err != nil {
		return storeErr("logout", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, storeErr("load user", err)
	}
	return user, nil
}

// DefaultUsername is user_ followed by the last six address characters.
func DefaultUsername(address string) string {
	if len(address) > 6 {
		address = address[len(address)-6:]
	}
	return "user_" + strings.ToLower(address)
}

func DefaultAvatar(address string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/identicon/svg?seed=%s", url.QueryEscape(address))
}
