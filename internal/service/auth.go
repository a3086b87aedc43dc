package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"

	"github.com/google/uuid"
)

const (
	referralCodeLength   = 10
	referralCodeAttempts = 5
)

// LoginRequest is a signed answer to a login challenge.
type LoginRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
	ReferralCode  string `json:"referralCode"`
}

type LoginResult struct {
	TokenPair
	IsNewUser bool         `json:"isNewUser"`
	User      *domain.User `json:"-"`
}

// AuthService runs wallet login: nonce challenge, signature check, account
// creation and the daily login bonus.
type AuthService struct {
	store  repository.Store
	nonces *NonceService
	tokens *TokenIssuer
	points *PointsEngine
	audit  *AuditService
	log    *slog.Logger
	now    func() time.Time
}

func NewAuthService(store repository.Store, nonces *NonceService, tokens *TokenIssuer, points *PointsEngine, audit *AuditService, log *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		nonces: nonces,
		tokens: tokens,
		points: points,
		audit:  audit,
		log:    log,
		now:    time.Now,
	}
}

// BeginLogin issues a nonce and the message the wallet must sign.
func (s *AuthService) BeginLogin(ctx context.Context) (nonce, message string, err error) {
	return s.nonces.Issue(ctx)
}

// CompleteLogin checks the signature over a live nonce, consumes the nonce and
// returns a session for the wallet, creating the account on first login. A
// wrong signature leaves the nonce usable.
func (s *AuthService) CompleteLogin(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	wallet, err := chain.ChecksumAddress(req.WalletAddress)
	if err != nil {
		return nil, err
	}

	if err := s.nonces.Check(ctx, req.Nonce); err != nil {
		return nil, err
	}
	if err := chain.VerifySignature(wallet, LoginMessage(req.Nonce), req.Signature); err != nil {
		return nil, err
	}
	// a concurrent login with the same nonce may have won since Check
	if err := s.nonces.Consume(ctx, req.Nonce); err != nil {
		return nil, err
	}

	user, isNew, err := s.findOrCreate(ctx, wallet, req.ReferralCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, _, err := s.points.ClaimLoginBonus(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("login bonus: %w", err)
	}
	if err := s.store.TouchUser(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to touch user", "user_id", user.ID, "error", err)
	}
	s.audit.LogLogin(ctx, user.ID, wallet, isNew)

	tokens, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &LoginResult{TokenPair: tokens, IsNewUser: isNew, User: user}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnknownUser
		}
		return "", err
	}
	pair, err := s.tokens.Issue(userID)
	if err != nil {
		return "", err
	}
	return pair.Access, nil
}

func (s *AuthService) findOrCreate(ctx context.Context, wallet, referralCode string) (*domain.User, bool, error) {
	u, err := s.store.GetUserByWallet(ctx, wallet)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	var referredBy *int64
	if code := strings.TrimSpace(referralCode); code != "" {
		id, err := s.store.GetUserIDByReferralCode(ctx, code)
		switch {
		case err == nil:
			referredBy = &id
		case errors.Is(err, domain.ErrNotFound):
			s.log.Info("ignoring unknown referral code", "code", code)
		default:
			return nil, false, err
		}
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		u = &domain.User{WalletAddress: wallet}
		p := &domain.Profile{ReferralCode: newReferralCode(), ReferredBy: referredBy}

		err = s.store.CreateUser(ctx, u, p)
		switch {
		case err == nil:
			s.log.Info("user registered", "user_id", u.ID, "wallet", wallet, "referred_by", referredBy)
			return u, true, nil
		case errors.Is(err, repository.ErrReferralCodeTaken):
			continue
		case errors.Is(err, repository.ErrWalletTaken):
			// lost a race with a concurrent first login
			u, err = s.store.GetUserByWallet(ctx, wallet)
			if err != nil {
				return nil, false, err
			}
			return u, false, nil
		default:
			return nil, false, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, false, fmt.Errorf("create user: %w", err)
}

func newReferralCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:referralCodeLength])
}
