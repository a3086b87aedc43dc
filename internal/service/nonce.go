package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

const loginMessagePrefix = "Login to Digidrop: "

// LoginMessage is the text a wallet signs to log in with nonce.
func LoginMessage(nonce string) string {
	return loginMessagePrefix + nonce
}

type NonceService struct {
	store repository.NonceQueries
	now   func() time.Time
}

func NewNonceService(store repository.NonceQueries) *NonceService {
	return &NonceService{store: store, now: time.Now}
}

// Issue stores a fresh 32-byte nonce and returns it with its login message.
func (s *NonceService) Issue(ctx context.Context) (nonce, message string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce = hex.EncodeToString(buf)

	if err := s.store.InsertNonce(ctx, &domain.LoginNonce{Nonce: nonce, CreatedAt: s.now()}); err != nil {
		return "", "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, LoginMessage(nonce), nil
}

// Check reports whether nonce could still be consumed, without using it up.
func (s *NonceService) Check(ctx context.Context, nonce string) error {
	if nonce == "" {
		return domain.ErrNonceNotFound
	}
	n, err := s.store.GetNonce(ctx, nonce)
	if err != nil {
		return err
	}
	switch {
	case n.Expired(s.now()):
		return domain.ErrNonceExpired
	case n.Used:
		return domain.ErrNonceAlreadyUsed
	}
	return nil
}

// Consume marks nonce used. It succeeds at most once per nonce.
func (s *NonceService) Consume(ctx context.Context, nonce string) error {
	if nonce == "" {
		return domain.ErrNonceNotFound
	}
	return s.store.ConsumeNonce(ctx, nonce, s.now())
}

// PurgeExpired deletes nonces past their TTL.
func (s *NonceService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteNoncesBefore(ctx, s.now().Add(-domain.NonceTTL))
}

// RunPurger calls PurgeExpired every interval until ctx is cancelled.
func (s *NonceService) RunPurger(ctx context.Context, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				log.Warn("nonce purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("purged expired nonces", "count", n)
			}
		}
	}
}
