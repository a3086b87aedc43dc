package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrNonceNotFound    = fmt.Errorf("%w: not found", ErrInvalidNonce)
	ErrNonceExpired     = fmt.Errorf("%w: expired", ErrInvalidNonce)
	ErrNonceAlreadyUsed = fmt.Errorf("%w: already used", ErrInvalidNonce)

	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrInvalidAddress    = errors.New("invalid wallet address")

	ErrUnknownUser          = errors.New("unknown user")
	ErrUnknownPass          = errors.New("unknown pass")
	ErrVerificationFailed   = errors.New("verification failed")
	ErrChainUnavailable     = errors.New("chain unavailable")
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	ErrTaskStateConflict = errors.New("task state conflict")
	ErrNotStarted        = fmt.Errorf("%w: not started", ErrTaskStateConflict)
	ErrAlreadyCompleted  = fmt.Errorf("%w: already completed", ErrTaskStateConflict)
	ErrProfileIncomplete = errors.New("profile incomplete")

	ErrPassRequired = errors.New("pass required")
)
