package chain

import (
	"fmt"
	"strings"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChecksumAddress validates a hex wallet address and returns its EIP-55 form.
func ChecksumAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// RecoverAddress returns the address that personal_sign-ed message.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrSignatureMismatch, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature length %d", domain.ErrSignatureMismatch, len(sig))
	}
	// wallets emit V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrSignatureMismatch, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that wallet produced signature over message.
func VerifySignature(wallet, message, signature string) error {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered.Hex(), strings.TrimSpace(wallet)) {
		return fmt.Errorf("%w: recovered %s", domain.ErrSignatureMismatch, recovered.Hex())
	}
	return nil
}
