// Package custody splits the data key sealing a permutation key file into
// Shamir shares, any threshold of which recover it.
package custody

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/SSSaaS/sssa-golang"
)

// sssa shares are sequences of base64 encoded (x, y) pairs of 256 bit
// numbers, 44 characters each.
const shareChunkLen = 88

var ErrInvalidShare = errors.New("custody: invalid share")

// Split divides secret into total shares where any threshold of them can
// recover it. The secret is hex encoded first since sssa trims trailing
// zero bytes on combine.
func Split(secret []byte, threshold, total int) ([]string, error) {
	switch {
	case len(secret) == 0:
		return nil, fmt.Errorf("secret cannot be empty")
	case threshold < 2:
		return nil, fmt.Errorf("threshold must be at least 2, got %d", threshold)
	case total < threshold:
		return nil, fmt.Errorf("total shares (%d) must be >= threshold (%d)", total, threshold)
	case total > 255:
		return nil, fmt.Errorf("total shares cannot exceed 255, got %d", total)
	}

	shares, err := sssa.Create(threshold, total, hex.EncodeToString(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}
	return shares, nil
}

// Combine recovers the secret from shares. With fewer shares than the
// threshold the result is garbage; callers detect that when the recovered
// key fails to open what it sealed.
func Combine(shares []string) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("no shares provided")
	}

	clean := make([]string, len(shares))
	for i, s := range shares {
		s = strings.TrimSpace(s)
		if len(s) == 0 || len(s)%shareChunkLen != 0 {
			return nil, fmt.Errorf("%w: share %d", ErrInvalidShare, i)
		}
		clean[i] = s
	}

	secretHex, err := sssa.Combine(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: combined secret is not valid: %v", ErrInvalidShare, err)
	}
	return secret, nil
}
