package cryptoutils

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

// SplitSecret splits a secret key into n shares of which threshold are
// required to reconstruct it. Clients call this before distribute; the server
// only ever sees the resulting shares sealed to guardian keys.
func SplitSecret(secret []byte, n, threshold int) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	if n < threshold {
		return nil, errors.New("share count must be at least equal to threshold")
	}

	shares, err := shamir.Split(secret, n, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}
	return shares, nil
}

// CombineShares reconstructs the secret from at least threshold shares.
func CombineShares(shares [][]byte) ([]byte, error) {
	if len(shares) < 2 {
		return nil, errors.New("at least two shares are required")
	}

	secret, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	return secret, nil
}
