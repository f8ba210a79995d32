// Package share splits an image row by row across a set of share images
// and rebuilds it with a per-pixel polynomial fit across the shares.
//
// This is an obfuscation scheme, not threshold secret sharing: every share
// carries its rows in the clear and the threshold is not enforced.
package share

import (
	"errors"
	"fmt"
	"math"

	"picveil/pixgrid"
)

const (
	// Degree of the polynomial fitted across shares.
	Degree = 3

	DefaultShares    = 4
	DefaultThreshold = 3
)

var ErrInsufficientShares = errors.New("share: insufficient shares")

type Config struct {
	Threshold int
	Shares    int
}

func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Shares:    DefaultShares,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Shares < 1:
		return fmt.Errorf("%w: share count %d", pixgrid.ErrInvalidInput, c.Shares)
	case c.Threshold < 1 || c.Threshold > c.Shares:
		return fmt.Errorf("%w: threshold %d for %d shares", pixgrid.ErrInvalidInput, c.Threshold, c.Shares)
	}
	return nil
}

func (c Config) Split(secret *pixgrid.Grid) ([]*pixgrid.Grid, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return Split(secret, c.Shares)
}

// Reconstruct requires exactly c.Shares shares.
func (c Config) Reconstruct(shares []*pixgrid.Grid, x float64) (*pixgrid.Grid, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch {
	case len(shares) < c.Shares:
		return nil, fmt.Errorf("%w: got %d of %d", ErrInsufficientShares, len(shares), c.Shares)
	case len(shares) > c.Shares:
		return nil, fmt.Errorf("%w: got %d shares, expected %d", pixgrid.ErrInvalidInput, len(shares), c.Shares)
	}
	return Reconstruct(shares, x)
}

// Split copies row r of secret into share r mod n. All other rows of every
// share stay black.
func Split(secret *pixgrid.Grid, n int) ([]*pixgrid.Grid, error) {
	if err := secret.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: share count %d", pixgrid.ErrInvalidInput, n)
	}

	shares := make([]*pixgrid.Grid, n)
	for i := range shares {
		s, err := pixgrid.New(secret.Width, secret.Height)
		if err != nil {
			return nil, err
		}
		shares[i] = s
	}

	for row := range secret.Height {
		copy(shares[row%n].Row(row), secret.Row(row))
	}

	return shares, nil
}

// Reconstruct fits, for every pixel and channel, a degree 3 polynomial
// through the points (i, shares[i]) and evaluates it at x. Results are
// rounded to the nearest integer and clamped to 0..255.
func Reconstruct(shares []*pixgrid.Grid, x float64) (*pixgrid.Grid, error) {
	if len(shares) < Degree+1 {
		return nil, fmt.Errorf("%w: need at least %d, got %d", ErrInsufficientShares, Degree+1, len(shares))
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, fmt.Errorf("%w: interpolation point %v", pixgrid.ErrInvalidInput, x)
	}

	first := shares[0]
	for i, s := range shares {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		if !s.SameSize(first) {
			return nil, fmt.Errorf("%w: share %d is %dx%d, share 0 is %dx%d", pixgrid.ErrDimensionMismatch,
				i, s.Width, s.Height, first.Width, first.Height)
		}
	}

	w, err := evalWeights(controlPoints(len(shares)), Degree, x)
	if err != nil {
		return nil, err
	}

	out, err := pixgrid.New(first.Width, first.Height)
	if err != nil {
		return nil, err
	}
	for p := range out.Pix {
		var v float64
		for i, s := range shares {
			v += w[i] * float64(s.Pix[p])
		}
		out.Pix[p] = clamp(v)
	}

	return out, nil
}

func controlPoints(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func clamp(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
