package permute

import (
	"errors"
	"fmt"
	"slices"

	"picveil/pixgrid"
)

var (
	ErrMissingKey = errors.New("permute: missing key")
	ErrInvalidKey = errors.New("permute: invalid key")
)

// Key is a bijection over the linear pixel indices of a Width x Height
// grid: the pixel at source index k moves to Order[k].
type Key struct {
	Width  int
	Height int
	Order  []int
}

// NewKey wraps order as a key for a width x height grid, checking that it
// is a permutation of 0..width*height-1.
func NewKey(width, height int, order []int) (*Key, error) {
	k := &Key{
		Width:  width,
		Height: height,
		Order:  order,
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Key) Len() int {
	return len(k.Order)
}

func (k *Key) Validate() error {
	if k == nil {
		return ErrMissingKey
	}
	if k.Width <= 0 || k.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidKey, k.Width, k.Height)
	}

	n := k.Width * k.Height
	if n/k.Height != k.Width || len(k.Order) != n {
		return fmt.Errorf("%w: %d entries for %dx%d grid", ErrInvalidKey, len(k.Order), k.Width, k.Height)
	}

	seen := make([]bool, n)
	for i, v := range k.Order {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: entry %d out of range: %d", ErrInvalidKey, i, v)
		}
		if seen[v] {
			return fmt.Errorf("%w: duplicate destination %d at entry %d", ErrInvalidKey, v, i)
		}
		seen[v] = true
	}

	return nil
}

// Inverse returns Q with Q[Order[k]] = k.
func (k *Key) Inverse() []int {
	inv := make([]int, len(k.Order))
	for src, dst := range k.Order {
		inv[dst] = src
	}
	return inv
}

func (k *Key) Clone() *Key {
	return &Key{
		Width:  k.Width,
		Height: k.Height,
		Order:  slices.Clone(k.Order),
	}
}

func (k *Key) check(g *pixgrid.Grid) error {
	if k == nil {
		return ErrMissingKey
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if k.Width != g.Width || k.Height != g.Height {
		return fmt.Errorf("%w: key for %dx%d grid, got %dx%d", pixgrid.ErrDimensionMismatch,
			k.Width, k.Height, g.Width, g.Height)
	}
	return k.Validate()
}
