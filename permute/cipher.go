// Package permute scrambles the positions of the pixels in a grid with a
// random permutation key. Pixel values are left untouched.
package permute

import (
	cryptorand "crypto/rand"
	"math/rand/v2"

	"picveil/pixgrid"
)

// Cipher generates permutation keys and remembers the last one it
// generated. It is not safe for concurrent use.
type Cipher struct {
	rng  *rand.Rand
	last *Key
}

// NewCipher returns a cipher drawing keys from src. A nil src selects a
// ChaCha8 generator seeded from crypto/rand.
func NewCipher(src rand.Source) *Cipher {
	if src == nil {
		var seed [32]byte
		_, _ = cryptorand.Read(seed[:])
		src = rand.NewChaCha8(seed)
	}

	return &Cipher{
		rng: rand.New(src),
	}
}

// GenerateKey draws a uniformly random permutation for a width x height
// grid.
func (c *Cipher) GenerateKey(width, height int) *Key {
	order := make([]int, width*height)
	for i := range order {
		order[i] = i
	}
	c.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	return &Key{
		Width:  width,
		Height: height,
		Order:  order,
	}
}

// Encrypt moves every pixel of g to the position chosen by a freshly
// generated key and returns both. The key replaces any key retained from a
// previous call.
func (c *Cipher) Encrypt(g *pixgrid.Grid) (*pixgrid.Grid, *Key, error) {
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}

	key := c.GenerateKey(g.Width, g.Height)
	out, err := Apply(g, key)
	if err != nil {
		return nil, nil, err
	}

	c.last = key.Clone()
	return out, key, nil
}

// DecryptLast reverses the most recent Encrypt of this cipher.
func (c *Cipher) DecryptLast(g *pixgrid.Grid) (*pixgrid.Grid, error) {
	if c.last == nil {
		return nil, ErrMissingKey
	}
	return Decrypt(g, c.last)
}

// LastKey returns a copy of the retained key, or nil.
func (c *Cipher) LastKey() *Key {
	if c.last == nil {
		return nil
	}
	return c.last.Clone()
}

// Apply returns a new grid with out[key.Order[k]] = g[k].
func Apply(g *pixgrid.Grid, key *Key) (*pixgrid.Grid, error) {
	if err := key.check(g); err != nil {
		return nil, err
	}

	out, err := pixgrid.New(g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	for src, dst := range key.Order {
		out.SetIndex(dst, g.Index(src))
	}

	return out, nil
}

// Decrypt returns a new grid with out[Q[m]] = g[m], Q being the inverse of
// key, which restores the grid Apply was given.
func Decrypt(g *pixgrid.Grid, key *Key) (*pixgrid.Grid, error) {
	if err := key.check(g); err != nil {
		return nil, err
	}

	out, err := pixgrid.New(g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	for m, dst := range key.Inverse() {
		out.SetIndex(dst, g.Index(m))
	}

	return out, nil
}
