package pixgrid

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

var (
	ErrInvalidInput      = errors.New("pixgrid: invalid input")
	ErrDimensionMismatch = errors.New("pixgrid: dimension mismatch")
)

// bytes per pixel: r, g, b uint8 = 3
const bpp = 3

type Grid struct {
	// Pix holds the grid's pixels in row-major order. The pixel at
	// (x, y) starts at Pix[(y*Width + x)*3].
	Pix    []uint8
	Width  int
	Height int
}

var _ image.Image = &Grid{}

// New returns a black grid of the given size.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: grid size %dx%d", ErrInvalidInput, width, height)
	}
	if width > math.MaxInt/bpp/height {
		return nil, fmt.Errorf("%w: grid size %dx%d overflows", ErrInvalidInput, width, height)
	}

	return &Grid{
		Pix:    make([]uint8, width*height*bpp),
		Width:  width,
		Height: height,
	}, nil
}

// FromRows builds a grid from a rectangular slice of rows.
func FromRows(rows [][]RGB) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidInput)
	}

	g, err := New(len(rows[0]), len(rows))
	if err != nil {
		return nil, err
	}

	for y, row := range rows {
		if len(row) != g.Width {
			return nil, fmt.Errorf("%w: row %d has %d pixels, expected %d", ErrInvalidInput, y, len(row), g.Width)
		}
		for x, c := range row {
			g.SetRGB(x, y, c)
		}
	}

	return g, nil
}

// FromImage converts img to a grid. Alpha is discarded and grayscale
// sources end up with three identical channels.
func FromImage(img image.Image) (*Grid, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidInput)
	}

	sr := img.Bounds()
	g, err := New(sr.Dx(), sr.Dy())
	if err != nil {
		return nil, err
	}

	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(sr)
		draw.Draw(src, sr, img, sr.Min, draw.Src)
	}

	for y := range g.Height {
		row := src.Pix[src.PixOffset(sr.Min.X, sr.Min.Y+y):]
		dst := g.Row(y)
		for x := range g.Width {
			copy(dst[x*bpp:x*bpp+bpp], row[x*4:x*4+bpp])
		}
	}

	return g, nil
}

// Validate reports whether g is a well formed, non-empty grid.
func (g *Grid) Validate() error {
	switch {
	case g == nil:
		return fmt.Errorf("%w: nil grid", ErrInvalidInput)
	case g.Width <= 0 || g.Height <= 0:
		return fmt.Errorf("%w: grid size %dx%d", ErrInvalidInput, g.Width, g.Height)
	case g.Width > math.MaxInt/bpp/g.Height:
		return fmt.Errorf("%w: grid size %dx%d overflows", ErrInvalidInput, g.Width, g.Height)
	case len(g.Pix) != g.Width*g.Height*bpp:
		return fmt.Errorf("%w: %d bytes of pixel data for %dx%d grid", ErrInvalidInput, len(g.Pix), g.Width, g.Height)
	}
	return nil
}

// Len returns the number of pixels.
func (g *Grid) Len() int {
	return g.Width * g.Height
}

func (g *Grid) SameSize(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Index returns the pixel at linear index k = y*Width + x.
func (g *Grid) Index(k int) RGB {
	p := g.Pix[k*bpp : k*bpp+bpp]
	return RGB{R: p[0], G: p[1], B: p[2]}
}

func (g *Grid) SetIndex(k int, c RGB) {
	p := g.Pix[k*bpp : k*bpp+bpp]
	p[0], p[1], p[2] = c.R, c.G, c.B
}

func (g *Grid) RGBAt(x, y int) RGB {
	return g.Index(y*g.Width + x)
}

func (g *Grid) SetRGB(x, y int, c RGB) {
	g.SetIndex(y*g.Width+x, c)
}

// Row returns the raw bytes of row y, sharing g's storage.
func (g *Grid) Row(y int) []uint8 {
	stride := g.Width * bpp
	return g.Pix[y*stride : (y+1)*stride]
}

func (g *Grid) Clone() *Grid {
	return &Grid{
		Pix:    bytes.Clone(g.Pix),
		Width:  g.Width,
		Height: g.Height,
	}
}

func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.SameSize(o) && bytes.Equal(g.Pix, o.Pix)
}

func (g *Grid) ColorModel() color.Model {
	return RGBModel
}

func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

func (g *Grid) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(g.Bounds())) {
		return RGB{}
	}
	return g.RGBAt(x, y)
}

// RGBA returns an opaque copy of g that the standard encoders handle
// without going through the generic color path.
func (g *Grid) RGBA() *image.RGBA {
	img := image.NewRGBA(g.Bounds())
	for k := range g.Len() {
		copy(img.Pix[k*4:k*4+bpp], g.Pix[k*bpp:k*bpp+bpp])
		img.Pix[k*4+3] = 0xFF
	}
	return img
}
