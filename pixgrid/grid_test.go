package pixgrid

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = RGB{R: 255}
	green = RGB{G: 255}
	blue  = RGB{B: 255}
	white = RGB{R: 255, G: 255, B: 255}
)

func TestNew_InvalidSizes(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 3},
		{"zero height", 3, 0},
		{"negative", -1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.width, tt.height)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestNew_IsBlack(t *testing.T) {
	g, err := New(3, 2)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, 6, g.Len())
	for k := range g.Len() {
		assert.Equal(t, RGB{}, g.Index(k))
	}
}

func TestFromRows(t *testing.T) {
	g, err := FromRows([][]RGB{{red, green}, {blue, white}})
	require.NoError(t, err)

	assert.Equal(t, 2, g.Width)
	assert.Equal(t, 2, g.Height)
	assert.Equal(t, red, g.Index(0))
	assert.Equal(t, green, g.Index(1))
	assert.Equal(t, blue, g.RGBAt(0, 1))
	assert.Equal(t, white, g.RGBAt(1, 1))
}

func TestFromRows_Ragged(t *testing.T) {
	_, err := FromRows([][]RGB{{red, green}, {blue}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FromRows(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	var nilGrid *Grid
	assert.ErrorIs(t, nilGrid.Validate(), ErrInvalidInput)

	short := &Grid{Pix: make([]uint8, 5), Width: 2, Height: 1}
	assert.ErrorIs(t, short.Validate(), ErrInvalidInput)

	empty := &Grid{}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidInput)
}

func TestFromImage_GrayExpandsChannels(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 17})
	src.SetGray(1, 0, color.Gray{Y: 200})

	g, err := FromImage(src)
	require.NoError(t, err)

	assert.Equal(t, RGB{17, 17, 17}, g.RGBAt(0, 0))
	assert.Equal(t, RGB{200, 200, 200}, g.RGBAt(1, 0))
}

func TestFromImage_OffsetBoundsAndAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	src.SetNRGBA(5, 5, color.NRGBA{R: 10, G: 20, B: 30, A: 0xFF})
	src.SetNRGBA(6, 5, color.NRGBA{R: 40, G: 50, B: 60, A: 0x10})

	g, err := FromImage(src)
	require.NoError(t, err)

	require.Equal(t, 2, g.Width)
	require.Equal(t, 1, g.Height)
	assert.Equal(t, RGB{10, 20, 30}, g.RGBAt(0, 0))
	assert.Equal(t, RGB{40, 50, 60}, g.RGBAt(1, 0))
}

func TestFromImage_Empty(t *testing.T) {
	_, err := FromImage(image.NewRGBA(image.Rect(0, 0, 0, 4)))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FromImage(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGrid_ImageRoundTrip(t *testing.T) {
	g, err := FromRows([][]RGB{{red, green, blue}, {white, {1, 2, 3}, {4, 5, 6}}})
	require.NoError(t, err)

	back, err := FromImage(g.RGBA())
	require.NoError(t, err)
	assert.True(t, g.Equal(back))

	viaInterface, err := FromImage(g)
	require.NoError(t, err)
	assert.True(t, g.Equal(viaInterface))
}

func TestGrid_At(t *testing.T) {
	g, err := FromRows([][]RGB{{red}})
	require.NoError(t, err)

	assert.Equal(t, red, g.At(0, 0))
	assert.Equal(t, RGB{}, g.At(1, 0))
	assert.Equal(t, image.Rect(0, 0, 1, 1), g.Bounds())

	r, gr, b, a := RGB{R: 0x12, G: 0x34, B: 0x56}.RGBA()
	assert.Equal(t, []uint32{0x1212, 0x3434, 0x5656, 0xFFFF}, []uint32{r, gr, b, a})
}

func TestGrid_CloneAndEqual(t *testing.T) {
	g, err := FromRows([][]RGB{{red, green}})
	require.NoError(t, err)

	c := g.Clone()
	assert.True(t, g.Equal(c))

	c.SetIndex(0, blue)
	assert.False(t, g.Equal(c))
	assert.Equal(t, red, g.Index(0))

	other, err := New(1, 2)
	require.NoError(t, err)
	assert.False(t, g.Equal(other))
}

func TestGrid_Row(t *testing.T) {
	g, err := FromRows([][]RGB{{red, green}, {blue, white}})
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 0, 255, 255, 255, 255}, g.Row(1))
}
