package imageio

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"picveil/fileop"
	"picveil/pixgrid"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/vp8l"
	_ "golang.org/x/image/webp"
)

var extFormats = map[string]string{
	".png":  "png",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
	".gif":  "gif",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
}

// Lossless lists the output formats that store every RGB value exactly.
var Lossless = []string{"png", "bmp", "tiff"}

func IsLossless(format string) bool {
	for _, f := range Lossless {
		if f == format {
			return true
		}
	}
	return false
}

// FormatFor returns the output format matching the extension of name.
func FormatFor(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format for %q", name)
}

// Load decodes the image at path into a grid and returns the name of the
// format it was stored in.
func Load(path string) (*pixgrid.Grid, string, error) {
	imgFile, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open image %q: %w", path, err)
	}
	defer func() {
		if closeErr := imgFile.Close(); closeErr != nil {
			slog.Error("could not close image", "file", path, "error", closeErr)
		}
	}()

	img, imgType, err := image.Decode(imgFile)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image %q: %w", path, err)
	}

	g, err := pixgrid.FromImage(img)
	if err != nil {
		return nil, imgType, fmt.Errorf("could not convert image %q: %w", path, err)
	}
	return g, imgType, nil
}

// Save encodes g as format into path. An existing file is only replaced
// when overwrite is set.
func Save(g *pixgrid.Grid, format, path string, overwrite bool) error {
	if err := g.Validate(); err != nil {
		return err
	}

	return fileop.WriteAtomic(path, overwrite, fileop.ModePublic, func(w io.Writer) error {
		return Encode(w, g, format)
	})
}

func Encode(w io.Writer, g *pixgrid.Grid, format string) error {
	img := g.RGBA()

	switch format {
	case "gif":
		if err := gif.Encode(w, img, nil); err != nil {
			return fmt.Errorf("could not encode GIF: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 100}); err != nil {
			return fmt.Errorf("could not encode JPEG: %w", err)
		}
	case "png":
		enc := png.Encoder{
			CompressionLevel: png.BestCompression,
			BufferPool:       pngPool,
		}
		if err := enc.Encode(w, img); err != nil {
			return fmt.Errorf("could not encode PNG: %w", err)
		}
	case "bmp":
		if err := bmp.Encode(w, img); err != nil {
			return fmt.Errorf("could not encode BMP: %w", err)
		}
	case "tiff":
		if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return fmt.Errorf("could not encode TIFF: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}

	return nil
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
