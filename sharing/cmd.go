package sharing

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"picveil/imageio"
	"picveil/manifest"
	"picveil/parallel"
	"picveil/pixgrid"
	"picveil/share"
)

type CLICmd struct {
	Split       SplitCmd       `cmd:"" help:"Spread the rows of an image across share images"`
	Reconstruct ReconstructCmd `cmd:"" help:"Rebuild an image from its shares by polynomial interpolation"`
}

type SplitCmd struct {
	In        string `help:"Secret image" required:""`
	Dest      string `help:"Destination folder for the shares and their manifest" default:"shares"`
	Shares    int    `help:"Number of shares" default:"4"`
	Threshold int    `help:"Threshold recorded in the manifest, not enforced by reconstruction" default:"3"`
	Format    string `help:"Output format of the shares" enum:"png,bmp,tiff" default:"png"`
	Force     bool   `help:"Overwrite existing share files" default:"false"`
}

type ReconstructCmd struct {
	Manifest string   `help:"Share set manifest written by split, defaults to shares/shares.yaml" xor:"source"`
	Share    []string `help:"Share images in share order, instead of a manifest" sep:"none" xor:"source"`
	Out      string   `help:"Destination for the reconstructed image" default:"reconstructed_secret.png"`
	X        float64  `help:"Abscissa at which the fitted polynomials are evaluated" default:"0"`
	Force    bool     `help:"Overwrite an existing destination file" default:"false"`

	paths  []string           `kong:"-"`
	config share.Config       `kong:"-"`
	set    *manifest.Manifest `kong:"-"`
	format string             `kong:"-"`
}

func (c *SplitCmd) Validate() error {
	var err error
	if c.In, err = filepath.Abs(c.In); err != nil {
		return fmt.Errorf("invalid secret path %q: %w", c.In, err)
	}
	if info, err := os.Stat(c.In); err != nil {
		return fmt.Errorf("invalid secret image %q: %w", c.In, err)
	} else if !info.Mode().IsRegular() {
		return fmt.Errorf("invalid secret image %q: not a regular file", c.In)
	}

	if c.Dest, err = filepath.Abs(c.Dest); err != nil {
		return fmt.Errorf("invalid destination %q: %w", c.Dest, err)
	}

	return share.Config{Threshold: c.Threshold, Shares: c.Shares}.Validate()
}

func (c *SplitCmd) Run(worker parallel.WorkerFunc, wait parallel.WaitFunc) error {
	logger := slog.Default().With("file", c.In)

	secret, imgType, err := imageio.Load(c.In)
	if err != nil {
		return err
	}
	logger.Info("loaded secret", "format", imgType, "width", secret.Width, "height", secret.Height)

	config := share.Config{Threshold: c.Threshold, Shares: c.Shares}
	shares, err := config.Split(secret)
	if err != nil {
		return fmt.Errorf("could not split %q: %w", c.In, err)
	}

	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	set := manifest.New(secret.Width, secret.Height, c.Shares, c.Threshold, c.Format)
	for i, path := range set.Paths(c.Dest) {
		worker(func() error {
			if err := imageio.Save(shares[i], c.Format, path, c.Force); err != nil {
				logger.Error("could not save share", "share", i+1, "to", path, "error", err)
				return fmt.Errorf("share %d: %w", i+1, err)
			}
			logger.Debug("saved share", "share", i+1, "to", path)
			return nil
		})
	}

	if err := wait(); err != nil {
		return fmt.Errorf("could not save shares: %w", err)
	}

	manifestPath := filepath.Join(c.Dest, manifest.FileName)
	if err := set.Save(manifestPath, c.Force); err != nil {
		return err
	}

	logger.Info("image split into shares", "id", set.ID, "shares", c.Shares, "threshold", c.Threshold,
		"manifest", manifestPath)
	return nil
}

func (c *ReconstructCmd) Validate() error {
	var err error
	switch {
	case len(c.Share) > 0:
		c.paths = make([]string, len(c.Share))
		for i, s := range c.Share {
			if c.paths[i], err = filepath.Abs(s); err != nil {
				return fmt.Errorf("invalid share path %q: %w", s, err)
			}
		}
		// the threshold is not enforced, every given share takes part
		c.config = share.Config{Threshold: 1, Shares: len(c.paths)}
	default:
		if c.Manifest == "" {
			c.Manifest = filepath.Join("shares", manifest.FileName)
		}
		if c.Manifest, err = filepath.Abs(c.Manifest); err != nil {
			return fmt.Errorf("invalid manifest path %q: %w", c.Manifest, err)
		}
		if c.set, err = manifest.Load(c.Manifest); err != nil {
			return err
		}
		c.paths = c.set.Paths(filepath.Dir(c.Manifest))
		c.config = share.Config{Threshold: c.set.Threshold, Shares: c.set.Shares}
	}

	if len(c.paths) < share.Degree+1 {
		return fmt.Errorf("%w: reconstruction needs at least %d shares, got %d", share.ErrInsufficientShares,
			share.Degree+1, len(c.paths))
	}

	if c.Out, err = filepath.Abs(c.Out); err != nil {
		return fmt.Errorf("invalid destination %q: %w", c.Out, err)
	}
	if c.format, err = imageio.FormatFor(c.Out); err != nil {
		return err
	}

	return nil
}

func (c *ReconstructCmd) Run(worker parallel.WorkerFunc, wait parallel.WaitFunc) error {
	grids := make([]*pixgrid.Grid, len(c.paths))
	for i, path := range c.paths {
		worker(func() error {
			g, imgType, err := imageio.Load(path)
			if err != nil {
				slog.Error("could not load share", "share", i+1, "file", path, "error", err)
				return err
			}
			slog.Debug("loaded share", "share", i+1, "file", path, "format", imgType)
			grids[i] = g
			return nil
		})
	}

	if err := wait(); err != nil {
		return fmt.Errorf("could not load shares: %w", err)
	}

	if c.set != nil {
		for i, g := range grids {
			if g.Width != c.set.Width || g.Height != c.set.Height {
				return fmt.Errorf("%w: share %d is %dx%d, manifest %s expects %dx%d", pixgrid.ErrDimensionMismatch,
					i+1, g.Width, g.Height, c.set.ID, c.set.Width, c.set.Height)
			}
		}
	}

	secret, err := c.config.Reconstruct(grids, c.X)
	if err != nil {
		if errors.Is(err, pixgrid.ErrDimensionMismatch) {
			return fmt.Errorf("shares do not belong to the same set: %w", err)
		}
		return fmt.Errorf("could not reconstruct: %w", err)
	}

	if err := imageio.Save(secret, c.format, c.Out, c.Force); err != nil {
		return fmt.Errorf("could not save reconstructed image: %w", err)
	}
	slog.Info("secret reconstructed from shares", "shares", len(grids), "x", c.X, "to", c.Out)

	return nil
}
