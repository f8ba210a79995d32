package scramble

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"picveil/custody"
	"picveil/fileop"
	"picveil/imageio"
	"picveil/keyfile"
	"picveil/permute"
)

type CLICmd struct {
	Encrypt EncryptCmd `cmd:"" help:"Scramble the pixel positions of an image with a fresh random key"`
	Decrypt DecryptCmd `cmd:"" help:"Restore a scrambled image with its key"`
}

type EncryptCmd struct {
	In               string `help:"Source image" required:""`
	Out              string `help:"Destination for the scrambled image (png, bmp or tiff)" default:"encrypted_image.png"`
	Key              string `help:"Destination for the permutation key" default:"key.pkey"`
	CustodyShares    int    `help:"Seal the key and split the sealing key into this many custody shares" default:"0" group:"custody"`
	CustodyThreshold int    `help:"Number of custody shares needed to open the key" default:"2" group:"custody"`
	Force            bool   `help:"Overwrite existing destination files" default:"false"`

	format string `kong:"-"`
}

type DecryptCmd struct {
	In      string   `help:"Scrambled image" default:"encrypted_image.png"`
	Out     string   `help:"Destination for the restored image" default:"decrypted_image.png"`
	Key     string   `help:"Permutation key" default:"key.pkey"`
	Custody []string `help:"Custody share files opening a sealed key" sep:"none" group:"custody"`
	Force   bool     `help:"Overwrite existing destination files" default:"false"`

	format string `kong:"-"`
}

func (c *EncryptCmd) Validate() error {
	var err error
	if c.In, err = absFile(c.In); err != nil {
		return fmt.Errorf("invalid source image: %w", err)
	}
	if c.Out, err = filepath.Abs(c.Out); err != nil {
		return fmt.Errorf("invalid destination %q: %w", c.Out, err)
	}
	if c.Key, err = filepath.Abs(c.Key); err != nil {
		return fmt.Errorf("invalid key path %q: %w", c.Key, err)
	}

	if c.format, err = imageio.FormatFor(c.Out); err != nil {
		return err
	} else if !imageio.IsLossless(c.format) {
		return fmt.Errorf("scrambled image must use a lossless format %v, got %s", imageio.Lossless, c.format)
	}

	if c.CustodyShares != 0 {
		switch {
		case c.CustodyThreshold < 2:
			return fmt.Errorf("invalid custody threshold: %d", c.CustodyThreshold)
		case c.CustodyShares < c.CustodyThreshold:
			return fmt.Errorf("custody shares (%d) must be >= threshold (%d)", c.CustodyShares, c.CustodyThreshold)
		}
	}

	return nil
}

func (c *EncryptCmd) Run() error {
	logger := slog.Default().With("file", c.In)

	img, imgType, err := imageio.Load(c.In)
	if err != nil {
		return err
	}
	logger.Info("loaded image", "format", imgType, "width", img.Width, "height", img.Height)

	enc, key, err := permute.NewCipher(nil).Encrypt(img)
	if err != nil {
		return fmt.Errorf("could not scramble %q: %w", c.In, err)
	}

	// nothing is committed until every output is staged
	var staged []*fileop.Staged
	defer func() {
		for _, s := range staged {
			s.Discard()
		}
	}()

	out, err := fileop.Stage(c.Out, c.Force, fileop.ModePublic, func(w io.Writer) error {
		return imageio.Encode(w, enc, c.format)
	})
	if err != nil {
		return fmt.Errorf("could not save scrambled image: %w", err)
	}
	staged = append(staged, out)

	var dataKey []byte
	if c.CustodyShares > 0 {
		if dataKey, err = keyfile.NewDataKey(); err != nil {
			return err
		}
		shares, err := c.stageCustody(dataKey)
		staged = append(staged, shares...)
		if err != nil {
			return err
		}
	}

	keyOut, err := stageKey(c.Key, key, dataKey, c.Force)
	if err != nil {
		return err
	}
	staged = append(staged, keyOut)

	for _, s := range staged {
		if err := s.Commit(); err != nil {
			return fmt.Errorf("could not save %q: %w", s.Dest(), err)
		}
		logger.Debug("saved file", "to", s.Dest())
	}

	if dataKey != nil {
		logger.Info("key sealed", "threshold", c.CustodyThreshold, "shares", c.CustodyShares)
	}
	logger.Info("saved scrambled image", "to", c.Out, "key", c.Key, "sealed", dataKey != nil)

	return nil
}

func (c *EncryptCmd) stageCustody(dataKey []byte) ([]*fileop.Staged, error) {
	shares, err := custody.Split(dataKey, c.CustodyThreshold, c.CustodyShares)
	if err != nil {
		return nil, err
	}

	staged := make([]*fileop.Staged, 0, len(shares))
	for i, s := range shares {
		name := fmt.Sprintf("%s.custody%d", c.Key, i+1)
		out, err := fileop.Stage(name, c.Force, fileop.ModePrivate, func(w io.Writer) error {
			_, err := io.WriteString(w, s+"\n")
			return err
		})
		if err != nil {
			return staged, fmt.Errorf("could not save custody share %d: %w", i+1, err)
		}
		staged = append(staged, out)
	}

	return staged, nil
}

func (c *DecryptCmd) Validate() error {
	var err error
	if c.In, err = absFile(c.In); err != nil {
		return fmt.Errorf("invalid scrambled image: %w", err)
	}
	if c.Key, err = absFile(c.Key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	for i, name := range c.Custody {
		if c.Custody[i], err = absFile(name); err != nil {
			return fmt.Errorf("invalid custody share: %w", err)
		}
	}
	if c.Out, err = filepath.Abs(c.Out); err != nil {
		return fmt.Errorf("invalid destination %q: %w", c.Out, err)
	}
	if c.format, err = imageio.FormatFor(c.Out); err != nil {
		return err
	}

	return nil
}

func (c *DecryptCmd) Run() error {
	logger := slog.Default().With("file", c.In)

	var dataKey []byte
	if len(c.Custody) > 0 {
		shares := make([]string, len(c.Custody))
		for i, name := range c.Custody {
			b, err := os.ReadFile(name)
			if err != nil {
				return fmt.Errorf("could not read custody share %q: %w", name, err)
			}
			shares[i] = string(b)
		}

		var err error
		if dataKey, err = custody.Combine(shares); err != nil {
			return err
		}
		logger.Info("combined custody shares", "shares", len(shares))
	}

	key, err := readKey(c.Key, dataKey)
	if err != nil {
		return err
	}

	img, imgType, err := imageio.Load(c.In)
	if err != nil {
		return err
	}
	logger.Info("loaded image", "format", imgType, "width", img.Width, "height", img.Height)

	dec, err := permute.Decrypt(img, key)
	if err != nil {
		return fmt.Errorf("could not restore %q with key %q: %w", c.In, c.Key, err)
	}

	if !imageio.IsLossless(c.format) {
		logger.Warn("restored image is saved in a lossy format", "format", c.format)
	}
	if err = imageio.Save(dec, c.format, c.Out, c.Force); err != nil {
		return fmt.Errorf("could not save restored image: %w", err)
	}
	logger.Info("saved restored image", "to", c.Out)

	return nil
}

func stageKey(name string, key *permute.Key, dataKey []byte, overwrite bool) (*fileop.Staged, error) {
	out, err := fileop.Stage(name, overwrite, fileop.ModePrivate, func(w io.Writer) error {
		_, err := keyfile.Write(w, key, dataKey)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not save key %q: %w", name, err)
	}
	return out, nil
}

func readKey(name string, dataKey []byte) (*permute.Key, error) {
	keyFile, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open key %q: %w", name, err)
	}
	defer func() {
		if closeErr := keyFile.Close(); closeErr != nil {
			slog.Error("could not close key", "name", name, "error", closeErr)
		}
	}()

	key, err := keyfile.Read(keyFile, dataKey)
	if err != nil {
		return nil, fmt.Errorf("could not read key %q: %w", name, err)
	}
	return key, nil
}

func absFile(name string) (string, error) {
	path, err := filepath.Abs(name)
	var info os.FileInfo
	if err == nil {
		if info, err = os.Stat(path); err == nil && !info.Mode().IsRegular() {
			err = fmt.Errorf("not a regular file")
		}
	}
	if err != nil {
		return "", fmt.Errorf("%q: %w", name, err)
	}
	return path, nil
}
