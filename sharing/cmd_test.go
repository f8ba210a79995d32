package sharing

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"picveil/imageio"
	"picveil/manifest"
	"picveil/parallel"
	"picveil/pixgrid"
	"picveil/share"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, dir string, width, height int) (string, *pixgrid.Grid) {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(width), uint64(height)))
	g, err := pixgrid.New(width, height)
	require.NoError(t, err)
	for i := range g.Pix {
		g.Pix[i] = uint8(rng.UintN(256))
	}

	path := filepath.Join(dir, "secret.png")
	require.NoError(t, imageio.Save(g, "png", path, false))
	return path, g
}

func split(t *testing.T, dir string, secret string, shares int, format string) *SplitCmd {
	t.Helper()
	cmd := &SplitCmd{
		In:        secret,
		Dest:      filepath.Join(dir, "shares"),
		Shares:    shares,
		Threshold: 3,
		Format:    format,
	}
	require.NoError(t, cmd.Validate())

	pool := parallel.Start(3)
	require.NoError(t, cmd.Run(pool.Do, pool.Wait))
	return cmd
}

func TestSplit_WritesSharesAndManifest(t *testing.T) {
	dir := t.TempDir()
	src, secret := writeSecret(t, dir, 10, 9)
	cmd := split(t, dir, src, 4, "tiff")

	set, err := manifest.Load(filepath.Join(cmd.Dest, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, 10, set.Width)
	assert.Equal(t, 9, set.Height)
	assert.Equal(t, 4, set.Shares)
	assert.Equal(t, 3, set.Threshold)
	assert.Equal(t, "share_1.tiff", set.Files[0])

	want, err := share.Split(secret, 4)
	require.NoError(t, err)
	for i, path := range set.Paths(cmd.Dest) {
		got, format, err := imageio.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "tiff", format)
		assert.True(t, want[i].Equal(got), "share %d", i+1)
	}
}

func TestReconstruct_FromManifest(t *testing.T) {
	dir := t.TempDir()
	src, secret := writeSecret(t, dir, 8, 8)
	sp := split(t, dir, src, 4, "png")

	cmd := &ReconstructCmd{
		Manifest: filepath.Join(sp.Dest, manifest.FileName),
		Out:      filepath.Join(dir, "reconstructed_secret.png"),
	}
	require.NoError(t, cmd.Validate())
	pool := parallel.Start(1)
	require.NoError(t, cmd.Run(pool.Do, pool.Wait))

	got, _, err := imageio.Load(cmd.Out)
	require.NoError(t, err)

	shares, err := share.Split(secret, 4)
	require.NoError(t, err)
	want, err := share.Reconstruct(shares, 0)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestReconstruct_FromShareList(t *testing.T) {
	dir := t.TempDir()
	src, secret := writeSecret(t, dir, 5, 11)
	sp := split(t, dir, src, 5, "bmp")

	set, err := manifest.Load(filepath.Join(sp.Dest, manifest.FileName))
	require.NoError(t, err)

	cmd := &ReconstructCmd{
		Share: set.Paths(sp.Dest),
		Out:   filepath.Join(dir, "out.png"),
		X:     0.5,
	}
	require.NoError(t, cmd.Validate())
	pool := parallel.Start(4)
	require.NoError(t, cmd.Run(pool.Do, pool.Wait))

	got, _, err := imageio.Load(cmd.Out)
	require.NoError(t, err)

	shares, err := share.Split(secret, 5)
	require.NoError(t, err)
	want, err := share.Reconstruct(shares, 0.5)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestReconstruct_TooFewShares(t *testing.T) {
	dir := t.TempDir()
	src, _ := writeSecret(t, dir, 4, 4)
	sp := split(t, dir, src, 3, "png")

	cmd := &ReconstructCmd{
		Manifest: filepath.Join(sp.Dest, manifest.FileName),
		Out:      filepath.Join(dir, "out.png"),
	}
	assert.ErrorIs(t, cmd.Validate(), share.ErrInsufficientShares)
}

func TestReconstruct_MixedSets(t *testing.T) {
	dir := t.TempDir()
	srcA, _ := writeSecret(t, dir, 6, 6)
	a := split(t, dir, srcA, 4, "png")

	other := t.TempDir()
	srcB, _ := writeSecret(t, other, 7, 6)
	b := split(t, other, srcB, 4, "png")

	paths := []string{
		filepath.Join(a.Dest, "share_1.png"),
		filepath.Join(a.Dest, "share_2.png"),
		filepath.Join(b.Dest, "share_3.png"),
		filepath.Join(a.Dest, "share_4.png"),
	}
	cmd := &ReconstructCmd{Share: paths, Out: filepath.Join(dir, "out.png")}
	require.NoError(t, cmd.Validate())

	pool := parallel.Start(2)
	assert.ErrorIs(t, cmd.Run(pool.Do, pool.Wait), pixgrid.ErrDimensionMismatch)
}

func TestReconstruct_MissingShareFile(t *testing.T) {
	dir := t.TempDir()
	src, _ := writeSecret(t, dir, 4, 4)
	sp := split(t, dir, src, 4, "png")

	cmd := &ReconstructCmd{
		Share: []string{
			filepath.Join(sp.Dest, "share_1.png"),
			filepath.Join(sp.Dest, "share_2.png"),
			filepath.Join(sp.Dest, "share_3.png"),
			filepath.Join(sp.Dest, "missing.png"),
		},
		Out: filepath.Join(dir, "out.png"),
	}
	require.NoError(t, cmd.Validate())

	pool := parallel.Start(2)
	assert.Error(t, cmd.Run(pool.Do, pool.Wait))
	assert.NoFileExists(t, cmd.Out)
}

func TestSplit_Validate(t *testing.T) {
	dir := t.TempDir()
	src, _ := writeSecret(t, dir, 2, 2)

	bad := []SplitCmd{
		{In: filepath.Join(dir, "missing.png"), Dest: dir, Shares: 4, Threshold: 3, Format: "png"},
		{In: dir, Dest: dir, Shares: 4, Threshold: 3, Format: "png"},
		{In: src, Dest: dir, Shares: 0, Threshold: 0, Format: "png"},
		{In: src, Dest: dir, Shares: 2, Threshold: 3, Format: "png"},
	}
	for i, cmd := range bad {
		assert.Error(t, cmd.Validate(), "case %d", i)
	}
}
