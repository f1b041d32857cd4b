package weightpress

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weightpress/weightpress/blobstore"
	"github.com/weightpress/weightpress/dataset/mnist"
	"github.com/weightpress/weightpress/manifest"
)

// writeDataset writes a small synthetic dataset in the archive layout the
// loader expects. Each class lights a distinct pixel row so a few training
// epochs suffice.
func writeDataset(t *testing.T, dir string, train, test int) {
	t.Helper()

	writeImages := func(path string, n int) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(0x803))
		binary.Write(&buf, binary.BigEndian, uint32(n))
		binary.Write(&buf, binary.BigEndian, uint32(mnist.ImageSize))
		binary.Write(&buf, binary.BigEndian, uint32(mnist.ImageSize))
		for i := 0; i < n; i++ {
			img := make([]byte, mnist.ImageSize*mnist.ImageSize)
			class := i % mnist.NumClasses
			for j := class * mnist.ImageSize; j < (class+1)*mnist.ImageSize; j++ {
				img[j] = 255
			}
			buf.Write(img)
		}
		writeGzip(t, path, buf.Bytes())
	}
	writeLabels := func(path string, n int) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(0x801))
		binary.Write(&buf, binary.BigEndian, uint32(n))
		for i := 0; i < n; i++ {
			buf.WriteByte(byte(i % mnist.NumClasses))
		}
		writeGzip(t, path, buf.Bytes())
	}

	writeImages(filepath.Join(dir, mnist.TrainImagesFile), train)
	writeLabels(filepath.Join(dir, mnist.TrainLabelsFile), train)
	writeImages(filepath.Join(dir, mnist.TestImagesFile), test)
	writeLabels(filepath.Join(dir, mnist.TestLabelsFile), test)
}

func writeGzip(t *testing.T, path string, data []byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := gzip.NewWriter(f)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestPipelineRun(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a network")
	}

	dataDir := t.TempDir()
	outDir := t.TempDir()
	writeDataset(t, dataDir, 200, 40)

	mirror := blobstore.NewMemoryStore()

	p := New(
		WithDataDir(dataDir),
		WithOutDir(outDir),
		WithFetchOptions(func(o *mnist.FetchOptions) { o.SkipVerify = true }),
		WithEpochs(2),
		WithFineTuneEpochs(1),
		WithCentroids(8),
		WithQuantization(),
		WithBlobStore(mirror),
		WithSeed(1),
	)

	run, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), run.ID)
	require.Len(t, run.Artifacts, 3)

	for _, a := range run.Artifacts {
		assert.FileExists(t, filepath.Join(outDir, a.Name))
		assert.Positive(t, a.Size, "artifact %s", a.Name)
		assert.Positive(t, a.GzipSize, "artifact %s", a.Name)
	}

	assert.LessOrEqual(t, run.Metrics.UniqueWeights, 8)
	for name, acc := range map[string]float64{
		"baseline":  run.Metrics.BaselineAccuracy,
		"clustered": run.Metrics.ClusteredAccuracy,
		"quantized": run.Metrics.QuantizedAccuracy,
	} {
		assert.GreaterOrEqual(t, acc, 0.0, name)
		assert.LessOrEqual(t, acc, 1.0, name)
	}

	// The clustered artifact compresses better than the baseline, relative
	// to its raw size.
	var baselineArt, clusteredArt *manifest.Artifact
	for i := range run.Artifacts {
		switch run.Artifacts[i].Kind {
		case "baseline":
			baselineArt = &run.Artifacts[i]
		case "frozen":
			clusteredArt = &run.Artifacts[i]
		}
	}
	require.NotNil(t, baselineArt)
	require.NotNil(t, clusteredArt)
	baseRatio := float64(baselineArt.GzipSize) / float64(baselineArt.Size)
	clusterRatio := float64(clusteredArt.GzipSize) / float64(clusteredArt.Size)
	assert.Less(t, clusterRatio, baseRatio)

	// The manifest is loadable from the output directory.
	local, err := blobstore.NewLocalStore(outDir)
	require.NoError(t, err)

	loaded, err := manifest.NewStore(local).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, 8, loaded.Config.Centroids)

	// Artifacts were mirrored.
	names, err := mirror.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestPipelineValidation(t *testing.T) {
	ctx := context.Background()

	_, err := New(WithEpochs(0)).Run(ctx)
	assert.ErrorIs(t, err, ErrInvalidEpochs)

	_, err = New(WithOutDir("")).Run(ctx)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestPipelineStageError(t *testing.T) {
	// Empty data dir and an unreachable mirror URL: fetch fails fast.
	p := New(
		WithDataDir(t.TempDir()),
		WithOutDir(t.TempDir()),
		WithFetchOptions(func(o *mnist.FetchOptions) {
			o.BaseURL = "http://127.0.0.1:1/"
		}),
	)

	_, err := p.Run(context.Background())

	var stageFailed *ErrStageFailed
	require.ErrorAs(t, err, &stageFailed)
	assert.Equal(t, "fetch", stageFailed.Stage)
}

func TestPipelineOutputStoreError(t *testing.T) {
	// A regular file where the output directory should be: opening the
	// store reports an error instead of panicking.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	p := New(WithOutDir(filepath.Join(blocker, "out")))
	_, err := p.localStore()
	require.Error(t, err)
}
