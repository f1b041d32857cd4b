package mnist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// writeIDXImages writes a gzip-compressed IDX3 container.
func writeIDXImages(t *testing.T, path string, images [][]byte) {
	t.Helper()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(magicImages))
	binary.Write(&buf, binary.BigEndian, uint32(len(images)))
	binary.Write(&buf, binary.BigEndian, uint32(ImageSize))
	binary.Write(&buf, binary.BigEndian, uint32(ImageSize))
	for _, img := range images {
		buf.Write(img)
	}

	writeGzip(t, path, buf.Bytes())
}

func writeIDXLabels(t *testing.T, path string, labels []byte) {
	t.Helper()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(magicLabels))
	binary.Write(&buf, binary.BigEndian, uint32(len(labels)))
	buf.Write(labels)

	writeGzip(t, path, buf.Bytes())
}

func writeGzip(t *testing.T, path string, data []byte) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeDataset(t *testing.T, dir string, train, test int) {
	t.Helper()

	makeImages := func(n int) [][]byte {
		images := make([][]byte, n)
		for i := range images {
			img := make([]byte, ImageSize*ImageSize)
			img[i%len(img)] = byte(255)
			images[i] = img
		}
		return images
	}
	makeLabels := func(n int) []byte {
		labels := make([]byte, n)
		for i := range labels {
			labels[i] = byte(i % NumClasses)
		}
		return labels
	}

	writeIDXImages(t, filepath.Join(dir, TrainImagesFile), makeImages(train))
	writeIDXLabels(t, filepath.Join(dir, TrainLabelsFile), makeLabels(train))
	writeIDXImages(t, filepath.Join(dir, TestImagesFile), makeImages(test))
	writeIDXLabels(t, filepath.Join(dir, TestLabelsFile), makeLabels(test))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 20, 10)

	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(d.TrainImages) != 20 || len(d.TrainLabels) != 20 {
		t.Fatalf("train: %d images, %d labels", len(d.TrainImages), len(d.TrainLabels))
	}
	if len(d.TestImages) != 10 || len(d.TestLabels) != 10 {
		t.Fatalf("test: %d images, %d labels", len(d.TestImages), len(d.TestLabels))
	}

	// Pixels are normalized: the single lit pixel becomes 1.0.
	if d.TrainImages[0][0] != 1.0 {
		t.Errorf("pixel = %f, want 1.0", d.TrainImages[0][0])
	}
	for _, img := range d.TrainImages {
		for _, p := range img {
			if p < 0 || p > 1 {
				t.Fatalf("pixel out of range: %f", p)
			}
		}
	}
}

func TestLoadCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 20, 10)
	// Overwrite train labels with the wrong count.
	writeIDXLabels(t, filepath.Join(dir, TrainLabelsFile), make([]byte, 5))

	_, err := Load(dir)
	if !errors.Is(err, ErrCountMismatch) {
		t.Fatalf("err = %v, want ErrCountMismatch", err)
	}
}

func TestLoadBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 4, 2)
	// Corrupt train images with a label magic.
	writeIDXLabels(t, filepath.Join(dir, TrainImagesFile), make([]byte, 4))

	_, err := Load(dir)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestShuffleLockstep(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 50, 2)

	d, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	// Mark each image with its label so we can verify pairing survives.
	for i := range d.TrainImages {
		d.TrainImages[i][7] = float32(d.TrainLabels[i])
	}

	d.Shuffle(rand.New(rand.NewSource(1)))

	for i := range d.TrainImages {
		if int(d.TrainImages[i][7]) != d.TrainLabels[i] {
			t.Fatalf("image %d decoupled from its label", i)
		}
	}
}

func TestSplitValidation(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 100, 2)

	d, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	trainX, trainY, valX, valY := d.SplitValidation(0.1)
	if len(trainX) != 90 || len(trainY) != 90 {
		t.Errorf("train split = %d/%d, want 90/90", len(trainX), len(trainY))
	}
	if len(valX) != 10 || len(valY) != 10 {
		t.Errorf("val split = %d/%d, want 10/10", len(valX), len(valY))
	}
}

func TestVerifyRejectsUnknownBytes(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 2, 2)

	err := Verify(dir)
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("err = %v, want ErrDigestMismatch", err)
	}
}
