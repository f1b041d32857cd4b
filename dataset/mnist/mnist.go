// Package mnist loads the MNIST handwritten-digit dataset: 60,000 training
// and 10,000 held-out 28×28 grayscale images with integer labels 0-9.
//
// Files are the canonical gzip-compressed IDX archives. Load reads them from a
// local directory; Fetch downloads missing files first and verifies their
// SHA-256 digests against the published values.
package mnist

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const (
	// ImageSize is the side length of every image.
	ImageSize = 28
	// NumClasses is the number of digit classes.
	NumClasses = 10
)

// Canonical archive names.
const (
	TrainImagesFile = "train-images-idx3-ubyte.gz"
	TrainLabelsFile = "train-labels-idx1-ubyte.gz"
	TestImagesFile  = "t10k-images-idx3-ubyte.gz"
	TestLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// SHA-256 digests of the canonical archives.
var digests = map[string]string{
	TrainImagesFile: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	TrainLabelsFile: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	TestImagesFile:  "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	TestLabelsFile:  "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// Data holds the full dataset with pixels normalized to [0,1].
// Images are flattened row-major (ImageSize*ImageSize floats each).
type Data struct {
	TrainImages [][]float32
	TrainLabels []int
	TestImages  [][]float32
	TestLabels  []int
}

// Load reads the four archives from dir.
//
// Load validates IDX structure and that image/label counts match; it does not
// verify archive digests (see Verify and Fetch).
func Load(dir string) (*Data, error) {
	trainImages, err := loadImages(filepath.Join(dir, TrainImagesFile))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", TrainImagesFile, err)
	}
	trainLabels, err := loadLabels(filepath.Join(dir, TrainLabelsFile))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", TrainLabelsFile, err)
	}
	testImages, err := loadImages(filepath.Join(dir, TestImagesFile))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", TestImagesFile, err)
	}
	testLabels, err := loadLabels(filepath.Join(dir, TestLabelsFile))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", TestLabelsFile, err)
	}

	if len(trainImages) != len(trainLabels) {
		return nil, fmt.Errorf("%w: %d train images, %d train labels", ErrCountMismatch, len(trainImages), len(trainLabels))
	}
	if len(testImages) != len(testLabels) {
		return nil, fmt.Errorf("%w: %d test images, %d test labels", ErrCountMismatch, len(testImages), len(testLabels))
	}

	return &Data{
		TrainImages: trainImages,
		TrainLabels: trainLabels,
		TestImages:  testImages,
		TestLabels:  testLabels,
	}, nil
}

// Shuffle permutes the training images and labels in lockstep.
func (d *Data) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.TrainLabels), func(i, j int) {
		d.TrainImages[i], d.TrainImages[j] = d.TrainImages[j], d.TrainImages[i]
		d.TrainLabels[i], d.TrainLabels[j] = d.TrainLabels[j], d.TrainLabels[i]
	})
}

// SplitValidation carves the last fraction of the training set off as a
// validation set. The returned slices are views into the original data.
func (d *Data) SplitValidation(fraction float64) (trainImages [][]float32, trainLabels []int, valImages [][]float32, valLabels []int) {
	n := len(d.TrainImages)
	cut := n - int(float64(n)*fraction)
	return d.TrainImages[:cut], d.TrainLabels[:cut], d.TrainImages[cut:], d.TrainLabels[cut:]
}

func loadImages(path string) ([][]float32, error) {
	r, closeFn, err := openGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return decodeImages(r)
}

func loadLabels(path string) ([]int, error) {
	r, closeFn, err := openGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return decodeLabels(r)
}

func openGzip(path string) (*gzip.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("gzip: %w", err)
	}

	return zr, func() {
		zr.Close()
		f.Close()
	}, nil
}
