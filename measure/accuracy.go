package measure

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Predictor classifies a single flattened sample.
// frozen.Interpreter satisfies this.
type Predictor interface {
	Predict(input []float32) (int, error)
}

// Report summarizes classification accuracy over a dataset.
type Report struct {
	Total    int
	Correct  int
	Accuracy float64

	// CorrectSet holds the indices of correctly classified samples, so two
	// reports over the same dataset can be diffed sample by sample.
	CorrectSet *roaring.Bitmap
}

// Evaluate runs the predictor over every sample.
func Evaluate(p Predictor, images [][]float32, labels []int) (*Report, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("measure: %d images, %d labels", len(images), len(labels))
	}

	set := roaring.New()
	for i, img := range images {
		got, err := p.Predict(img)
		if err != nil {
			return nil, fmt.Errorf("measure: sample %d: %w", i, err)
		}
		if got == labels[i] {
			set.Add(uint32(i))
		}
	}

	r := &Report{
		Total:      len(images),
		Correct:    int(set.GetCardinality()),
		CorrectSet: set,
	}
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
	return r, nil
}

// Flips diffs two reports over the same dataset. Regressions are samples the
// baseline classified correctly and the candidate got wrong; fixes are the
// reverse.
func Flips(baseline, candidate *Report) (regressions, fixes uint64) {
	regressions = roaring.AndNot(baseline.CorrectSet, candidate.CorrectSet).GetCardinality()
	fixes = roaring.AndNot(candidate.CorrectSet, baseline.CorrectSet).GetCardinality()
	return regressions, fixes
}
