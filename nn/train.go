package nn

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/weightpress/weightpress/tensor"
)

// TrainConfig controls the minibatch training loop.
type TrainConfig struct {
	// Epochs is the number of passes over the training set.
	Epochs int
	// BatchSize is the number of samples per optimizer step.
	BatchSize int
	// Workers is the number of data-parallel gradient workers.
	// Values below 1 mean single-threaded.
	Workers int
	// InputShape is the per-sample tensor shape, e.g. [1, 28, 28].
	// Defaults to a flat vector.
	InputShape []int
	// Seed feeds the per-epoch shuffle.
	Seed int64
	// ShowProgress renders a progress bar per epoch.
	ShowProgress bool
	// Logger receives per-epoch summaries. Nil disables logging.
	Logger *slog.Logger
}

// Trainer runs minibatch gradient descent on a Sequential network.
type Trainer struct {
	net  *Sequential
	opt  Optimizer
	loss SoftmaxCrossEntropy
	cfg  TrainConfig
}

// NewTrainer creates a trainer. The network is updated in place.
func NewTrainer(net *Sequential, opt Optimizer, cfg TrainConfig) *Trainer {
	if cfg.Epochs <= 0 {
		cfg.Epochs = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Trainer{net: net, opt: opt, cfg: cfg}
}

// Fit trains on images/labels, reporting validation accuracy per epoch when a
// validation set is supplied.
func (t *Trainer) Fit(ctx context.Context, images [][]float32, labels []int, valImages [][]float32, valLabels []int) error {
	if len(images) == 0 {
		return fmt.Errorf("train: empty training set")
	}
	if len(images) != len(labels) {
		return fmt.Errorf("train: %d images, %d labels", len(images), len(labels))
	}

	shape := t.cfg.InputShape
	if shape == nil {
		shape = []int{len(images[0])}
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	perm := make([]int, len(images))
	for i := range perm {
		perm[i] = i
	}

	// Persistent worker replicas; parameters are re-synced from the master
	// network before every batch.
	replicas := make([]*Sequential, t.cfg.Workers)
	for i := range replicas {
		replicas[i] = t.net.Clone()
	}

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		numBatches := (len(images) + t.cfg.BatchSize - 1) / t.cfg.BatchSize

		var bar *progressbar.ProgressBar
		if t.cfg.ShowProgress {
			bar = progressbar.NewOptions(numBatches,
				progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch+1, t.cfg.Epochs)),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		}

		var epochLoss float64

		for b := 0; b < numBatches; b++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := b * t.cfg.BatchSize
			end := start + t.cfg.BatchSize
			if end > len(images) {
				end = len(images)
			}
			batch := perm[start:end]

			loss, err := t.step(ctx, replicas, batch, images, labels, shape)
			if err != nil {
				return err
			}
			epochLoss += loss

			if bar != nil {
				bar.Add(1)
			}
		}

		if t.cfg.Logger != nil {
			attrs := []any{
				"epoch", epoch + 1,
				"loss", epochLoss / float64(len(images)),
			}
			if len(valImages) > 0 {
				acc, err := Evaluate(t.net, valImages, valLabels, shape)
				if err != nil {
					return err
				}
				attrs = append(attrs, "val_accuracy", acc)
			}
			t.cfg.Logger.InfoContext(ctx, "epoch completed", attrs...)
		}
	}

	return nil
}

// step computes summed gradients for one batch across the worker replicas and
// applies a single optimizer update to the master network.
func (t *Trainer) step(ctx context.Context, replicas []*Sequential, batch []int, images [][]float32, labels []int, shape []int) (float64, error) {
	masterParams := t.net.Params()

	losses := make([]float64, len(replicas))

	g, gctx := errgroup.WithContext(ctx)
	for w := range replicas {
		replica := replicas[w]
		shard := batch[w*len(batch)/len(replicas) : (w+1)*len(batch)/len(replicas)]
		w := w

		// Sync replica parameters with the master before the pass.
		for i, p := range replica.Params() {
			copy(p.Data(), masterParams[i].Data())
		}
		replica.ZeroGrads()

		g.Go(func() error {
			for _, idx := range shard {
				if err := gctx.Err(); err != nil {
					return err
				}

				in, err := tensor.FromSlice(images[idx], shape...)
				if err != nil {
					return err
				}

				out, err := replica.Forward(in)
				if err != nil {
					return err
				}

				lossVal, probs, err := t.loss.Loss(out, labels[idx])
				if err != nil {
					return err
				}
				losses[w] += float64(lossVal)

				if err := replica.Backward(t.loss.Grad(probs, labels[idx])); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	// Average gradients over the batch into the master accumulators.
	t.net.ZeroGrads()
	masterGrads := t.net.Grads()
	scale := float32(1) / float32(len(batch))
	for _, replica := range replicas {
		for i, rg := range replica.Grads() {
			mg := masterGrads[i].Data()
			for j, v := range rg.Data() {
				mg[j] += v * scale
			}
		}
	}

	t.opt.Step(masterParams, masterGrads)

	var total float64
	for _, l := range losses {
		total += l
	}
	return total, nil
}

// Evaluate runs the network over every sample and returns the fraction of
// correct argmax predictions.
func Evaluate(net *Sequential, images [][]float32, labels []int, shape []int) (float64, error) {
	if len(images) == 0 {
		return 0, fmt.Errorf("evaluate: empty set")
	}
	if len(images) != len(labels) {
		return 0, fmt.Errorf("evaluate: %d images, %d labels", len(images), len(labels))
	}
	if shape == nil {
		shape = []int{len(images[0])}
	}

	correct := 0
	for i, img := range images {
		in, err := tensor.FromSlice(img, shape...)
		if err != nil {
			return 0, err
		}
		pred, err := net.Predict(in)
		if err != nil {
			return 0, err
		}
		if pred == labels[i] {
			correct++
		}
	}

	return float64(correct) / float64(len(images)), nil
}
