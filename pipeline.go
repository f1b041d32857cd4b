package weightpress

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/weightpress/weightpress/blobstore"
	"github.com/weightpress/weightpress/cluster"
	"github.com/weightpress/weightpress/dataset/mnist"
	"github.com/weightpress/weightpress/frozen"
	"github.com/weightpress/weightpress/manifest"
	"github.com/weightpress/weightpress/measure"
	"github.com/weightpress/weightpress/nn"
	"github.com/weightpress/weightpress/tensor"
)

// Artifact file names within the output directory.
const (
	BaselineArtifact  = "baseline.wpf"
	ClusteredArtifact = "clustered.wpf"
	QuantizedArtifact = "clustered-quant.wpf"
)

var inputShape = []int{1, mnist.ImageSize, mnist.ImageSize}

// Pipeline runs the full compression sequence: train, cluster, fine-tune,
// strip, export, quantize, measure.
type Pipeline struct {
	o options
}

// New creates a pipeline. See the Option functions for the available knobs.
func New(optFns ...Option) *Pipeline {
	return &Pipeline{o: applyOptions(optFns)}
}

// Run executes the pipeline and returns the saved run manifest.
func (p *Pipeline) Run(ctx context.Context) (*manifest.Run, error) {
	if p.o.epochs <= 0 || p.o.fineTuneEpochs < 0 {
		return nil, ErrInvalidEpochs
	}
	if p.o.outDir == "" {
		return nil, ErrNoOutput
	}
	if err := os.MkdirAll(p.o.outDir, 0755); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(p.o.seed))

	// Dataset.
	var data *mnist.Data
	err := p.stage(ctx, "fetch", func() error {
		return mnist.Fetch(ctx, p.o.dataDir, p.o.fetchFns...)
	})
	if err != nil {
		return nil, err
	}
	err = p.stage(ctx, "load", func() error {
		var err error
		data, err = mnist.Load(p.o.dataDir)
		return err
	})
	if err != nil {
		return nil, err
	}

	data.Shuffle(rng)
	trainImages, trainLabels, valImages, valLabels := data.SplitValidation(p.o.validationSplit)

	// Baseline training.
	net := nn.NewMNISTClassifier(rng)
	err = p.stage(ctx, "train", func() error {
		trainer := nn.NewTrainer(net, nn.NewAdam(p.o.learningRate), nn.TrainConfig{
			Epochs:       p.o.epochs,
			BatchSize:    p.o.batchSize,
			Workers:      p.o.workers,
			InputShape:   inputShape,
			Seed:         p.o.seed,
			ShowProgress: p.o.showProgress,
			Logger:       p.o.logger.Logger,
		})
		return trainer.Fit(ctx, trainImages, trainLabels, valImages, valLabels)
	})
	if err != nil {
		return nil, err
	}

	var baseline *measure.Report
	err = p.stage(ctx, "evaluate-baseline", func() error {
		var err error
		baseline, err = measure.Evaluate(netPredictor{net: net}, data.TestImages, data.TestLabels)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.o.logger.LogAccuracy(ctx, "baseline", baseline.Accuracy, baseline.Total)
	p.o.metrics.RecordAccuracy("baseline", baseline.Accuracy)

	err = p.stage(ctx, "export-baseline", func() error {
		return frozen.Save(filepath.Join(p.o.outDir, BaselineArtifact), net)
	})
	if err != nil {
		return nil, err
	}

	// Clustering and centroid fine-tuning.
	err = p.stage(ctx, "cluster", func() error {
		return cluster.Apply(net, cluster.Config{
			Centroids: p.o.centroids,
			Init:      p.o.centroidInit,
		}, rng)
	})
	if err != nil {
		return nil, err
	}

	if p.o.fineTuneEpochs > 0 {
		err = p.stage(ctx, "fine-tune", func() error {
			trainer := nn.NewTrainer(net, nn.NewAdam(p.o.fineTuneRate), nn.TrainConfig{
				Epochs:       p.o.fineTuneEpochs,
				BatchSize:    p.o.batchSize,
				Workers:      p.o.workers,
				InputShape:   inputShape,
				Seed:         p.o.seed + 1,
				ShowProgress: p.o.showProgress,
				Logger:       p.o.logger.Logger,
			})
			return trainer.Fit(ctx, trainImages, trainLabels, valImages, valLabels)
		})
		if err != nil {
			return nil, err
		}
	}

	cluster.Strip(net)
	uniqueWeights := maxUniqueWeights(net)

	// Export.
	err = p.stage(ctx, "export", func() error {
		if err := frozen.Save(filepath.Join(p.o.outDir, ClusteredArtifact), net); err != nil {
			return err
		}
		if p.o.quantize {
			return frozen.Save(filepath.Join(p.o.outDir, QuantizedArtifact), net, frozen.WithQuantization())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Measurement over the exported artifacts.
	run := manifest.NewRun(manifest.Config{
		Centroids:      p.o.centroids,
		CentroidInit:   string(p.o.centroidInit),
		Epochs:         p.o.epochs,
		FineTuneEpochs: p.o.fineTuneEpochs,
		Quantized:      p.o.quantize,
		Seed:           p.o.seed,
	})
	run.Metrics.BaselineAccuracy = baseline.Accuracy
	run.Metrics.UniqueWeights = uniqueWeights

	err = p.stage(ctx, "measure", func() error {
		return p.measureArtifacts(ctx, run, baseline, data)
	})
	if err != nil {
		return nil, err
	}

	// Persist the manifest next to the artifacts, then mirror.
	err = p.stage(ctx, "manifest", func() error {
		local, err := p.localStore()
		if err != nil {
			return err
		}
		if err := manifest.NewStore(local).Save(ctx, run); err != nil {
			return err
		}
		if err := p.mirror(ctx, run); err != nil {
			return err
		}
		if p.o.registry != nil {
			return p.o.registry.Put(ctx, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.o.logger.WithRun(run.ID).InfoContext(ctx, "run completed",
		"baseline_accuracy", run.Metrics.BaselineAccuracy,
		"clustered_accuracy", run.Metrics.ClusteredAccuracy,
		"unique_weights", run.Metrics.UniqueWeights,
	)
	return run, nil
}

func (p *Pipeline) measureArtifacts(ctx context.Context, run *manifest.Run, baseline *measure.Report, data *mnist.Data) error {
	variants := []struct {
		name string
		kind string
	}{
		{BaselineArtifact, "baseline"},
		{ClusteredArtifact, "frozen"},
	}
	if p.o.quantize {
		variants = append(variants, struct{ name, kind string }{QuantizedArtifact, "frozen-quantized"})
	}

	var final *measure.Report
	for _, v := range variants {
		path := filepath.Join(p.o.outDir, v.name)

		sizes, err := measure.File(path)
		if err != nil {
			return err
		}
		run.Artifacts = append(run.Artifacts, manifest.Artifact{
			Name:     v.name,
			Kind:     v.kind,
			Size:     sizes.Raw,
			GzipSize: sizes.Gzip,
			ZstdSize: sizes.Zstd,
			LZ4Size:  sizes.LZ4,
		})
		p.o.logger.LogArtifact(ctx, v.name, sizes.Raw, sizes.Gzip)
		p.o.metrics.RecordArtifact(v.kind, sizes.Raw, sizes.Gzip)

		if v.kind == "baseline" {
			continue
		}

		model, err := frozen.OpenMmap(path)
		if err != nil {
			return err
		}
		report, err := measure.Evaluate(frozen.NewInterpreter(model, inputShape), data.TestImages, data.TestLabels)
		if err != nil {
			return err
		}
		p.o.logger.LogAccuracy(ctx, v.kind, report.Accuracy, report.Total)
		p.o.metrics.RecordAccuracy(v.kind, report.Accuracy)

		switch v.kind {
		case "frozen":
			run.Metrics.ClusteredAccuracy = report.Accuracy
		case "frozen-quantized":
			run.Metrics.QuantizedAccuracy = report.Accuracy
		}
		final = report
	}

	if final != nil {
		run.Metrics.Regressions, run.Metrics.Fixes = measure.Flips(baseline, final)
	}
	return nil
}

// localStore opens the output directory as a blob store. Run creates outDir
// up front, but the directory can still disappear before the manifest stage,
// so failures flow back as stage errors.
func (p *Pipeline) localStore() (blobstore.Store, error) {
	return blobstore.NewLocalStore(p.o.outDir)
}

// mirror copies artifacts into the configured secondary store.
func (p *Pipeline) mirror(ctx context.Context, run *manifest.Run) error {
	if p.o.store == nil {
		return nil
	}
	for _, a := range run.Artifacts {
		data, err := os.ReadFile(filepath.Join(p.o.outDir, a.Name))
		if err != nil {
			return err
		}
		if err := p.o.store.Put(ctx, a.Name, data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	p.o.logger.LogStage(ctx, name, duration, err)
	p.o.metrics.RecordStage(name, duration, err)
	return stageErr(name, err)
}

func maxUniqueWeights(net *nn.Sequential) int {
	max := 0
	for _, l := range net.Layers {
		if pl, ok := l.(nn.ParamLayer); ok {
			if n := cluster.UniqueWeights(pl.Params()[0]); n > max {
				max = n
			}
		}
	}
	return max
}

// netPredictor adapts an in-memory network to measure.Predictor.
type netPredictor struct {
	net *nn.Sequential
}

func (p netPredictor) Predict(input []float32) (int, error) {
	t, err := tensor.FromSlice(input, inputShape...)
	if err != nil {
		return 0, err
	}
	return p.net.Predict(t)
}
