// Command weightpress trains a small MNIST classifier, clusters its weights
// to a shared palette, fine-tunes the palette and exports compact inference
// artifacts alongside a size and accuracy comparison.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/weightpress/weightpress"
	s3store "github.com/weightpress/weightpress/blobstore/s3"
	"github.com/weightpress/weightpress/cluster"
	"github.com/weightpress/weightpress/manifest"
)

type config struct {
	DataDir         string  `env:"WP_DATA_DIR" envDefault:"./data"`
	OutDir          string  `env:"WP_OUT_DIR" envDefault:"./out"`
	Centroids       int     `env:"WP_CENTROIDS" envDefault:"16"`
	CentroidInit    string  `env:"WP_CENTROID_INIT" envDefault:"linear"`
	Epochs          int     `env:"WP_EPOCHS" envDefault:"3"`
	FineTuneEpochs  int     `env:"WP_FINE_TUNE_EPOCHS" envDefault:"2"`
	BatchSize       int     `env:"WP_BATCH_SIZE" envDefault:"32"`
	Workers         int     `env:"WP_WORKERS" envDefault:"1"`
	LearningRate    float64 `env:"WP_LEARNING_RATE" envDefault:"0.001"`
	FineTuneRate    float64 `env:"WP_FINE_TUNE_RATE" envDefault:"0.0001"`
	ValidationSplit float64 `env:"WP_VALIDATION_SPLIT" envDefault:"0.1"`
	Seed            int64   `env:"WP_SEED" envDefault:"42"`
	Quantize        bool    `env:"WP_QUANTIZE" envDefault:"true"`
	LogLevel        string  `env:"WP_LOG_LEVEL" envDefault:"info"`

	MirrorBucket    string `env:"WP_MIRROR_BUCKET"`
	MirrorPrefix    string `env:"WP_MIRROR_PREFIX"`
	RegistryTable   string `env:"WP_REGISTRY_TABLE"`
	RegistryProject string `env:"WP_REGISTRY_PROJECT" envDefault:"weightpress"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Missing .env is fine, the environment itself still applies.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	centroidInit, err := cluster.ParseCentroidInit(cfg.CentroidInit)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []weightpress.Option{
		weightpress.WithLogger(weightpress.NewTextLogger(level)),
		weightpress.WithDataDir(cfg.DataDir),
		weightpress.WithOutDir(cfg.OutDir),
		weightpress.WithCentroids(cfg.Centroids),
		weightpress.WithCentroidInit(centroidInit),
		weightpress.WithEpochs(cfg.Epochs),
		weightpress.WithFineTuneEpochs(cfg.FineTuneEpochs),
		weightpress.WithBatchSize(cfg.BatchSize),
		weightpress.WithWorkers(cfg.Workers),
		weightpress.WithLearningRate(float32(cfg.LearningRate)),
		weightpress.WithFineTuneLearningRate(float32(cfg.FineTuneRate)),
		weightpress.WithValidationSplit(cfg.ValidationSplit),
		weightpress.WithSeed(cfg.Seed),
		weightpress.WithProgress(),
	}
	if cfg.Quantize {
		opts = append(opts, weightpress.WithQuantization())
	}

	if cfg.MirrorBucket != "" || cfg.RegistryTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		if cfg.MirrorBucket != "" {
			client := awss3.NewFromConfig(awsCfg)
			opts = append(opts, weightpress.WithBlobStore(s3store.NewStore(client, cfg.MirrorBucket, cfg.MirrorPrefix)))
		}
		if cfg.RegistryTable != "" {
			client := awsdynamodb.NewFromConfig(awsCfg)
			opts = append(opts, weightpress.WithRegistry(manifest.NewRegistry(client, cfg.RegistryTable, cfg.RegistryProject)))
		}
	}

	run, err := weightpress.New(opts...).Run(ctx)
	if err != nil {
		return err
	}

	printComparison(cfg.OutDir, run)
	return nil
}

func printComparison(outDir string, run *manifest.Run) {
	fmt.Printf("\nrun %d  (%d centroids, %s init)\n\n", run.ID, run.Config.Centroids, run.Config.CentroidInit)
	fmt.Printf("%-24s %12s %12s %9s\n", "artifact", "size", "gzip", "accuracy")

	for _, a := range run.Artifacts {
		acc := "-"
		switch a.Kind {
		case "baseline":
			acc = fmt.Sprintf("%.4f", run.Metrics.BaselineAccuracy)
		case "frozen":
			acc = fmt.Sprintf("%.4f", run.Metrics.ClusteredAccuracy)
		case "frozen-quantized":
			acc = fmt.Sprintf("%.4f", run.Metrics.QuantizedAccuracy)
		}
		fmt.Printf("%-24s %12d %12d %9s\n", filepath.Base(a.Name), a.Size, a.GzipSize, acc)
	}

	fmt.Printf("\nunique weights per layer: <= %d\n", run.Metrics.UniqueWeights)
	fmt.Printf("prediction flips vs baseline: %d regressions, %d fixes\n",
		run.Metrics.Regressions, run.Metrics.Fixes)
	fmt.Printf("artifacts written to %s\n", outDir)

	if _, err := os.Stat(filepath.Join(outDir, manifest.CurrentFileName)); err == nil {
		fmt.Printf("manifest: %s\n", filepath.Join(outDir, fmt.Sprintf("%s-%06d.json", manifest.RunFilePrefix, run.ID)))
	}
}
