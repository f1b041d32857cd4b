package weightpress

import (
	"log/slog"

	"github.com/weightpress/weightpress/blobstore"
	"github.com/weightpress/weightpress/cluster"
	"github.com/weightpress/weightpress/dataset/mnist"
	"github.com/weightpress/weightpress/manifest"
)

type options struct {
	logger   *Logger
	metrics  MetricsCollector
	store    blobstore.Store
	registry *manifest.Registry

	dataDir  string
	outDir   string
	fetchFns []func(*mnist.FetchOptions)

	centroids    int
	centroidInit cluster.CentroidInit

	epochs          int
	fineTuneEpochs  int
	batchSize       int
	workers         int
	learningRate    float32
	fineTuneRate    float32
	validationSplit float64
	seed            int64
	quantize        bool
	showProgress    bool
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring the
// pipeline. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithDataDir sets the directory MNIST archives are fetched to and loaded
// from. Defaults to "./data".
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithOutDir sets the directory artifacts and run manifests are written to.
// Defaults to "./out".
func WithOutDir(dir string) Option {
	return func(o *options) {
		o.outDir = dir
	}
}

// WithBlobStore mirrors artifacts into an additional store (e.g. S3 or
// MinIO) after each run. Local output stays the source of truth.
func WithBlobStore(store blobstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRegistry registers finished runs in a central DynamoDB registry.
func WithRegistry(r *manifest.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithFetchOptions customizes the dataset download (mirror URL, HTTP client,
// bandwidth limit).
func WithFetchOptions(fns ...func(*mnist.FetchOptions)) Option {
	return func(o *options) {
		o.fetchFns = fns
	}
}

// WithCentroids sets the number of shared weight values per layer.
// Defaults to 16.
func WithCentroids(k int) Option {
	return func(o *options) {
		o.centroids = k
	}
}

// WithCentroidInit selects the centroid initialization strategy.
// Defaults to linear.
func WithCentroidInit(init cluster.CentroidInit) Option {
	return func(o *options) {
		o.centroidInit = init
	}
}

// WithEpochs sets the baseline training epochs. Defaults to 3.
func WithEpochs(n int) Option {
	return func(o *options) {
		o.epochs = n
	}
}

// WithFineTuneEpochs sets the epochs spent fine-tuning centroids after
// clustering. Defaults to 2.
func WithFineTuneEpochs(n int) Option {
	return func(o *options) {
		o.fineTuneEpochs = n
	}
}

// WithBatchSize sets the training batch size. Defaults to 32.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithWorkers sets the number of data-parallel training workers.
// Defaults to 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLearningRate sets the baseline training learning rate.
// Defaults to 0.001.
func WithLearningRate(lr float32) Option {
	return func(o *options) {
		o.learningRate = lr
	}
}

// WithFineTuneLearningRate sets the fine-tuning learning rate. Fine-tuning
// nudges centroids, so this should be well below the training rate.
// Defaults to 0.0001.
func WithFineTuneLearningRate(lr float32) Option {
	return func(o *options) {
		o.fineTuneRate = lr
	}
}

// WithValidationSplit sets the fraction of training data held out for
// per-epoch validation. Defaults to 0.1.
func WithValidationSplit(fraction float64) Option {
	return func(o *options) {
		o.validationSplit = fraction
	}
}

// WithSeed sets the seed for weight init, shuffling and clustering.
// Defaults to 42.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithQuantization additionally exports an 8-bit quantized variant of the
// clustered model and measures it.
func WithQuantization() Option {
	return func(o *options) {
		o.quantize = true
	}
}

// WithProgress shows a progress bar per training epoch.
func WithProgress() Option {
	return func(o *options) {
		o.showProgress = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:          NoopLogger(),
		metrics:         NoopMetricsCollector{},
		dataDir:         "./data",
		outDir:          "./out",
		centroids:       16,
		centroidInit:    cluster.LinearInit,
		epochs:          3,
		fineTuneEpochs:  2,
		batchSize:       32,
		workers:         1,
		learningRate:    0.001,
		fineTuneRate:    0.0001,
		validationSplit: 0.1,
		seed:            42,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
