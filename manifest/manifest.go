// Package manifest records compression runs: the configuration that produced
// a set of model artifacts, where those artifacts live, and what they
// measured. The latest run is tracked through a CURRENT pointer so tools can
// find it without listing.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/weightpress/weightpress/blobstore"
	"github.com/weightpress/weightpress/codec"
)

const (
	// RunFilePrefix names run documents: RUN-000001.json etc.
	RunFilePrefix = "RUN"
	// CurrentFileName holds the name of the latest run document.
	CurrentFileName = "CURRENT"
	// CurrentVersion is the version of the run document format.
	CurrentVersion = 1
)

// ErrNotFound is returned when no run has been saved yet.
var ErrNotFound = errors.New("manifest: not found")

// Run describes one compression run at the point it finished.
type Run struct {
	Version   int       `json:"version"`
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Config    Config     `json:"config"`
	Artifacts []Artifact `json:"artifacts"`
	Metrics   Metrics    `json:"metrics"`
}

// Config captures the knobs that shaped the run.
type Config struct {
	Centroids      int    `json:"centroids"`
	CentroidInit   string `json:"centroid_init"`
	Epochs         int    `json:"epochs"`
	FineTuneEpochs int    `json:"fine_tune_epochs"`
	Quantized      bool   `json:"quantized"`
	Seed           int64  `json:"seed"`
}

// Artifact points at one produced file by its blob name.
type Artifact struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"` // "baseline", "frozen", "frozen-quantized"
	Size     int64  `json:"size"`
	GzipSize int64  `json:"gzip_size"`
	ZstdSize int64  `json:"zstd_size,omitempty"`
	LZ4Size  int64  `json:"lz4_size,omitempty"`
}

// Metrics holds the accuracy and size outcomes of the run.
type Metrics struct {
	BaselineAccuracy  float64 `json:"baseline_accuracy"`
	ClusteredAccuracy float64 `json:"clustered_accuracy"`
	QuantizedAccuracy float64 `json:"quantized_accuracy,omitempty"`

	// Regressions and Fixes count test samples that flipped between the
	// baseline and the final compressed model.
	Regressions uint64 `json:"regressions"`
	Fixes       uint64 `json:"fixes"`

	UniqueWeights int `json:"unique_weights"`
}

// NewRun creates a run document for the given configuration. Save assigns
// the ID and timestamp.
func NewRun(cfg Config) *Run {
	return &Run{
		Version: CurrentVersion,
		Config:  cfg,
	}
}

// Store manages run documents and atomic CURRENT updates over a blobstore.
type Store struct {
	store blobstore.Store
	codec codec.Codec
	mu    sync.Mutex
}

// NewStore creates a manifest store. Documents are encoded with the default
// codec.
func NewStore(store blobstore.Store) *Store {
	return &Store{store: store, codec: codec.Default}
}

// Save atomically saves a new run document and repoints CURRENT at it.
// The run's ID is advanced past the latest saved run.
func (s *Store) Save(ctx context.Context, r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.latestID(ctx)
	if err != nil {
		return err
	}

	r.Version = CurrentVersion
	r.ID = latest + 1
	r.CreatedAt = time.Now()

	filename := runFilename(r.ID)

	data, err := s.codec.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, filename, data); err != nil {
		return err
	}

	// Blob Put is atomic; CURRENT readers see either the old or new pointer.
	return s.store.Put(ctx, CurrentFileName, []byte(filename))
}

// Load loads the run CURRENT points at.
func (s *Store) Load(ctx context.Context) (*Run, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion loads a specific run ID. 0 means latest.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filename string
	if id == 0 {
		b, err := s.store.Open(ctx, CurrentFileName)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		content, err := blobstore.ReadAll(b)
		b.Close()
		if err != nil {
			return nil, err
		}
		filename = string(content)
	} else {
		filename = runFilename(id)
	}

	return s.read(ctx, filename)
}

// ListVersions returns all readable run documents, oldest first. Corrupted
// documents are skipped to give a best-effort listing.
func (s *Store) ListVersions(ctx context.Context) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, RunFilePrefix)
	if err != nil {
		return nil, err
	}

	var runs []*Run
	for _, name := range names {
		if filepath.Ext(name) != ".json" {
			continue
		}
		r, err := s.read(ctx, name)
		if err != nil {
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// DeleteVersion deletes the run document for the given ID.
func (s *Store) DeleteVersion(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Delete(ctx, runFilename(id))
}

func (s *Store) latestID(ctx context.Context) (uint64, error) {
	b, err := s.store.Open(ctx, CurrentFileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	content, err := blobstore.ReadAll(b)
	b.Close()
	if err != nil {
		return 0, err
	}

	var id uint64
	if _, err := fmt.Sscanf(string(content), RunFilePrefix+"-%06d.json", &id); err != nil {
		return 0, fmt.Errorf("manifest: malformed CURRENT %q: %w", content, err)
	}
	return id, nil
}

func (s *Store) read(ctx context.Context, filename string) (*Run, error) {
	b, err := s.store.Open(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to open %s: %w", filename, err)
	}
	defer b.Close()

	content, err := blobstore.ReadAll(b)
	if err != nil {
		return nil, err
	}

	r := &Run{}
	if err := s.codec.Unmarshal(content, r); err != nil {
		return nil, err
	}
	return r, nil
}

func runFilename(id uint64) string {
	return fmt.Sprintf("%s-%06d.json", RunFilePrefix, id)
}
