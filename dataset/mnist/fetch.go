package mnist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"
)

// DefaultBaseURL hosts the canonical archives.
const DefaultBaseURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// FetchOptions configure Fetch.
type FetchOptions struct {
	// BaseURL is the directory URL the four archives are fetched from.
	BaseURL string
	// Client is the HTTP client to use. Defaults to http.DefaultClient.
	Client *http.Client
	// LimitBytesPerSec throttles download throughput. 0 means unlimited.
	LimitBytesPerSec int64
	// SkipVerify disables digest verification, for mirrors that serve
	// archives differing from the canonical ones.
	SkipVerify bool
}

// Fetch downloads any of the four archives missing from dir and verifies the
// digest of every archive, downloaded or pre-existing.
func Fetch(ctx context.Context, dir string, optFns ...func(*FetchOptions)) error {
	opts := FetchOptions{
		BaseURL: DefaultBaseURL,
		Client:  http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var limiter *rate.Limiter
	if opts.LimitBytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.LimitBytesPerSec), int(opts.LimitBytesPerSec))
	}

	for _, name := range []string{TrainImagesFile, TrainLabelsFile, TestImagesFile, TestLabelsFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := download(ctx, opts.Client, opts.BaseURL+name, path, limiter); err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
		} else if err != nil {
			return err
		}
	}

	if opts.SkipVerify {
		return nil
	}
	return Verify(dir)
}

// Verify checks the SHA-256 digest of every archive in dir.
func Verify(dir string) error {
	for name, want := range digests {
		got, err := fileDigest(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%w: %s has digest %s", ErrDigestMismatch, name, got)
		}
	}
	return nil
}

func download(ctx context.Context, client *http.Client, url, path string, limiter *rate.Limiter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if limiter != nil {
		body = &limitedReader{r: resp.Body, limiter: limiter, ctx: ctx}
	}

	// Write to a temp file and rename so a partial download never
	// masquerades as a complete archive.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// limitedReader throttles reads through a shared rate limiter.
type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)

	// io.Copy reads in chunks larger than small bursts allow; WaitN rejects
	// requests above the burst outright, so wait in burst-sized pieces.
	for rem := n; rem > 0; {
		chunk := rem
		if b := lr.limiter.Burst(); chunk > b {
			chunk = b
		}
		if werr := lr.limiter.WaitN(lr.ctx, chunk); werr != nil {
			return n, werr
		}
		rem -= chunk
	}
	return n, err
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
