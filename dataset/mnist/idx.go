package mnist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// IDX container magics (big-endian): 0x08 = unsigned byte elements,
// final byte is the dimension count.
const (
	magicImages = 0x00000803
	magicLabels = 0x00000801
)

var (
	// ErrBadMagic indicates the file is not an IDX image/label container.
	ErrBadMagic = errors.New("mnist: bad IDX magic")
	// ErrCountMismatch indicates image and label counts disagree.
	ErrCountMismatch = errors.New("mnist: image/label count mismatch")
	// ErrDigestMismatch indicates an archive failed SHA-256 verification.
	ErrDigestMismatch = errors.New("mnist: digest mismatch")
)

// decodeImages parses an IDX3 image container and returns normalized
// flattened images.
func decodeImages(r io.Reader) ([][]float32, error) {
	var header struct {
		Magic uint32
		Count uint32
		Rows  uint32
		Cols  uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("idx header: %w", err)
	}
	if header.Magic != magicImages {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, header.Magic)
	}
	if header.Rows != ImageSize || header.Cols != ImageSize {
		return nil, fmt.Errorf("mnist: unexpected image size %dx%d", header.Rows, header.Cols)
	}

	pixels := int(header.Rows * header.Cols)
	raw := make([]byte, pixels)
	data := make([]float32, int(header.Count)*pixels)
	images := make([][]float32, header.Count)

	for i := range images {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("idx image %d: %w", i, err)
		}
		img := data[i*pixels : (i+1)*pixels]
		for j, p := range raw {
			img[j] = float32(p) / 255
		}
		images[i] = img
	}

	return images, nil
}

// decodeLabels parses an IDX1 label container.
func decodeLabels(r io.Reader) ([]int, error) {
	var header struct {
		Magic uint32
		Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("idx header: %w", err)
	}
	if header.Magic != magicLabels {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, header.Magic)
	}

	raw := make([]byte, header.Count)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("idx labels: %w", err)
	}

	labels := make([]int, header.Count)
	for i, b := range raw {
		if int(b) >= NumClasses {
			return nil, fmt.Errorf("mnist: label %d out of range", b)
		}
		labels[i] = int(b)
	}

	return labels, nil
}
