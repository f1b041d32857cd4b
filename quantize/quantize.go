// Package quantize provides post-training scalar quantization for model
// weights. It compresses float32 tensors (4 bytes/value) to uint8
// (1 byte/value) for 4x memory savings, with the quantization range
// calibrated per tensor.
package quantize

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrNoValues is returned when fitting a quantizer on an empty tensor.
var ErrNoValues = errors.New("quantize: no values to calibrate on")

// Scalar implements 8-bit affine scalar quantization over a single tensor.
// Each value is linearly mapped from [min, max] to [0, 255].
type Scalar struct {
	min float32
	max float32
}

// NewScalar creates an uncalibrated quantizer covering [0, 1].
func NewScalar() *Scalar {
	return &Scalar{min: 0, max: 1}
}

// Fit calibrates the quantization range to the min/max of the given values.
func (s *Scalar) Fit(values []float32) error {
	if len(values) == 0 {
		return ErrNoValues
	}

	s.min = math.MaxFloat32
	s.max = -math.MaxFloat32

	for _, v := range values {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}

	// Handle edge case where all values are the same
	if s.min == s.max {
		s.max = s.min + 1
	}

	return nil
}

// Encode quantizes float32 values to their 8-bit representation.
func (s *Scalar) Encode(values []float32) []byte {
	quantized := make([]byte, len(values))
	scale := 255.0 / (s.max - s.min)

	for i, v := range values {
		// Clamp to [min, max]
		if v < s.min {
			v = s.min
		} else if v > s.max {
			v = s.max
		}

		normalized := (v - s.min) * scale
		quantized[i] = uint8(normalized + 0.5) // Round to nearest
	}

	return quantized
}

// Decode reconstructs float32 values from their quantized representation.
func (s *Scalar) Decode(b []byte) []float32 {
	decoded := make([]float32, len(b))
	s.DecodeInto(b, decoded)
	return decoded
}

// DecodeInto reconstructs quantized values into dst, which must have
// length len(b).
func (s *Scalar) DecodeInto(b []byte, dst []float32) {
	scale := (s.max - s.min) / 255.0
	for i, v := range b {
		dst[i] = float32(v)*scale + s.min
	}
}

// BytesPerValue returns 1 (uint8 storage).
func (s *Scalar) BytesPerValue() int {
	return 1
}

// Min returns the lower bound of the quantization range.
func (s *Scalar) Min() float32 {
	return s.min
}

// Max returns the upper bound of the quantization range.
func (s *Scalar) Max() float32 {
	return s.max
}

// MarshalBinary implements encoding.BinaryMarshaler.
// Format (little-endian): [min:float32][max:float32]
func (s *Scalar) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(s.min))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(s.max))
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return errors.New("quantize: invalid scalar quantizer binary length")
	}
	s.min = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	s.max = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	return nil
}

// CompressionRatio returns the memory compression ratio (always 4.0 for
// 8-bit quantization of float32 values).
func (s *Scalar) CompressionRatio() float64 {
	return 4.0
}

// Error estimates the average quantization error per value.
func (s *Scalar) Error() float32 {
	// 255 steps, error is ±0.5 steps
	return (s.max - s.min) / 512.0
}
