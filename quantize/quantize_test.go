package quantize

import (
	"errors"
	"math"
	"testing"
)

func TestScalar_Fit(t *testing.T) {
	values := []float32{-1.0, 0.0, 1.0, -0.5, 0.5, 2.0, -2.0, 3.0}

	s := NewScalar()
	if err := s.Fit(values); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if s.min != -2.0 {
		t.Errorf("Expected min=-2.0, got %f", s.min)
	}
	if s.max != 3.0 {
		t.Errorf("Expected max=3.0, got %f", s.max)
	}
}

func TestScalar_FitEmpty(t *testing.T) {
	s := NewScalar()
	if err := s.Fit(nil); !errors.Is(err, ErrNoValues) {
		t.Fatalf("err = %v, want ErrNoValues", err)
	}
}

func TestScalar_EncodeDecode(t *testing.T) {
	s := &Scalar{min: -1.0, max: 1.0}

	original := []float32{-1.0, -0.5, 0.0, 0.5, 1.0}

	quantized := s.Encode(original)
	if len(quantized) != len(original) {
		t.Fatalf("Expected %d bytes, got %d", len(original), len(quantized))
	}

	decoded := s.Decode(quantized)
	if len(decoded) != len(original) {
		t.Fatalf("Expected %d floats, got %d", len(original), len(decoded))
	}

	// Reconstruction error stays within one quantization step.
	maxError := float32(0.0)
	for i := range original {
		err := float32(math.Abs(float64(original[i] - decoded[i])))
		if err > maxError {
			maxError = err
		}
	}

	expectedMaxError := (s.max - s.min) / 255.0
	if maxError > expectedMaxError*1.1 {
		t.Errorf("Reconstruction error too large: %f (expected <= %f)", maxError, expectedMaxError)
	}
}

func TestScalar_DecodeInto(t *testing.T) {
	s := &Scalar{min: 0.0, max: 1.0}

	original := []float32{0.0, 0.25, 0.5, 0.75, 1.0}
	quantized := s.Encode(original)

	dst := make([]float32, len(original))
	s.DecodeInto(quantized, dst)

	for i := range original {
		if math.Abs(float64(original[i]-dst[i])) > 1.0/255.0 {
			t.Errorf("value %d: got %f, want ~%f", i, dst[i], original[i])
		}
	}
}

func TestScalar_ClusteredValuesStayDistinct(t *testing.T) {
	// Clustered weights share a handful of values; quantization must map
	// equal inputs to equal codes so the weight sharing survives.
	s := NewScalar()
	values := []float32{-0.3, -0.3, 0.1, 0.1, 0.1, 0.7, 0.7, -0.3}
	if err := s.Fit(values); err != nil {
		t.Fatal(err)
	}

	codes := s.Encode(values)
	byValue := map[float32]byte{}
	for i, v := range values {
		if prev, ok := byValue[v]; ok && prev != codes[i] {
			t.Fatalf("value %f encoded as both %d and %d", v, prev, codes[i])
		}
		byValue[v] = codes[i]
	}
	if len(byValue) != 3 {
		t.Fatalf("expected 3 distinct codes, got %d", len(byValue))
	}
}

func TestScalar_UniformValues(t *testing.T) {
	values := []float32{5.0, 5.0, 5.0}

	s := NewScalar()
	if err := s.Fit(values); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if s.max <= s.min {
		t.Error("Max should be greater than min even for uniform values")
	}

	decoded := s.Decode(s.Encode(values))
	for i := range decoded {
		if math.Abs(float64(decoded[i]-5.0)) > 0.01 {
			t.Errorf("Expected decoded value ~5.0, got %f", decoded[i])
		}
	}
}

func TestScalar_Clamping(t *testing.T) {
	s := &Scalar{min: 0.0, max: 1.0}

	original := []float32{-1.0, 0.5, 2.0}
	decoded := s.Decode(s.Encode(original))

	if decoded[0] < -0.01 {
		t.Errorf("Expected clamped value >= 0, got %f", decoded[0])
	}
	if decoded[2] > 1.01 {
		t.Errorf("Expected clamped value <= 1, got %f", decoded[2])
	}
}

func TestScalar_MarshalRoundtrip(t *testing.T) {
	s := &Scalar{min: -0.42, max: 1.87}

	b, err := s.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var restored Scalar
	if err := restored.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if restored.min != s.min || restored.max != s.max {
		t.Errorf("restored [%f, %f], want [%f, %f]", restored.min, restored.max, s.min, s.max)
	}

	if err := restored.UnmarshalBinary(b[:5]); err == nil {
		t.Error("expected error for truncated data")
	}
}

func BenchmarkScalar_Encode(b *testing.B) {
	s := &Scalar{min: -1.0, max: 1.0}

	values := make([]float32, 1024)
	for i := range values {
		values[i] = float32(i%256)/128.0 - 1.0
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Encode(values)
	}
}
