package nn

import (
	"fmt"

	"github.com/weightpress/weightpress/tensor"
)

// MaxPool2D downsamples [channels, height, width] inputs by taking the
// maximum over non-overlapping size×size windows.
type MaxPool2D struct {
	Size int

	inShape []int
	argmax  []int // flat input index of each output's winner
}

// NewMaxPool2D creates a pooling layer with the given window size.
func NewMaxPool2D(size int) *MaxPool2D {
	return &MaxPool2D{Size: size}
}

// Forward selects window maxima and records their positions for Backward.
func (p *MaxPool2D) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	if in.Dims() != 3 {
		return nil, fmt.Errorf("maxpool2d: input shape %v, want 3 dims", in.Shape())
	}
	if p.Size <= 0 {
		return nil, fmt.Errorf("maxpool2d: invalid window size %d", p.Size)
	}

	c, h, w := in.Shape()[0], in.Shape()[1], in.Shape()[2]
	oh, ow := h/p.Size, w/p.Size
	if oh == 0 || ow == 0 {
		return nil, fmt.Errorf("maxpool2d: input %dx%d smaller than window %d", h, w, p.Size)
	}

	p.inShape = in.Shape()
	p.argmax = make([]int, c*oh*ow)

	x := in.Data()
	out := tensor.New(c, oh, ow)
	y := out.Data()

	for ch := 0; ch < c; ch++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				bestIdx := ch*h*w + oy*p.Size*w + ox*p.Size
				best := x[bestIdx]
				for i := 0; i < p.Size; i++ {
					for j := 0; j < p.Size; j++ {
						idx := ch*h*w + (oy*p.Size+i)*w + ox*p.Size + j
						if x[idx] > best {
							best = x[idx]
							bestIdx = idx
						}
					}
				}
				o := ch*oh*ow + oy*ow + ox
				y[o] = best
				p.argmax[o] = bestIdx
			}
		}
	}

	return out, nil
}

// Backward routes each output gradient to the winning input position.
func (p *MaxPool2D) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if p.argmax == nil {
		return nil, fmt.Errorf("maxpool2d: Backward before Forward")
	}
	if grad.Len() != len(p.argmax) {
		return nil, fmt.Errorf("maxpool2d: gradient length %d, want %d", grad.Len(), len(p.argmax))
	}

	dx := tensor.New(p.inShape...)
	dxd := dx.Data()
	for o, idx := range p.argmax {
		dxd[idx] += grad.Data()[o]
	}

	return dx, nil
}

// Clone returns a copy without cached state.
func (p *MaxPool2D) Clone() Layer {
	return &MaxPool2D{Size: p.Size}
}
