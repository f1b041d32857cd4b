package nn

import (
	"fmt"

	"github.com/weightpress/weightpress/tensor"
)

// Conv2D is a valid-padding 2D convolution over [channels, height, width]
// inputs. W has shape [filters, channels, kh, kw].
type Conv2D struct {
	W *tensor.Tensor
	B *tensor.Tensor

	gradW *tensor.Tensor
	gradB *tensor.Tensor

	in *tensor.Tensor
}

// NewConv2D creates a convolution layer with zero-initialized parameters.
func NewConv2D(inChannels, filters, kh, kw int) *Conv2D {
	return &Conv2D{
		W:     tensor.New(filters, inChannels, kh, kw),
		B:     tensor.New(filters),
		gradW: tensor.New(filters, inChannels, kh, kw),
		gradB: tensor.New(filters),
	}
}

func (c *Conv2D) dims() (filters, channels, kh, kw int) {
	s := c.W.Shape()
	return s[0], s[1], s[2], s[3]
}

// Forward computes the valid cross-correlation.
func (c *Conv2D) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	filters, channels, kh, kw := c.dims()

	if in.Dims() != 3 || in.Shape()[0] != channels {
		return nil, fmt.Errorf("conv2d: input shape %v, want [%d, h, w]", in.Shape(), channels)
	}
	h, w := in.Shape()[1], in.Shape()[2]
	oh, ow := h-kh+1, w-kw+1
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("conv2d: input %dx%d smaller than kernel %dx%d", h, w, kh, kw)
	}

	c.in = in

	out := tensor.New(filters, oh, ow)
	x := in.Data()
	wt := c.W.Data()
	b := c.B.Data()
	y := out.Data()

	for f := 0; f < filters; f++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				sum := b[f]
				for ch := 0; ch < channels; ch++ {
					for i := 0; i < kh; i++ {
						xRow := ch*h*w + (oy+i)*w + ox
						wRow := ((f*channels+ch)*kh + i) * kw
						for j := 0; j < kw; j++ {
							sum += x[xRow+j] * wt[wRow+j]
						}
					}
				}
				y[f*oh*ow+oy*ow+ox] = sum
			}
		}
	}

	return out, nil
}

// Backward accumulates dW and db and returns dx.
func (c *Conv2D) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if c.in == nil {
		return nil, fmt.Errorf("conv2d: Backward before Forward")
	}

	filters, channels, kh, kw := c.dims()
	h, w := c.in.Shape()[1], c.in.Shape()[2]
	oh, ow := h-kh+1, w-kw+1

	if grad.Dims() != 3 || grad.Shape()[0] != filters || grad.Shape()[1] != oh || grad.Shape()[2] != ow {
		return nil, fmt.Errorf("conv2d: gradient shape %v, want [%d %d %d]", grad.Shape(), filters, oh, ow)
	}

	x := c.in.Data()
	wt := c.W.Data()
	g := grad.Data()
	gw := c.gradW.Data()
	gb := c.gradB.Data()

	dx := tensor.New(channels, h, w)
	dxd := dx.Data()

	for f := 0; f < filters; f++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				gv := g[f*oh*ow+oy*ow+ox]
				if gv == 0 {
					continue
				}
				gb[f] += gv
				for ch := 0; ch < channels; ch++ {
					for i := 0; i < kh; i++ {
						xRow := ch*h*w + (oy+i)*w + ox
						wRow := ((f*channels+ch)*kh + i) * kw
						for j := 0; j < kw; j++ {
							gw[wRow+j] += gv * x[xRow+j]
							dxd[xRow+j] += gv * wt[wRow+j]
						}
					}
				}
			}
		}
	}

	return dx, nil
}

// Params returns [W, B].
func (c *Conv2D) Params() []*tensor.Tensor { return []*tensor.Tensor{c.W, c.B} }

// Grads returns the accumulators aligned with Params.
func (c *Conv2D) Grads() []*tensor.Tensor { return []*tensor.Tensor{c.gradW, c.gradB} }

// Clone returns a deep copy without cached activations.
func (c *Conv2D) Clone() Layer {
	return &Conv2D{
		W:     c.W.Clone(),
		B:     c.B.Clone(),
		gradW: c.gradW.Clone(),
		gradB: c.gradB.Clone(),
	}
}
