// Package frozen implements the compact binary inference format models are
// converted to after compression. A frozen file carries only what inference
// needs: the layer topology and the final weights, stored as raw little-endian
// tensors or, when quantization is enabled, as 8-bit codes with a per-tensor
// affine range.
//
// Save writes a network atomically. Open and OpenMmap load a file back into
// an executable network, and Interpreter runs predictions over it.
package frozen
