package frozen

import "errors"

const (
	// MagicNumber identifies frozen model files (ASCII: "WPF0")
	MagicNumber = 0x57504630
	// Version is the current file format version (v1.0)
	Version = 0x00010000

	// Layer kinds
	LayerDense   = 1
	LayerConv2D  = 2
	LayerReLU    = 3
	LayerMaxPool = 4
	LayerFlatten = 5
)

// FlagQuantized marks files whose weight tensors are stored as 8-bit codes.
const FlagQuantized uint32 = 1 << 0

var (
	ErrInvalidMagic   = errors.New("frozen: invalid magic number")
	ErrInvalidVersion = errors.New("frozen: unsupported version")
	ErrInvalidLayer   = errors.New("frozen: invalid layer kind")
	ErrTruncated      = errors.New("frozen: truncated file")
)

// headerSize is the encoded size of FileHeader; checksumOffset locates the
// Checksum field so Save can patch it after streaming the payload.
const (
	headerSize     = 32
	checksumOffset = 16
)

// FileHeader is the 32-byte header at the start of every frozen file.
type FileHeader struct {
	Magic      uint32 // 0x57504630 ("WPF0")
	Version    uint32 // File format version
	Flags      uint32 // FlagQuantized et al.
	LayerCount uint32 // Number of layer records in the payload
	Checksum   uint32 // CRC32 of the payload following the header
	Reserved   [12]byte
}

// Quantized reports whether weight tensors are stored as 8-bit codes.
func (h FileHeader) Quantized() bool {
	return h.Flags&FlagQuantized != 0
}
