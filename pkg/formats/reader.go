package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/prcexport/pkg/encoding"
)

// ErrTruncated is wrapped by every short-read error.
var ErrTruncated = errors.New("truncated data")

// binReader reads little-endian fields from a byte slice. The first short
// read is sticky: later reads return zero values and err reports where the
// data ran out.
type binReader struct {
	data []byte
	off  int
	err  error
}

func newBinReader(data []byte) *binReader {
	return &binReader{data: data}
}

func (r *binReader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: %s at offset %d", ErrTruncated, what, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binReader) remaining() int {
	return len(r.data) - r.off
}

func (r *binReader) skip(n int, what string) {
	r.take(n, what)
}

func (r *binReader) u8(what string) uint8 {
	if b := r.take(1, what); b != nil {
		return b[0]
	}
	return 0
}

func (r *binReader) u16(what string) uint16 {
	if b := r.take(2, what); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *binReader) u32(what string) uint32 {
	if b := r.take(4, what); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *binReader) i32(what string) int32 {
	return int32(r.u32(what))
}

func (r *binReader) f32(what string) float32 {
	return math.Float32frombits(r.u32(what))
}

func (r *binReader) vec3(what string) [3]float32 {
	return [3]float32{r.f32(what), r.f32(what), r.f32(what)}
}

// count reads an int32 element count and rejects values outside [0, limit].
func (r *binReader) count(what string, limit int) int {
	n := r.i32(what)
	if r.err != nil {
		return 0
	}
	if n < 0 || int(n) > limit {
		r.err = fmt.Errorf("%s: count %d outside [0, %d]", what, n, limit)
		return 0
	}
	return int(n)
}

// name reads a fixed-size, NUL-padded EUC-KR string as UTF-8.
func (r *binReader) name(size int, what string) string {
	b := r.take(size, what)
	if b == nil {
		return ""
	}
	return encoding.FixedStringToUTF8(b)
}
