package gpt2

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
)

const (
	metadataKey = "__metadata__"
	// Sanity check for header length to prevent excessive memory allocation
	maxHeaderSize = 100 * 1024 * 1024
)

type tensorInfo struct {
	Dtype       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// StoredTensor is one tensor of a safetensors file, widened to float64.
type StoredTensor struct {
	Shape []int
	Data  []float64
}

// ReadSafetensors decodes a safetensors stream. F32, F64, F16 and BF16
// tensors are supported, other dtypes are skipped.
func ReadSafetensors(r io.Reader) (map[string]StoredTensor, error) {
	var headerLenBuf [8]byte
	if _, err := io.ReadFull(r, headerLenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "reading header length")
	}
	headerLen := binary.LittleEndian.Uint64(headerLenBuf[:])
	if headerLen > maxHeaderSize {
		return nil, errors.Errorf("header length %d exceeds maximum allowed size of %d bytes", headerLen, maxHeaderSize)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrap(err, "reading JSON header")
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing JSON header")
	}

	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading tensor data")
	}

	out := make(map[string]StoredTensor, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, errors.Wrapf(err, "parsing header of tensor %s", name)
		}

		width, decode := decoderFor(info.Dtype)
		if decode == nil {
			continue
		}

		n, ok := storedNumel(info.Shape, int64(len(buf)))
		if !ok {
			return nil, errors.Errorf("tensor %s has invalid shape %v", name, info.Shape)
		}
		begin, end := info.DataOffsets[0], info.DataOffsets[1]
		if begin < 0 || begin > end || end > int64(len(buf)) || end-begin != n*int64(width) {
			return nil, errors.Errorf("tensor %s has invalid data offsets [%d, %d]", name, begin, end)
		}

		data := make([]float64, n)
		chunk := buf[begin:end]
		for i := range data {
			data[i] = decode(chunk[i*width : (i+1)*width])
		}
		out[name] = StoredTensor{Shape: info.Shape, Data: data}
	}
	return out, nil
}

// storedNumel counts the elements of shape. Negative dims and counts that
// cannot fit in limit bytes are rejected.
func storedNumel(shape []int, limit int64) (int64, bool) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d > 0 && n > limit/int64(d) {
			return 0, false
		}
		n *= int64(d)
	}
	return n, true
}

func decoderFor(dtype string) (int, func([]byte) float64) {
	switch dtype {
	case "F64":
		return 8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
	case "F32":
		return 4, func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	case "BF16":
		return 2, func(b []byte) float64 {
			return float64(math.Float32frombits(uint32(binary.LittleEndian.Uint16(b)) << 16))
		}
	case "F16":
		return 2, func(b []byte) float64 { return float64(halfToFloat(binary.LittleEndian.Uint16(b))) }
	default:
		return 0, nil
	}
}

func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		v := float32(frac) / 1024 * float32(math.Pow(2, -14))
		if sign != 0 {
			return -v
		}
		return v
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
	}
}

// WriteSafetensors encodes tensors as F32 in the given order.
func WriteSafetensors(w io.Writer, tensors []*Tensor, metadata map[string]string) error {
	header := make(map[string]interface{}, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, t := range tensors {
		size := int64(len(t.Data)) * 4
		header[t.Name] = tensorInfo{Dtype: "F32", Shape: t.Shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "encoding header")
	}
	// pad the header so the data section starts 8 byte aligned
	for len(headerBytes)%8 != 0 {
		headerBytes = append(headerBytes, ' ')
	}

	bw := bufio.NewWriter(w)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := bw.Write(headerBytes); err != nil {
		return err
	}

	var word [4]byte
	for _, t := range tensors {
		for _, v := range t.Data {
			binary.LittleEndian.PutUint32(word[:], math.Float32bits(float32(v)))
			if _, err := bw.Write(word[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// sortedNames is used for stable error messages.
func sortedNames(m map[string]StoredTensor) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
