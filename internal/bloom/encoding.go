package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

const headerSize = 24

// Encoded is the JSON form of a filter stored in sidecars.
type Encoded struct {
	Algorithm string `json:"algorithm"`
	NumBits   int    `json:"num_bits"`
	NumHashes int    `json:"num_hashes"`
	Count     uint64 `json:"count"`
	// Data is base64(snappy(header || bits)), little-endian throughout.
	Data string `json:"data"`
}

// MarshalBinary encodes the filter as a 24-byte header (bits, hashes,
// count) followed by the bit array.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+len(f.bits)*8)
	binary.LittleEndian.PutUint64(buf[0:], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:], f.count)
	for i, w := range f.bits {
		binary.LittleEndian.PutUint64(buf[headerSize+i*8:], w)
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return errors.New("bloom: serialized data too short")
	}
	numBits := binary.LittleEndian.Uint64(data[0:])
	numHashes := binary.LittleEndian.Uint64(data[8:])
	if numBits == 0 || numBits%64 != 0 || numHashes == 0 {
		return fmt.Errorf("bloom: invalid header (bits=%d hashes=%d)", numBits, numHashes)
	}
	words := int(numBits / 64)
	if len(data) != headerSize+words*8 {
		return fmt.Errorf("bloom: expected %d bytes, got %d", headerSize+words*8, len(data))
	}

	f.numBits = numBits
	f.numHashes = numHashes
	f.count = binary.LittleEndian.Uint64(data[16:])
	f.bits = make([]uint64, words)
	for i := range f.bits {
		f.bits[i] = binary.LittleEndian.Uint64(data[headerSize+i*8:])
	}
	return nil
}

// Encode returns the sidecar form of the filter.
func (f *Filter) Encode() (*Encoded, error) {
	raw, err := f.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Encoded{
		Algorithm: Algorithm,
		NumBits:   f.NumBits(),
		NumHashes: f.NumHashes(),
		Count:     f.count,
		Data:      base64.StdEncoding.EncodeToString(snappy.Encode(nil, raw)),
	}, nil
}

// Decode rebuilds a filter from its sidecar form.
func Decode(e *Encoded) (*Filter, error) {
	if e == nil {
		return nil, errors.New("bloom: nil encoded filter")
	}
	if e.Algorithm != Algorithm {
		return nil, fmt.Errorf("bloom: unsupported algorithm %q", e.Algorithm)
	}
	compressed, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("bloom: invalid base64 data: %w", err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("bloom: snappy decompress failed: %w", err)
	}
	f := &Filter{}
	if err := f.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return f, nil
}
