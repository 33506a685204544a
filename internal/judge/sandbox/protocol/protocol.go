// Package protocol implements the framed wire format spoken on every
// judger boundary: caller to driver, driver to namespace-init, and
// namespace-init to executor.
//
// Integers are fixed-width little-endian. Byte strings are an int32
// length (zero allowed) followed by the raw bytes. Sequences are an
// int32 count followed by that many elements.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxChunkBytes bounds a single length-prefixed chunk so that a corrupt
// or hostile length field cannot force an arbitrary allocation.
const maxChunkBytes = 256 * 1024 * 1024

// WriteInt32 writes v as 4 little-endian bytes.
func WriteInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

// WriteInt64 writes v as 8 little-endian bytes.
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt32 reads 4 little-endian bytes. EOF mid-integer is an error.
func ReadInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadInt64 reads 8 little-endian bytes.
func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// WriteBytes writes the int32 length followed by the raw bytes.
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteInt32(w, int32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads a length-prefixed chunk. A zero length yields nil.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxChunkBytes {
		return nil, fmt.Errorf("chunk length %d out of range", n)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteString writes s as a length-prefixed byte string.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads a length-prefixed byte string.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readCount reads a sequence count and rejects negative values.
func readCount(r io.Reader) (int, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("sequence count %d out of range", n)
	}
	return int(n), nil
}
