package pipeline

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var npyMagic = []byte("\x93NUMPY")

// npzWriter writes a compressed numpy archive: one .npy member per key
type npzWriter struct {
	zw *zip.Writer
}

func newNPZWriter(w io.Writer) *npzWriter {
	return &npzWriter{zw: zip.NewWriter(w)}
}

func (n *npzWriter) member(key string) (io.Writer, error) {
	return n.zw.CreateHeader(&zip.FileHeader{Name: key + ".npy", Method: zip.Deflate})
}

// Floats stores a little-endian float64 array of the given shape
func (n *npzWriter) Floats(key string, shape []int, data []float64) error {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) {
		return fmt.Errorf("npz %s: shape %v holds %d values, got %d", key, shape, size, len(data))
	}
	w, err := n.member(key)
	if err != nil {
		return err
	}
	if err := writeNPYHeader(w, "<f8", shape); err != nil {
		return err
	}
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	_, err = w.Write(buf)
	return err
}

// Strings stores a fixed-width unicode array (numpy dtype <U{n})
func (n *npzWriter) Strings(key string, values []string) error {
	width := 1
	for _, s := range values {
		if c := utf8.RuneCountInString(s); c > width {
			width = c
		}
	}
	w, err := n.member(key)
	if err != nil {
		return err
	}
	if err := writeNPYHeader(w, "<U"+strconv.Itoa(width), []int{len(values)}); err != nil {
		return err
	}
	buf := make([]byte, 4*width*len(values))
	for i, s := range values {
		off := 4 * width * i
		for _, r := range s {
			binary.LittleEndian.PutUint32(buf[off:], uint32(r))
			off += 4
		}
	}
	_, err = w.Write(buf)
	return err
}

func (n *npzWriter) Close() error { return n.zw.Close() }

// writeNPYHeader writes a version 1.0 header padded to a 64-byte boundary
func writeNPYHeader(w io.Writer, descr string, shape []int) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	tuple += ")"

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, tuple)
	// magic(6) + version(2) + length(2) + header + '\n'
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"
	if len(header) > math.MaxUint16 {
		return fmt.Errorf("npy header too long (%d bytes)", len(header))
	}

	prefix := make([]byte, 10)
	copy(prefix, npyMagic)
	prefix[6], prefix[7] = 1, 0
	binary.LittleEndian.PutUint16(prefix[8:], uint16(len(header)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := io.WriteString(w, header)
	return err
}
