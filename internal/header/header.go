// Package header implements the two on-disk file headers: the sequence-set
// file header and the B+ tree file header. Both are self-describing (a
// headerSize field gives the full serialized length) and are read in two
// passes: read a fixed prefix large enough to find headerSize, then read the
// full header.
//
// Reading a fixed prefix of known field offsets first lets the decoder
// validate the magic signature and size fields before trusting anything
// else in the header.
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/buf"
	"github.com/jpare/zipstore/internal/pagedfile"
)

// Magic is the sequence-set file's leading signature.
var Magic = [4]byte{'Z', 'I', 'P', 'C'}

// Version is the only sequence-set header version this engine writes or
// accepts.
const Version = uint16(1)

// seqSetProbeLen is large enough to cover magic+version+headerSize
// (4 + 2 + 4 = 10), rounded up generously so a single read also usually
// covers sizeFormatType/blockSize/minBlockSize for the common case.
const seqSetProbeLen = 32

// FieldDesc describes one schema field: a length-prefixed name plus a type
// tag.
type FieldDesc struct {
	Name    string
	TypeTag uint8
}

// Field type tags for the on-disk schema description. These only describe
// the field to a reader; they do not drive codec behavior, which is fixed
// by recfmt.
const (
	FieldTypeUint32  uint8 = 1
	FieldTypeString  uint8 = 2
	FieldTypeFloat64 uint8 = 3
)

// SeqSetHeader is the sequence-set file's header record.
type SeqSetHeader struct {
	Version            uint16
	HeaderSize         uint32
	SizeFormatType     uint8
	BlockSize          uint32
	MinBlockSize       uint16
	IndexFileName      string
	Schema             string
	RecordCount        uint32
	BlockCount         uint32
	Fields             []FieldDesc
	PrimaryKeyField    uint8
	AvailableListRBN   uint32
	SequenceSetListRBN uint32
	StaleFlag          uint8
}

type writer struct{ buf bytes.Buffer }

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { var b [2]byte; buf.PutU16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u32(v uint32) { var b [4]byte; buf.PutU32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) str(s string) { w.u16(uint16(len(s))); w.buf.WriteString(s) }

type reader struct {
	b   []byte
	off int
}

func (r *reader) need(n int) error {
	if r.off+n > len(r.b) {
		return fmt.Errorf("header: need %d bytes at %d, have %d: %w", n, r.off, len(r.b), errs.ErrShortHeader)
	}
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeSeqSetHeader serializes h, computing headerSize as the serialized
// length and patching it into the output.
func EncodeSeqSetHeader(h SeqSetHeader) []byte {
	w := &writer{}
	w.buf.Write(Magic[:])
	w.u16(Version)
	headerSizeOff := w.buf.Len()
	w.u32(0) // patched below
	w.u8(h.SizeFormatType)
	w.u32(h.BlockSize)
	w.u16(h.MinBlockSize)
	w.str(h.IndexFileName)
	w.str(h.Schema)
	w.u32(h.RecordCount)
	w.u32(h.BlockCount)
	w.u16(uint16(len(h.Fields)))
	for _, f := range h.Fields {
		w.str(f.Name)
		w.u8(f.TypeTag)
	}
	w.u8(h.PrimaryKeyField)
	w.u32(h.AvailableListRBN)
	w.u32(h.SequenceSetListRBN)
	w.u8(h.StaleFlag)

	out := w.buf.Bytes()
	binary.LittleEndian.PutUint32(out[headerSizeOff:headerSizeOff+4], uint32(len(out)))
	return out
}

// DecodeSeqSetHeader parses a full sequence-set header from b, which must be
// at least headerSize bytes (b may be longer; only headerSize bytes are
// read).
func DecodeSeqSetHeader(b []byte) (SeqSetHeader, error) {
	r := &reader{b: b}
	magic, err := r.bytes(4)
	if err != nil {
		return SeqSetHeader{}, err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return SeqSetHeader{}, fmt.Errorf("header: got magic %q: %w", magic, errs.ErrBadMagic)
	}
	version, err := r.u16()
	if err != nil {
		return SeqSetHeader{}, err
	}
	if version != Version {
		return SeqSetHeader{}, fmt.Errorf("header: version %d: %w", version, errs.ErrBadVersion)
	}
	headerSize, err := r.u32()
	if err != nil {
		return SeqSetHeader{}, err
	}
	if int(headerSize) > len(b) {
		return SeqSetHeader{}, fmt.Errorf("header: headerSize %d exceeds buffer %d: %w", headerSize, len(b), errs.ErrShortHeader)
	}
	r.b = b[:headerSize]

	h := SeqSetHeader{Version: version, HeaderSize: headerSize}
	if h.SizeFormatType, err = r.u8(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.BlockSize, err = r.u32(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.MinBlockSize, err = r.u16(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.IndexFileName, err = r.str(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.Schema, err = r.str(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.RecordCount, err = r.u32(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.BlockCount, err = r.u32(); err != nil {
		return SeqSetHeader{}, err
	}
	fieldCount, err := r.u16()
	if err != nil {
		return SeqSetHeader{}, err
	}
	h.Fields = make([]FieldDesc, fieldCount)
	for i := range h.Fields {
		name, err := r.str()
		if err != nil {
			return SeqSetHeader{}, err
		}
		tag, err := r.u8()
		if err != nil {
			return SeqSetHeader{}, err
		}
		h.Fields[i] = FieldDesc{Name: name, TypeTag: tag}
	}
	if h.PrimaryKeyField, err = r.u8(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.AvailableListRBN, err = r.u32(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.SequenceSetListRBN, err = r.u32(); err != nil {
		return SeqSetHeader{}, err
	}
	if h.StaleFlag, err = r.u8(); err != nil {
		return SeqSetHeader{}, err
	}
	return h, nil
}

// ReadSeqSetHeader reads and decodes the header at the front of pf, then
// configures pf's header size and block size from it.
func ReadSeqSetHeader(pf *pagedfile.File) (SeqSetHeader, error) {
	prefix, err := pf.ReadAt(0, seqSetProbeLen)
	if err != nil {
		return SeqSetHeader{}, err
	}
	if len(prefix) < 10 {
		return SeqSetHeader{}, fmt.Errorf("header: file shorter than probe prefix: %w", errs.ErrShortHeader)
	}
	headerSize := binary.LittleEndian.Uint32(prefix[6:10])
	full, err := pf.ReadAt(0, int(headerSize))
	if err != nil {
		return SeqSetHeader{}, err
	}
	if uint32(len(full)) < headerSize {
		return SeqSetHeader{}, fmt.Errorf("header: short read of header region: %w", errs.ErrShortHeader)
	}
	h, err := DecodeSeqSetHeader(full)
	if err != nil {
		return SeqSetHeader{}, err
	}
	pf.SetHeaderSize(int64(h.HeaderSize))
	pf.SetBlockSize(int(h.BlockSize))
	return h, nil
}

// WriteSeqSetHeader encodes and writes h at offset 0, then configures pf.
func WriteSeqSetHeader(pf *pagedfile.File, h *SeqSetHeader) error {
	encoded := EncodeSeqSetHeader(*h)
	h.HeaderSize = uint32(len(encoded))
	if err := pf.WriteAt(0, encoded); err != nil {
		return err
	}
	pf.SetHeaderSize(int64(len(encoded)))
	pf.SetBlockSize(int(h.BlockSize))
	return nil
}

// TreeHeader is the B+ tree index file's header record. Unlike the
// sequence-set header it carries no magic or version field — it names its
// companion data file and the tree's current shape.
type TreeHeader struct {
	HeaderSize      uint32
	DataFileName    string
	Height          uint32
	RootIndexRBN    uint32
	IndexStartRBN   uint32
	IndexBlockCount uint32
	BlockSize       uint32
}

// treeProbeLen only needs to cover the leading headerSize field (4 bytes);
// rounded up so a single read usually also covers the companion filename's
// length prefix.
const treeProbeLen = 16

// EncodeTreeHeader serializes h, computing headerSize as the serialized
// length and patching it into the output.
func EncodeTreeHeader(h TreeHeader) []byte {
	w := &writer{}
	headerSizeOff := w.buf.Len()
	w.u32(0) // patched below
	w.str(h.DataFileName)
	w.u32(h.Height)
	w.u32(h.RootIndexRBN)
	w.u32(h.IndexStartRBN)
	w.u32(h.IndexBlockCount)
	w.u32(h.BlockSize)

	out := w.buf.Bytes()
	binary.LittleEndian.PutUint32(out[headerSizeOff:headerSizeOff+4], uint32(len(out)))
	return out
}

// DecodeTreeHeader parses a full tree header from b, which must be at least
// headerSize bytes.
func DecodeTreeHeader(b []byte) (TreeHeader, error) {
	r := &reader{b: b}
	headerSize, err := r.u32()
	if err != nil {
		return TreeHeader{}, err
	}
	if int(headerSize) > len(b) {
		return TreeHeader{}, fmt.Errorf("header: headerSize %d exceeds buffer %d: %w", headerSize, len(b), errs.ErrShortHeader)
	}
	r.b = b[:headerSize]

	h := TreeHeader{HeaderSize: headerSize}
	if h.DataFileName, err = r.str(); err != nil {
		return TreeHeader{}, err
	}
	if h.Height, err = r.u32(); err != nil {
		return TreeHeader{}, err
	}
	if h.RootIndexRBN, err = r.u32(); err != nil {
		return TreeHeader{}, err
	}
	if h.IndexStartRBN, err = r.u32(); err != nil {
		return TreeHeader{}, err
	}
	if h.IndexBlockCount, err = r.u32(); err != nil {
		return TreeHeader{}, err
	}
	if h.BlockSize, err = r.u32(); err != nil {
		return TreeHeader{}, err
	}
	return h, nil
}

// ReadTreeHeader reads and decodes the header at the front of pf, then
// configures pf's header size and block size from it.
func ReadTreeHeader(pf *pagedfile.File) (TreeHeader, error) {
	prefix, err := pf.ReadAt(0, treeProbeLen)
	if err != nil {
		return TreeHeader{}, err
	}
	if len(prefix) < 4 {
		return TreeHeader{}, fmt.Errorf("header: file shorter than probe prefix: %w", errs.ErrShortHeader)
	}
	headerSize := binary.LittleEndian.Uint32(prefix[0:4])
	full, err := pf.ReadAt(0, int(headerSize))
	if err != nil {
		return TreeHeader{}, err
	}
	if uint32(len(full)) < headerSize {
		return TreeHeader{}, fmt.Errorf("header: short read of header region: %w", errs.ErrShortHeader)
	}
	h, err := DecodeTreeHeader(full)
	if err != nil {
		return TreeHeader{}, err
	}
	pf.SetHeaderSize(int64(h.HeaderSize))
	pf.SetBlockSize(int(h.BlockSize))
	return h, nil
}

// WriteTreeHeader encodes and writes h at offset 0, then configures pf.
func WriteTreeHeader(pf *pagedfile.File, h *TreeHeader) error {
	encoded := EncodeTreeHeader(*h)
	h.HeaderSize = uint32(len(encoded))
	if err := pf.WriteAt(0, encoded); err != nil {
		return err
	}
	pf.SetHeaderSize(int64(len(encoded)))
	pf.SetBlockSize(int(h.BlockSize))
	return nil
}
