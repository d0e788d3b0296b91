package rendering

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

// ZIP record signatures.
const (
	zipLocalHeaderSignature   uint32 = 0x04034b50
	zipCentralHeaderSignature uint32 = 0x02014b50
	zipEndOfCentralSignature  uint32 = 0x06054b50
)

const (
	zipVersion     uint16 = 20
	zipMethodStore uint16 = 0
	// 1980-01-01 00:00:00 in MS-DOS format. A fixed stamp keeps output byte-stable.
	zipDOSTime uint16 = 0
	zipDOSDate uint16 = (0 << 9) | (1 << 5) | 1
)

type zipEntry struct {
	name   string
	crc    uint32
	size   uint32
	offset uint32
}

// zipWriter builds a ZIP archive using the stored (uncompressed) method.
type zipWriter struct {
	buf     bytes.Buffer
	entries []zipEntry
	closed  bool
}

func newZipWriter() *zipWriter {
	return &zipWriter{}
}

// Add appends a file entry: local header followed by the raw bytes.
func (z *zipWriter) Add(name string, data []byte) error {
	if z.closed {
		return fmt.Errorf("zip: add %q after close", name)
	}
	if name == "" || len(name) > math.MaxUint16 {
		return fmt.Errorf("zip: invalid entry name %q", name)
	}
	if uint64(len(data)) > math.MaxUint32 || uint64(z.buf.Len()) > math.MaxUint32 {
		return fmt.Errorf("zip: entry %q exceeds 4 GiB", name)
	}
	if len(z.entries) >= math.MaxUint16 {
		return fmt.Errorf("zip: too many entries")
	}

	entry := zipEntry{
		name:   name,
		crc:    crc32.ChecksumIEEE(data),
		size:   uint32(len(data)),
		offset: uint32(z.buf.Len()),
	}

	le := binary.LittleEndian
	var header [30]byte
	le.PutUint32(header[0:], zipLocalHeaderSignature)
	le.PutUint16(header[4:], zipVersion)
	le.PutUint16(header[6:], 0)
	le.PutUint16(header[8:], zipMethodStore)
	le.PutUint16(header[10:], zipDOSTime)
	le.PutUint16(header[12:], zipDOSDate)
	le.PutUint32(header[14:], entry.crc)
	le.PutUint32(header[18:], entry.size)
	le.PutUint32(header[22:], entry.size)
	le.PutUint16(header[26:], uint16(len(name)))
	le.PutUint16(header[28:], 0)

	z.buf.Write(header[:])
	z.buf.WriteString(name)
	z.buf.Write(data)
	z.entries = append(z.entries, entry)
	return nil
}

// Close writes the central directory and end record and returns the archive.
func (z *zipWriter) Close() ([]byte, error) {
	if z.closed {
		return nil, fmt.Errorf("zip: already closed")
	}
	z.closed = true

	le := binary.LittleEndian
	cdOffset := z.buf.Len()
	for _, entry := range z.entries {
		var header [46]byte
		le.PutUint32(header[0:], zipCentralHeaderSignature)
		le.PutUint16(header[4:], zipVersion)
		le.PutUint16(header[6:], zipVersion)
		le.PutUint16(header[8:], 0)
		le.PutUint16(header[10:], zipMethodStore)
		le.PutUint16(header[12:], zipDOSTime)
		le.PutUint16(header[14:], zipDOSDate)
		le.PutUint32(header[16:], entry.crc)
		le.PutUint32(header[20:], entry.size)
		le.PutUint32(header[24:], entry.size)
		le.PutUint16(header[28:], uint16(len(entry.name)))
		// extra length, comment length, disk start, internal and external attrs stay zero
		le.PutUint32(header[42:], entry.offset)

		z.buf.Write(header[:])
		z.buf.WriteString(entry.name)
	}
	cdSize := z.buf.Len() - cdOffset
	if uint64(z.buf.Len()) > math.MaxUint32 {
		return nil, fmt.Errorf("zip: archive exceeds 4 GiB")
	}

	var end [22]byte
	le.PutUint32(end[0:], zipEndOfCentralSignature)
	le.PutUint16(end[8:], uint16(len(z.entries)))
	le.PutUint16(end[10:], uint16(len(z.entries)))
	le.PutUint32(end[12:], uint32(cdSize))
	le.PutUint32(end[16:], uint32(cdOffset))
	z.buf.Write(end[:])

	return z.buf.Bytes(), nil
}
