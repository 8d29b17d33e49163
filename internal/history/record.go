package history

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Record encoding: varint headerLen | header | payload | crc32c(header|payload)
//
// The header of a revision is one flags byte followed by the attribution
// bytes. The payload is the document, empty for tombstones.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const flagTombstone byte = 1 << 0

func EncodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

type Decoded struct {
	Header  []byte
	Payload []byte
}

func DecodeRecord(b []byte) (Decoded, bool) {
	if len(b) < 1+4 {
		return Decoded{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return Decoded{}, false
	}
	if hlen > uint64(len(b)) || uint64(n)+hlen+4 > uint64(len(b)) {
		return Decoded{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return Decoded{}, false
	}
	return Decoded{Header: append([]byte(nil), header...), Payload: append([]byte(nil), payload...)}, true
}

func encodeRevision(e Entry) []byte {
	header := make([]byte, 1, 1+len(e.Attribution))
	if e.Deleted {
		header[0] |= flagTombstone
	}
	header = append(header, e.Attribution...)
	if e.Deleted {
		return EncodeRecord(header, nil)
	}
	return EncodeRecord(header, e.Doc)
}

func decodeRevision(key string, ts int64, b []byte) (Entry, error) {
	dec, ok := DecodeRecord(b)
	if !ok || len(dec.Header) < 1 {
		return Entry{}, fmt.Errorf("%w: key=%q ts=%d", ErrCorrupt, key, ts)
	}
	e := Entry{Key: key, Ts: ts, Deleted: dec.Header[0]&flagTombstone != 0}
	if attr := dec.Header[1:]; len(attr) > 0 {
		e.Attribution = attr
	}
	if !e.Deleted {
		e.Doc = dec.Payload
		if e.Doc == nil {
			e.Doc = []byte{}
		}
	}
	return e, nil
}
