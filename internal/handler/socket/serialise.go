// Serialization for the socket handler's wire frame: a big-endian u32
// length prefix followed by a structured payload carrying every field
// spec.md section 6 names. Encode/Decode are the producer/consumer sides
// of the same format, used both by the live handler and by round-trip
// tests (spec.md invariant 5, scenario S7).
package socket

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"femtolog/internal/record"
)

// DecodedRecord is the wire-level view of a Record: a flat, ordered
// representation decoded straight off the frame, independent of the
// record package's in-process representation.
type DecodedRecord struct {
	Logger        string
	Level         string
	Message       string
	TimestampNanos int64
	Filename      string
	LineNumber    uint32
	ModulePath    string
	ThreadID      string
	ThreadName    string
	HasThreadName bool
	KeyValues     []record.KV
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}

// Encode renders r as the structured payload (without the length prefix;
// see WriteFrame for the framed form written to the wire).
func Encode(r record.Record) []byte {
	var buf bytes.Buffer

	writeString(&buf, r.Logger)
	writeString(&buf, r.Severity.String())
	writeString(&buf, r.Message)

	// timestamp_ns as u128: high 8 bytes are always zero since
	// time.Time.UnixNano fits in an int64.
	var ts [16]byte
	binary.BigEndian.PutUint64(ts[8:], uint64(r.Time.UnixNano()))
	buf.Write(ts[:])

	writeString(&buf, r.File)

	var lineBuf [4]byte
	binary.BigEndian.PutUint32(lineBuf[:], r.Line)
	buf.Write(lineBuf[:])

	writeString(&buf, r.ModulePath)
	writeString(&buf, r.ThreadID)

	if r.ThreadName != "" {
		buf.WriteByte(1)
		writeString(&buf, r.ThreadName)
	} else {
		buf.WriteByte(0)
	}

	kvs := r.SortedFields()
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(kvs)))
	buf.Write(countBuf[:])
	for _, kv := range kvs {
		writeString(&buf, kv.Key)
		writeString(&buf, kv.Value)
	}

	return buf.Bytes()
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (DecodedRecord, error) {
	r := bytes.NewReader(payload)
	var out DecodedRecord
	var err error

	if out.Logger, err = readString(r); err != nil {
		return out, fmt.Errorf("decode logger: %w", err)
	}
	if out.Level, err = readString(r); err != nil {
		return out, fmt.Errorf("decode level: %w", err)
	}
	if out.Message, err = readString(r); err != nil {
		return out, fmt.Errorf("decode message: %w", err)
	}

	var ts [16]byte
	if _, err := io.ReadFull(r, ts[:]); err != nil {
		return out, fmt.Errorf("decode timestamp: %w", err)
	}
	out.TimestampNanos = int64(binary.BigEndian.Uint64(ts[8:]))

	if out.Filename, err = readString(r); err != nil {
		return out, fmt.Errorf("decode filename: %w", err)
	}

	var lineBuf [4]byte
	if _, err := io.ReadFull(r, lineBuf[:]); err != nil {
		return out, fmt.Errorf("decode line number: %w", err)
	}
	out.LineNumber = binary.BigEndian.Uint32(lineBuf[:])

	if out.ModulePath, err = readString(r); err != nil {
		return out, fmt.Errorf("decode module path: %w", err)
	}
	if out.ThreadID, err = readString(r); err != nil {
		return out, fmt.Errorf("decode thread id: %w", err)
	}

	hasName, err := r.ReadByte()
	if err != nil {
		return out, fmt.Errorf("decode thread name flag: %w", err)
	}
	if hasName == 1 {
		out.HasThreadName = true
		if out.ThreadName, err = readString(r); err != nil {
			return out, fmt.Errorf("decode thread name: %w", err)
		}
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return out, fmt.Errorf("decode kv count: %w", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	out.KeyValues = make([]record.KV, 0, count)
	for i := uint32(0); i < count; i++ {
		k, err := readString(r)
		if err != nil {
			return out, fmt.Errorf("decode kv key: %w", err)
		}
		v, err := readString(r)
		if err != nil {
			return out, fmt.Errorf("decode kv value: %w", err)
		}
		out.KeyValues = append(out.KeyValues, record.KV{Key: k, Value: v})
	}

	return out, nil
}

// WriteFrame writes the big-endian u32 length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
