package blockchain

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// EncodeRLP encodes a []byte or a (nested) []interface{} of them.
func EncodeRLP(val interface{}) ([]byte, error) {
	switch data := val.(type) {
	case []byte:
		if len(data) == 1 && data[0] <= 0x7f {
			return data, nil
		}
		prefix, err := encodeRLPLength(0x80, len(data))
		if err != nil {
			return nil, err
		}
		return append(prefix, data...), nil
	case []interface{}:
		var payload []byte
		for _, v := range data {
			enc, err := EncodeRLP(v)
			if err != nil {
				return nil, err
			}
			payload = append(payload, enc...)
		}
		prefix, err := encodeRLPLength(0xc0, len(payload))
		if err != nil {
			return nil, err
		}
		return append(prefix, payload...), nil
	default:
		return nil, xerrors.Errorf("input data should either be a list or a byte array, got %T", val)
	}
}

func encodeRLPLength(offset byte, length int) ([]byte, error) {
	if length < 56 {
		return []byte{offset + byte(length)}, nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(length))
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	lenBytes := buf[i:]
	return append([]byte{offset + 55 + byte(len(lenBytes))}, lenBytes...), nil
}

// rlpUint is the minimal big-endian encoding of v, empty for zero.
func rlpUint(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	return buf[i:]
}
