// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package codec implements the canonical object-serialization scheme used
// to turn logical keys and values into the opaque, self-describing byte
// strings the storage layer persists. It is the Go analogue
// of the Python implementation's use of pickle: encode anything comparable
// the caller hands us, decode it back to the value in its normalized type
// (int64, float64, or json.Unmarshal's default shape; see Encode).
//
// No example in the retrieval pack ships a generic object-pickling library
// for Go, so this is deliberately built on the standard library
// (encoding/binary, encoding/json) rather than grounded on a third-party
// dependency; see DESIGN.md for the justification.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Tag identifies the dynamic type encoded in a value's byte string.
type Tag byte

const (
	TagBytes  Tag = 1
	TagString Tag = 2
	TagInt64  Tag = 3
	TagFloat  Tag = 4
	TagBool   Tag = 5
	TagJSON   Tag = 6
)

// Encode serializes v into a self-describing byte string. Supported
// dynamic types: []byte, string, int/int32/int64 (normalized to int64),
// float32/float64, bool. Anything else, including the other integer
// kinds, is marshaled with encoding/json and tagged TagJSON, so arbitrary structs
// round-trip so long as they are JSON-encodable and the caller decodes
// into a value of the same shape (see DecodeInto).
func Encode(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch val := v.(type) {
	case []byte:
		buf.WriteByte(byte(TagBytes))
		buf.Write(val)
	case string:
		buf.WriteByte(byte(TagString))
		buf.WriteString(val)
	case int:
		writeInt64(buf, int64(val))
	case int32:
		writeInt64(buf, int64(val))
	case int64:
		writeInt64(buf, val)
	case float32:
		writeFloat64(buf, float64(val))
	case float64:
		writeFloat64(buf, val)
	case bool:
		buf.WriteByte(byte(TagBool))
		if val {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	default:
		bs, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("codec: encode: %w", err)
		}
		buf.WriteByte(byte(TagJSON))
		buf.Write(bs)
	}
	return buf.Bytes(), nil
}

func writeInt64(buf *bytes.Buffer, n int64) {
	buf.WriteByte(byte(TagInt64))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(n))
	buf.Write(tmp[:])
}

func writeFloat64(buf *bytes.Buffer, f float64) {
	buf.WriteByte(byte(TagFloat))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(f))
	buf.Write(tmp[:])
}

// Decode reverses Encode, returning a dynamically-typed Go value. JSON-
// tagged payloads decode to map[string]interface{}/[]interface{}/etc.
// (json.Unmarshal's default shape) unless the caller uses DecodeInto.
func Decode(bs []byte) (interface{}, error) {
	if len(bs) == 0 {
		return nil, fmt.Errorf("codec: decode: empty input")
	}
	tag := Tag(bs[0])
	payload := bs[1:]
	switch tag {
	case TagBytes:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case TagString:
		return string(payload), nil
	case TagInt64:
		if len(payload) != 8 {
			return nil, fmt.Errorf("codec: decode: malformed int64")
		}
		return int64(binary.BigEndian.Uint64(payload)), nil
	case TagFloat:
		if len(payload) != 8 {
			return nil, fmt.Errorf("codec: decode: malformed float64")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
	case TagBool:
		if len(payload) != 1 {
			return nil, fmt.Errorf("codec: decode: malformed bool")
		}
		return payload[0] != 0, nil
	case TagJSON:
		var out interface{}
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("codec: decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: decode: unknown tag %d", tag)
	}
}

// DecodeInto reverses Encode for a JSON-tagged payload into a concrete Go
// type supplied by the caller (a pointer), bypassing the dynamic decoding
// Decode performs for TagJSON.
func DecodeInto(bs []byte, out interface{}) error {
	if len(bs) == 0 {
		return fmt.Errorf("codec: decode: empty input")
	}
	if Tag(bs[0]) != TagJSON {
		return fmt.Errorf("codec: decode: not a JSON payload")
	}
	return json.Unmarshal(bs[1:], out)
}

// StringBytes UTF-8 encodes s without the self-describing tag, used for
// the useSerialize=false raw pass-through mode.
func StringBytes(s string) []byte {
	return []byte(s)
}

// BytesString decodes raw UTF-8 bytes back to a string for the
// useSerialize=false mode.
func BytesString(bs []byte) string {
	return string(bs)
}
