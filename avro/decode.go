// Copyright 2019 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package avro

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/spothero/kafkacore/errs"
)

// reader is a cursor over an Avro binary datum.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of datum")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of datum wanting %d bytes", n)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// zigzag decodes an Avro long/int: a variable-length zigzag-encoded varint.
func (r *reader) zigzag() (int64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("varint too long")
		}
	}
	return int64(result>>1) ^ -(int64(result) & 1), nil
}

func (r *reader) boolean() (bool, error) {
	b, err := r.byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *reader) float32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) float64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.zigzag()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

// refTable is the mutable name->schema table threaded through one decode
// walk so that Ref nodes resolve to the named type that defined them.
type refTable map[string]*Schema

func seed(refs refTable, s *Schema) {
	switch s.Kind {
	case KindRecord, KindEnum, KindFixed:
		if _, ok := refs[s.Name]; !ok {
			refs[s.Name] = s
		}
	}
}

// Decode reads one binary-encoded Avro datum against schema and projects it
// directly to a JSON-marshalable Go value, per the projection table: bytes
// and fixed become arrays of byte values, decimals are reconstructed from
// their signed big-endian magnitude and scale, durations become a fixed
// "M months D days N millis" string, and references resolve against a table
// seeded with every named type visited so far in this walk.
func Decode(data []byte, schema *Schema) (interface{}, error) {
	refs := refTable{}
	r := &reader{buf: data}
	v, err := decodeNode(r, schema, refs)
	if err != nil {
		return nil, errs.AvroParse(err.Error(), err)
	}
	return v, nil
}

func decodeNode(r *reader, schema *Schema, refs refTable) (interface{}, error) {
	seed(refs, schema)
	switch schema.Kind {
	case KindNull:
		return nil, nil
	case KindBoolean:
		return r.boolean()
	case KindInt:
		v, err := r.zigzag()
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case KindLong:
		return r.zigzag()
	case KindFloat:
		// Widen to float64 before returning so JSON marshaling reflects the
		// float32 value's exact binary representation (matching the source
		// decoder's behavior) rather than the shortest float32 round-trip.
		v, err := r.float32()
		if err != nil {
			return nil, err
		}
		return float64(v), nil
	case KindDouble:
		return r.float64()
	case KindBytes:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return byteArrayJSON(b), nil
	case KindString:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case KindDate, KindTimeMillis:
		v, err := r.zigzag()
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindTimeMicros, KindTimestampMillis, KindTimestampMicros:
		return r.zigzag()
	case KindUUID:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case KindDecimal:
		var raw []byte
		var err error
		if schema.DecimalFixedSize > 0 {
			raw, err = r.take(schema.DecimalFixedSize)
		} else {
			raw, err = r.bytes()
		}
		if err != nil {
			return nil, err
		}
		return decimalJSON(raw, schema.Scale), nil
	case KindDuration:
		raw, err := r.take(12)
		if err != nil {
			return nil, err
		}
		months := binary.LittleEndian.Uint32(raw[0:4])
		days := binary.LittleEndian.Uint32(raw[4:8])
		millis := binary.LittleEndian.Uint32(raw[8:12])
		return fmt.Sprintf("%d months %d days %d millis", months, days, millis), nil
	case KindFixed:
		b, err := r.take(schema.Size)
		if err != nil {
			return nil, err
		}
		return byteArrayJSON(b), nil
	case KindEnum:
		idx, err := r.zigzag()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(schema.Symbols) {
			return nil, fmt.Errorf("enum %s: symbol index %d out of range", schema.Name, idx)
		}
		return schema.Symbols[idx], nil
	case KindArray:
		var out []interface{}
		for {
			count, err := r.zigzag()
			if err != nil {
				return nil, err
			}
			if count == 0 {
				break
			}
			if count < 0 {
				count = -count
				if _, err := r.zigzag(); err != nil { // block byte size, unused
					return nil, err
				}
			}
			for i := int64(0); i < count; i++ {
				item, err := decodeNode(r, schema.Items, refs)
				if err != nil {
					return nil, err
				}
				out = append(out, item)
			}
		}
		if out == nil {
			out = []interface{}{}
		}
		return out, nil
	case KindMap:
		out := map[string]interface{}{}
		for {
			count, err := r.zigzag()
			if err != nil {
				return nil, err
			}
			if count == 0 {
				break
			}
			if count < 0 {
				count = -count
				if _, err := r.zigzag(); err != nil {
					return nil, err
				}
			}
			for i := int64(0); i < count; i++ {
				keyBytes, err := r.bytes()
				if err != nil {
					return nil, err
				}
				val, err := decodeNode(r, schema.Values, refs)
				if err != nil {
					return nil, err
				}
				out[string(keyBytes)] = val
			}
		}
		return out, nil
	case KindUnion:
		idx, err := r.zigzag()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(schema.Variants) {
			return nil, fmt.Errorf("union: variant index %d out of range", idx)
		}
		// Pre-seed the ref table with every named variant before recursing,
		// since the selected datum may itself reference a later variant.
		for _, variant := range schema.Variants {
			seed(refs, variant)
		}
		return decodeNode(r, schema.Variants[idx], refs)
	case KindRecord:
		out := map[string]interface{}{}
		for _, field := range schema.Fields {
			val, err := decodeNode(r, field.Schema, refs)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			out[field.Name] = val
		}
		return out, nil
	case KindRef:
		resolved, ok := refs[schema.RefName]
		if !ok {
			return nil, fmt.Errorf("unresolved reference %q", schema.RefName)
		}
		return decodeNode(r, resolved, refs)
	default:
		return nil, fmt.Errorf("unsupported schema kind %v", schema.Kind)
	}
}

// byteArrayJSON turns raw bytes into the JSON array-of-integers form used
// for Bytes and Fixed values.
func byteArrayJSON(b []byte) []interface{} {
	out := make([]interface{}, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

// decimalJSON reconstructs a numeric literal from a signed big-endian
// big-integer and a scale, preserving full precision rather than truncating
// through an int64 intermediate.
func decimalJSON(raw []byte, scale int) json.Number {
	unscaled := bigIntFromSignedBytes(raw)
	return json.Number(decimalString(unscaled, scale))
}

func bigIntFromSignedBytes(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	n := new(big.Int).SetBytes(b)
	if b[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(b)))
		n.Sub(n, mod)
	}
	return n
}

func decimalString(unscaled *big.Int, scale int) string {
	if scale <= 0 {
		shifted := new(big.Int).Set(unscaled)
		for i := 0; i < -scale; i++ {
			shifted.Mul(shifted, big.NewInt(10))
		}
		return shifted.String()
	}
	neg := unscaled.Sign() < 0
	abs := new(big.Int).Abs(unscaled)
	digits := abs.String()
	for len(digits) <= scale {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-scale]
	fracPart := digits[len(digits)-scale:]
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%s", sign, intPart, fracPart)
}
