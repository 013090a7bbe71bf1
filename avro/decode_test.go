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
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleSchema = `{
  "type": "record",
  "name": "Simple",
  "fields": [
    {"name": "null_field", "type": "null"},
    {"name": "boolean_field", "type": "boolean"},
    {"name": "int_field", "type": "int"},
    {"name": "long_field", "type": "long"},
    {"name": "float_field", "type": "float"},
    {"name": "double_field", "type": "double"},
    {"name": "bytes_field", "type": "bytes"},
    {"name": "string_field", "type": "string"}
  ]
}`

func zigzagEncode(v int64) []byte {
	u := uint64((v << 1) ^ (v >> 63))
	var out []byte
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func float32LE(f float32) []byte {
	bits := math.Float32bits(f)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

func float64LE(f float64) []byte {
	bits := math.Float64bits(f)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(bits >> (8 * i))
	}
	return out
}

func TestRoundTripSimpleTypes(t *testing.T) {
	schema, err := Parse(simpleSchema)
	require.NoError(t, err)

	var datum []byte
	datum = append(datum, 1) // boolean true
	datum = append(datum, zigzagEncode(12)...)
	datum = append(datum, zigzagEncode(12345667)...)
	datum = append(datum, float32LE(123.123)...)
	datum = append(datum, float64LE(12.12)...)
	payload := []byte{0x01, 0x02, 0xaa}
	datum = append(datum, zigzagEncode(int64(len(payload)))...)
	datum = append(datum, payload...)
	str := "YO!! test"
	datum = append(datum, zigzagEncode(int64(len(str)))...)
	datum = append(datum, []byte(str)...)

	decoded, err := Decode(datum, schema)
	require.NoError(t, err)
	out, err := json.Marshal(decoded)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))

	assert.Nil(t, got["null_field"])
	assert.Equal(t, true, got["boolean_field"])
	assert.Equal(t, float64(12), got["int_field"])
	assert.Equal(t, float64(12345667), got["long_field"])
	assert.Equal(t, 123.12300109863281, got["float_field"])
	assert.Equal(t, 12.12, got["double_field"])
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(170)}, got["bytes_field"])
	assert.Equal(t, "YO!! test", got["string_field"])
}

func TestProjectionDeterminism(t *testing.T) {
	schema, err := Parse(`{"type":"record","name":"R","fields":[{"name":"a","type":"int"}]}`)
	require.NoError(t, err)
	datum := zigzagEncode(42)

	first, err := Decode(datum, schema)
	require.NoError(t, err)
	second, err := Decode(datum, schema)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestDecimalProjection(t *testing.T) {
	schema, err := Parse(`{"type":"bytes","logicalType":"decimal","precision":10,"scale":2}`)
	require.NoError(t, err)
	// -123.45 => unscaled -12345, two's complement big-endian bytes
	unscaled := int64(-12345)
	raw := []byte{byte(unscaled >> 8), byte(unscaled)}
	var datum []byte
	datum = append(datum, zigzagEncode(int64(len(raw)))...)
	datum = append(datum, raw...)

	decoded, err := Decode(datum, schema)
	require.NoError(t, err)
	assert.Equal(t, json.Number("-123.45"), decoded)
}

func TestRefResolutionAcrossUnion(t *testing.T) {
	schema, err := Parse(`{
      "type": "record",
      "name": "Outer",
      "fields": [
        {"name": "head", "type": {"type": "enum", "name": "Color", "symbols": ["RED", "GREEN"]}},
        {"name": "tail", "type": ["null", "Color"]}
      ]
    }`)
	require.NoError(t, err)

	var datum []byte
	datum = append(datum, zigzagEncode(1)...) // head = GREEN (index 1)
	datum = append(datum, zigzagEncode(1)...) // union selects variant 1 (Color)
	datum = append(datum, zigzagEncode(0)...) // tail = RED (index 0)

	decoded, err := Decode(datum, schema)
	require.NoError(t, err)
	m := decoded.(map[string]interface{})
	assert.Equal(t, "GREEN", m["head"])
	assert.Equal(t, "RED", m["tail"])
}
