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

// Package avro implements a standalone Avro schema parser, binary datum
// decoder, and JSON projector. Unlike a generic Avro library, the decoder is
// built to reproduce one specific projection contract: byte sequences become
// JSON arrays of integers, decimals are reconstructed from signed big-endian
// big integers, durations become a fixed-format string, and named references
// resolve via a ref table seeded ahead of the value actually selected.
package avro

import "fmt"

// Kind enumerates every Avro schema variant this package understands.
type Kind int

// Schema variants, matching the Avro specification plus logical types.
const (
	KindNull Kind = iota
	KindBoolean
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBytes
	KindString
	KindDate
	KindTimeMillis
	KindTimeMicros
	KindTimestampMillis
	KindTimestampMicros
	KindUUID
	KindDecimal
	KindDuration
	KindFixed
	KindEnum
	KindArray
	KindMap
	KindUnion
	KindRecord
	KindRef
)

// Field is one named member of a Record schema.
type Field struct {
	Name   string
	Schema *Schema
}

// Schema is a node in a parsed Avro schema tree. Only the fields relevant to
// the node's Kind are populated.
type Schema struct {
	Kind Kind

	// Decimal. DecimalFixedSize is 0 when the decimal is bytes-encoded
	// (length-prefixed like Bytes); otherwise it is the fixed byte width.
	Precision        int
	Scale            int
	DecimalFixedSize int

	// Fixed
	Name string
	Size int

	// Enum
	Symbols []string

	// Array
	Items *Schema

	// Map
	Values *Schema

	// Union
	Variants []*Schema

	// Record
	Fields []Field
	Lookup map[string]int

	// Ref
	RefName string
}

func (s *Schema) String() string {
	if s == nil {
		return "<nil>"
	}
	switch s.Kind {
	case KindRecord, KindEnum, KindFixed:
		return fmt.Sprintf("%s(%s)", kindName(s.Kind), s.Name)
	case KindRef:
		return fmt.Sprintf("Ref(%s)", s.RefName)
	default:
		return kindName(s.Kind)
	}
}

func kindName(k Kind) string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindInt:
		return "Int"
	case KindLong:
		return "Long"
	case KindFloat:
		return "Float"
	case KindDouble:
		return "Double"
	case KindBytes:
		return "Bytes"
	case KindString:
		return "String"
	case KindDate:
		return "Date"
	case KindTimeMillis:
		return "TimeMillis"
	case KindTimeMicros:
		return "TimeMicros"
	case KindTimestampMillis:
		return "TimestampMillis"
	case KindTimestampMicros:
		return "TimestampMicros"
	case KindUUID:
		return "Uuid"
	case KindDecimal:
		return "Decimal"
	case KindDuration:
		return "Duration"
	case KindFixed:
		return "Fixed"
	case KindEnum:
		return "Enum"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindUnion:
		return "Union"
	case KindRecord:
		return "Record"
	case KindRef:
		return "Ref"
	default:
		return "Unknown"
	}
}
