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

// Package parser decodes a raw Kafka record's key and value into a Parsed
// record, deciding per field whether the value is Avro-framed, and if so
// resolving the schema through a Schema Registry client before projecting
// the binary datum to JSON text.
package parser

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"

	"github.com/spothero/kafkacore/avro"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/record"
)

// SchemaResolver is the capability the parser needs from a Schema Registry
// client: resolve a schema id to a parsed Avro schema.
type SchemaResolver interface {
	GetSchemaByID(ctx context.Context, id uint32) (*avro.Schema, error)
}

// Parser decodes raw Kafka records into Parsed records. SchemaRegistry may
// be nil, in which case every value is decoded as a UTF-8 string regardless
// of its framing.
type Parser struct {
	SchemaRegistry SchemaResolver
}

// New builds a Parser. registry may be nil.
func New(registry SchemaResolver) *Parser {
	return &Parser{SchemaRegistry: registry}
}

// Parse decodes a raw record's key as a lossy UTF-8 string and its value as
// Avro (when framed and a schema registry is configured) or a lossy UTF-8
// string otherwise.
func (p *Parser) Parse(ctx context.Context, topic string, raw record.Raw) (record.Parsed, error) {
	parsed := record.Parsed{
		Topic:     topic,
		Partition: raw.Partition,
		Offset:    raw.Offset,
		Timestamp: raw.Timestamp,
	}
	if raw.Key != nil {
		key := strings.ToValidUTF8(string(raw.Key), "�")
		parsed.Key = &key
	}
	if raw.Value == nil {
		return parsed, nil
	}
	if p.SchemaRegistry != nil && isAvroFramed(raw.Value) {
		payload, err := p.decodeAvroValue(ctx, raw.Value)
		if err != nil {
			return record.Parsed{}, err
		}
		parsed.Payload = &payload
		return parsed, nil
	}
	payload := strings.ToValidUTF8(string(raw.Value), "�")
	parsed.Payload = &payload
	return parsed, nil
}

// isAvroFramed reports whether b carries the Confluent Avro wire prefix:
// length > 5 and the first byte is the magic 0x00.
func isAvroFramed(b []byte) bool {
	return len(b) > 5 && b[0] == 0x00
}

// SchemaIDOf extracts the big-endian schema id from an Avro-framed payload's
// bytes 1..5. Callers must first confirm isAvroFramed or an equivalent
// length check; len(b) >= 5 is required.
func SchemaIDOf(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[1:5])
}

func (p *Parser) decodeAvroValue(ctx context.Context, value []byte) (string, error) {
	if len(value) < 5 {
		return "", errs.AvroParse("Avro-framed payload shorter than 5 bytes", nil)
	}
	id := SchemaIDOf(value)
	schema, err := p.SchemaRegistry.GetSchemaByID(ctx, id)
	if err != nil {
		return "", err
	}
	projected, err := avro.Decode(value[5:], schema)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(projected)
	if err != nil {
		return "", errs.AvroParse("failed to marshal projected Avro value to JSON", err)
	}
	return string(out), nil
}
