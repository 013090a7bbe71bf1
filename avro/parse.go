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
	"fmt"
)

// Parse parses the textual JSON representation of an Avro schema into a
// Schema tree. Named types (record, enum, fixed) are registered in a
// definitions table as they are encountered so that later string references
// to them resolve to a Ref node.
func Parse(text string) (*Schema, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	defs := map[string]*Schema{}
	return parseNode(raw, "", defs)
}

func fullName(namespace string, name string) string {
	if namespace == "" || hasDot(name) {
		return name
	}
	return namespace + "." + name
}

func hasDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}

func parseNode(raw interface{}, namespace string, defs map[string]*Schema) (*Schema, error) {
	switch v := raw.(type) {
	case string:
		return parsePrimitiveOrRef(v, defs)
	case []interface{}:
		variants := make([]*Schema, 0, len(v))
		for _, item := range v {
			s, err := parseNode(item, namespace, defs)
			if err != nil {
				return nil, err
			}
			variants = append(variants, s)
		}
		return &Schema{Kind: KindUnion, Variants: variants}, nil
	case map[string]interface{}:
		return parseComplex(v, namespace, defs)
	default:
		return nil, fmt.Errorf("unsupported schema node: %T", raw)
	}
}

func parsePrimitiveOrRef(name string, defs map[string]*Schema) (*Schema, error) {
	switch name {
	case "null":
		return &Schema{Kind: KindNull}, nil
	case "boolean":
		return &Schema{Kind: KindBoolean}, nil
	case "int":
		return &Schema{Kind: KindInt}, nil
	case "long":
		return &Schema{Kind: KindLong}, nil
	case "float":
		return &Schema{Kind: KindFloat}, nil
	case "double":
		return &Schema{Kind: KindDouble}, nil
	case "bytes":
		return &Schema{Kind: KindBytes}, nil
	case "string":
		return &Schema{Kind: KindString}, nil
	}
	if def, ok := defs[name]; ok {
		_ = def
		return &Schema{Kind: KindRef, RefName: name}, nil
	}
	// Forward reference: the name may be defined later in the same
	// traversal (mutually recursive records). Emit a Ref regardless; the
	// projector resolves it against the table populated during its own
	// traversal rather than at parse time.
	return &Schema{Kind: KindRef, RefName: name}, nil
}

func parseComplex(obj map[string]interface{}, namespace string, defs map[string]*Schema) (*Schema, error) {
	typeField, _ := obj["type"].(string)
	if ns, ok := obj["namespace"].(string); ok && ns != "" {
		namespace = ns
	}
	if logical, ok := obj["logicalType"].(string); ok {
		if s, handled, err := parseLogical(logical, typeField, obj); handled {
			return s, err
		}
	}
	switch typeField {
	case "record", "error":
		name, _ := obj["name"].(string)
		full := fullName(namespace, name)
		rec := &Schema{Kind: KindRecord, Name: full, Lookup: map[string]int{}}
		defs[full] = rec
		rawFields, _ := obj["fields"].([]interface{})
		for i, rf := range rawFields {
			fieldObj, ok := rf.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("record %s: field %d is not an object", full, i)
			}
			fieldName, _ := fieldObj["name"].(string)
			fieldSchema, err := parseNode(fieldObj["type"], namespace, defs)
			if err != nil {
				return nil, fmt.Errorf("record %s field %s: %w", full, fieldName, err)
			}
			rec.Fields = append(rec.Fields, Field{Name: fieldName, Schema: fieldSchema})
			rec.Lookup[fieldName] = i
		}
		return rec, nil
	case "enum":
		name, _ := obj["name"].(string)
		full := fullName(namespace, name)
		rawSymbols, _ := obj["symbols"].([]interface{})
		symbols := make([]string, 0, len(rawSymbols))
		for _, s := range rawSymbols {
			if str, ok := s.(string); ok {
				symbols = append(symbols, str)
			}
		}
		en := &Schema{Kind: KindEnum, Name: full, Symbols: symbols}
		defs[full] = en
		return en, nil
	case "fixed":
		name, _ := obj["name"].(string)
		full := fullName(namespace, name)
		size, _ := obj["size"].(float64)
		fx := &Schema{Kind: KindFixed, Name: full, Size: int(size)}
		defs[full] = fx
		return fx, nil
	case "array":
		items, err := parseNode(obj["items"], namespace, defs)
		if err != nil {
			return nil, err
		}
		return &Schema{Kind: KindArray, Items: items}, nil
	case "map":
		values, err := parseNode(obj["values"], namespace, defs)
		if err != nil {
			return nil, err
		}
		return &Schema{Kind: KindMap, Values: values}, nil
	case "":
		return nil, fmt.Errorf("schema object missing \"type\"")
	default:
		// nested {"type": "<primitive or named ref>"} without a recognized
		// complex kind, e.g. {"type": "string"} or {"type": "SomeRecord"}
		return parseNode(typeField, namespace, defs)
	}
}

// parseLogical handles the logicalType annotations layered on top of an
// underlying primitive or fixed type. Returns handled=false if the
// logicalType is unrecognized, in which case the caller falls back to the
// underlying type.
func parseLogical(logical string, underlying string, obj map[string]interface{}) (*Schema, bool, error) {
	switch logical {
	case "date":
		return &Schema{Kind: KindDate}, true, nil
	case "time-millis":
		return &Schema{Kind: KindTimeMillis}, true, nil
	case "time-micros":
		return &Schema{Kind: KindTimeMicros}, true, nil
	case "timestamp-millis":
		return &Schema{Kind: KindTimestampMillis}, true, nil
	case "timestamp-micros":
		return &Schema{Kind: KindTimestampMicros}, true, nil
	case "uuid":
		return &Schema{Kind: KindUUID}, true, nil
	case "decimal":
		precision, _ := obj["precision"].(float64)
		scale, _ := obj["scale"].(float64)
		fixedSize := 0
		if underlying == "fixed" {
			if size, ok := obj["size"].(float64); ok {
				fixedSize = int(size)
			}
		}
		return &Schema{Kind: KindDecimal, Precision: int(precision), Scale: int(scale), DecimalFixedSize: fixedSize}, true, nil
	case "duration":
		return &Schema{Kind: KindDuration}, true, nil
	default:
		return nil, false, nil
	}
}
