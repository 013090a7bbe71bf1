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

// Package record defines the data types shared across the cluster core:
// raw and parsed Kafka records, topic/consumer-group metadata, and the
// ad-hoc query shape.
package record

// Raw is a Kafka record as read off the wire, before parsing.
type Raw struct {
	Partition int32
	Offset    int64
	Timestamp *int64
	Key       []byte
	Value     []byte
}

// Parsed is a Kafka record after key/value decoding. Payload is JSON text
// when Avro decoding succeeded, raw UTF-8 text otherwise, and nil when the
// source payload was absent.
type Parsed struct {
	Topic     string  `json:"topic" db:"-"`
	Partition int32   `json:"partition" db:"partition"`
	Offset    int64   `json:"offset" db:"offset"`
	Timestamp *int64  `json:"timestamp" db:"timestamp"`
	Key       *string `json:"key" db:"key"`
	Payload   *string `json:"payload" db:"payload"`
}

// PartitionInfo describes one partition of a topic.
type PartitionInfo struct {
	ID           int32 `json:"id"`
	ISRCount     int   `json:"isr_count"`
	ReplicaCount int   `json:"replica_count"`
}

// Topic is the lightweight topic listing shape.
type Topic struct {
	Name       string          `json:"name"`
	Partitions []PartitionInfo `json:"partitions"`
}

// TopicInfo is a single topic's full metadata, including broker configs.
type TopicInfo struct {
	Name           string             `json:"name"`
	Partitions     []PartitionInfo    `json:"partitions"`
	Configurations map[string]*string `json:"configurations"`
}

// PartitionOffsets describes one partition's offset state within a
// consumer group.
type PartitionOffsets struct {
	Topic           string `json:"topic"`
	Partition       int32  `json:"partition"`
	CommittedOffset int64  `json:"committed_offset"`
	LastOffset      int64  `json:"last_offset"`
}

// ConsumerGroupInfo is the union of both variants found in the original
// source's consumer group description: state is always present, and every
// offset entry carries the high-watermark alongside the committed offset.
type ConsumerGroupInfo struct {
	Name    string             `json:"name"`
	State   string             `json:"state"`
	Offsets []PartitionOffsets `json:"offsets"`
}

// Query is an ad-hoc SQL query against one topic's record table.
type Query struct {
	ClusterID     string `json:"cluster_id"`
	TopicName     string `json:"topic_name"`
	Offset        int    `json:"offset"`
	Limit         int    `json:"limit"`
	QueryTemplate string `json:"query_template"`
}
