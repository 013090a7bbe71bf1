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

// Package command exposes the cluster core's capabilities as a single
// command table keyed by cluster_id, the host-agnostic surface every
// transport (in-process Go callers, the additive httpapi JSON surface) sits
// behind. Every method resolves its cluster from the registry and converts
// any error to the uniform host envelope via errs.ToEnvelope at the
// transport boundary, not here: Dispatcher methods return typed errors so
// in-process Go callers can still use errors.As.
package command

import (
	"context"

	"github.com/spothero/kafkacore/admin"
	"github.com/spothero/kafkacore/consumer"
	"github.com/spothero/kafkacore/record"
	"github.com/spothero/kafkacore/registry"
	"github.com/spothero/kafkacore/schemaregistry"
)

// Dispatcher routes every command in the spec's command table to the
// resolved cluster's capability.
type Dispatcher struct {
	Registry *registry.Registry
}

// New builds a Dispatcher over a live registry.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{Registry: reg}
}

// ListSubjects runs the list_subjects command.
func (d *Dispatcher) ListSubjects(ctx context.Context, clusterID string) ([]string, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return nil, err
	}
	sr, err := c.RequireSchemaRegistry()
	if err != nil {
		return nil, err
	}
	return sr.ListSubjects(ctx)
}

// GetSubject runs the get_subject command.
func (d *Dispatcher) GetSubject(ctx context.Context, clusterID, subjectName string) (schemaregistry.Subject, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return schemaregistry.Subject{}, err
	}
	sr, err := c.RequireSchemaRegistry()
	if err != nil {
		return schemaregistry.Subject{}, err
	}
	return sr.GetSubject(ctx, subjectName)
}

// DeleteSubject runs the delete_subject command.
func (d *Dispatcher) DeleteSubject(ctx context.Context, clusterID, subjectName string) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	sr, err := c.RequireSchemaRegistry()
	if err != nil {
		return err
	}
	return sr.DeleteSubject(ctx, subjectName)
}

// DeleteSubjectVersion runs the delete_subject_version command.
func (d *Dispatcher) DeleteSubjectVersion(ctx context.Context, clusterID, subjectName string, version int) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	sr, err := c.RequireSchemaRegistry()
	if err != nil {
		return err
	}
	return sr.DeleteVersion(ctx, subjectName, version)
}

// ListTopics runs the list_topics command.
func (d *Dispatcher) ListTopics(ctx context.Context, clusterID string) ([]record.Topic, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return nil, err
	}
	return c.Admin.ListTopics(ctx)
}

// GetTopicInfo runs the get_topic_info command.
func (d *Dispatcher) GetTopicInfo(ctx context.Context, clusterID, topicName string) (record.TopicInfo, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return record.TopicInfo{}, err
	}
	return c.Admin.GetTopicInfo(ctx, topicName)
}

// CreateTopic runs the create_topic command.
func (d *Dispatcher) CreateTopic(ctx context.Context, clusterID, name string, partitions int32, isr int16, compacted bool) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	return c.Admin.CreateTopic(ctx, name, partitions, isr, compacted)
}

// DeleteTopic runs the delete_topic command, supplemented from
// original_source/lib/admin/client.rs by direct analogy with create_topic.
func (d *Dispatcher) DeleteTopic(ctx context.Context, clusterID, name string) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	return c.Admin.DeleteTopic(ctx, name)
}

// ListConsumerGroups runs the list_consumer_groups command.
func (d *Dispatcher) ListConsumerGroups(ctx context.Context, clusterID string) ([]string, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return nil, err
	}
	return c.Admin.ListConsumerGroups(ctx)
}

// DescribeConsumerGroup runs the describe_consumer_group command.
func (d *Dispatcher) DescribeConsumerGroup(ctx context.Context, clusterID, name string, ignoreCache bool) (record.ConsumerGroupInfo, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return record.ConsumerGroupInfo{}, err
	}
	return c.Admin.DescribeConsumerGroup(ctx, name, ignoreCache)
}

// DeleteConsumerGroup runs the delete_consumer_group command.
func (d *Dispatcher) DeleteConsumerGroup(ctx context.Context, clusterID, name string) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	return c.Admin.DeleteConsumerGroup(ctx, name)
}

// SetConsumerGroup runs the set_consumer_group command.
func (d *Dispatcher) SetConsumerGroup(ctx context.Context, clusterID, name string, topics []string, config admin.OffsetConfiguration) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	return c.Admin.SetConsumerGroup(ctx, name, topics, config)
}

// ResetConsumerGroupOffset is a thin convenience over set_consumer_group,
// supplemented from original_source/lib/admin/consumer_admin.rs, which
// resets a group to Beginning or End across a set of topics.
func (d *Dispatcher) ResetConsumerGroupOffset(ctx context.Context, clusterID, name string, topics []string, beginning bool) error {
	kind := admin.OffsetEnd
	if beginning {
		kind = admin.OffsetBeginning
	}
	return d.SetConsumerGroup(ctx, clusterID, name, topics, admin.OffsetConfiguration{Kind: kind})
}

// StartConsumer runs the start_consumer command: lazily creates and starts
// the topic's Consumer if it does not already exist.
func (d *Dispatcher) StartConsumer(ctx context.Context, clusterID, topic string, config admin.OffsetConfiguration) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	_, err = c.GetConsumer(ctx, topic, config)
	return err
}

// StopConsumer runs the stop_consumer command. Stopping a topic whose
// Consumer was never started is a no-op: it must never itself start one.
func (d *Dispatcher) StopConsumer(ctx context.Context, clusterID, topic string) error {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return err
	}
	cons, ok := c.Consumer(topic)
	if !ok {
		return nil
	}
	cons.Stop()
	return nil
}

// GetConsumerState runs the state command: whether the topic's Consumer is
// running, its last ingested offset per partition, and its total record
// count. Readable in every lifecycle state, including before the Consumer
// has ever been started, in which case a zero Snapshot is returned.
func (d *Dispatcher) GetConsumerState(ctx context.Context, clusterID, topic string) (consumer.Snapshot, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return consumer.Snapshot{}, err
	}
	cons, ok := c.Consumer(topic)
	if !ok {
		return consumer.Snapshot{LastIngestedOffsetPerPartition: map[int32]int64{}}, nil
	}
	return cons.Snapshot(), nil
}

// GetRecords runs the get_records command.
func (d *Dispatcher) GetRecords(ctx context.Context, clusterID, topic string, offset, limit int) ([]record.Parsed, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return nil, err
	}
	return c.Store.GetRecords(ctx, clusterID, topic, offset, limit)
}

// QueryRecords runs the query_records command.
func (d *Dispatcher) QueryRecords(ctx context.Context, q record.Query) ([]record.Parsed, error) {
	c, err := d.Registry.Get(q.ClusterID)
	if err != nil {
		return nil, err
	}
	return c.Store.QueryRecords(ctx, q)
}

// GetRecordsCount runs the get_records_count command.
func (d *Dispatcher) GetRecordsCount(ctx context.Context, clusterID, topic string) (int, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return 0, err
	}
	return c.Store.GetSize(ctx, clusterID, topic)
}

// DescribeCluster runs the describe_cluster command, supplemented from
// original_source/lib/cluster.rs.
func (d *Dispatcher) DescribeCluster(ctx context.Context, clusterID string) ([]string, int32, error) {
	c, err := d.Registry.Get(clusterID)
	if err != nil {
		return nil, 0, err
	}
	return c.Admin.ClusterMetadata(ctx)
}
