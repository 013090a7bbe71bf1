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

// Package admin exposes topic and consumer-group administration against a
// Kafka cluster: metadata, topic creation/deletion, and consumer-group
// list/describe/delete/set. Group introspection always goes through a probe
// consumer or offset manager that never subscribes or joins, so describing a
// live group never triggers a rebalance of that group.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/kafkaclient"
	"github.com/spothero/kafkacore/log"
	"github.com/spothero/kafkacore/record"
	"go.uber.org/zap"
)

const adminTimeout = 30 * time.Second

// OffsetConfiguration is how a consumer's (or a probe's, via set_consumer_group)
// starting offsets are determined.
type OffsetConfiguration struct {
	Kind               OffsetKind
	OffsetPerPartition map[int32]int64 // Custom
	TimestampMillis    int64           // FromTimestamp
}

// OffsetKind enumerates the ConsumerOffsetConfiguration variants.
type OffsetKind int

// Offset configuration kinds.
const (
	OffsetBeginning OffsetKind = iota
	OffsetEnd
	OffsetCustom
	OffsetFromTimestamp
)

// Client is the admin capability over one Kafka cluster.
type Client struct {
	kafka *kafkaclient.Client
	admin sarama.ClusterAdmin

	mu           sync.Mutex
	cachedTopics map[string]sarama.TopicDetail // metadata cache for describe_consumer_group
}

// New builds an admin Client from an already-connected kafkaclient.Client.
func New(kafka *kafkaclient.Client) (*Client, error) {
	admin, err := sarama.NewClusterAdminFromClient(kafka.Sarama)
	if err != nil {
		return nil, errs.Kafka("failed to build Kafka cluster admin", err)
	}
	return &Client{kafka: kafka, admin: admin}, nil
}

// ListTopics returns every topic's name and partition layout from broker
// metadata.
func (c *Client) ListTopics(ctx context.Context) ([]record.Topic, error) {
	detail, err := c.admin.ListTopics()
	if err != nil {
		return nil, errs.Kafka("failed to list topics", err)
	}
	topics := make([]record.Topic, 0, len(detail))
	for name := range detail {
		partitions, err := c.partitionInfo(name)
		if err != nil {
			return nil, err
		}
		topics = append(topics, record.Topic{Name: name, Partitions: partitions})
	}
	return topics, nil
}

func (c *Client) partitionInfo(topic string) ([]record.PartitionInfo, error) {
	partitionIDs, err := c.kafka.Sarama.Partitions(topic)
	if err != nil {
		return nil, errs.Kafka(fmt.Sprintf("failed to list partitions for topic %s", topic), err)
	}
	out := make([]record.PartitionInfo, 0, len(partitionIDs))
	for _, id := range partitionIDs {
		replicas, err := c.kafka.Sarama.Replicas(topic, id)
		if err != nil {
			return nil, errs.Kafka(fmt.Sprintf("failed to fetch replicas for %s/%d", topic, id), err)
		}
		isr, err := c.kafka.Sarama.InSyncReplicas(topic, id)
		if err != nil {
			return nil, errs.Kafka(fmt.Sprintf("failed to fetch ISR for %s/%d", topic, id), err)
		}
		out = append(out, record.PartitionInfo{ID: id, ISRCount: len(isr), ReplicaCount: len(replicas)})
	}
	return out, nil
}

// GetTopicInfo returns one topic's partitions and broker configuration,
// failing with Kafka{"Topic not found"} if metadata yields zero or multiple
// matches.
func (c *Client) GetTopicInfo(ctx context.Context, name string) (record.TopicInfo, error) {
	detail, err := c.admin.ListTopics()
	if err != nil {
		return record.TopicInfo{}, errs.Kafka("failed to list topics", err)
	}
	if _, ok := detail[name]; !ok {
		return record.TopicInfo{}, errs.Kafka("Topic not found", nil)
	}
	partitions, err := c.partitionInfo(name)
	if err != nil {
		return record.TopicInfo{}, err
	}
	entries, err := c.admin.DescribeConfig(sarama.ConfigResource{Type: sarama.TopicResource, Name: name})
	if err != nil {
		return record.TopicInfo{}, errs.Kafka(fmt.Sprintf("failed to describe config for topic %s", name), err)
	}
	configs := make(map[string]*string, len(entries))
	for _, e := range entries {
		v := e.Value
		configs[e.Name] = &v
	}
	return record.TopicInfo{Name: name, Partitions: partitions, Configurations: configs}, nil
}

// CreateTopic creates a new single topic with a fixed replication factor.
func (c *Client) CreateTopic(ctx context.Context, name string, partitions int32, isr int16, compacted bool) error {
	cleanupPolicy := "delete"
	if compacted {
		cleanupPolicy = "compact"
	}
	detail := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: isr,
		ConfigEntries:     map[string]*string{"cleanup.policy": &cleanupPolicy},
	}
	if err := c.admin.CreateTopic(name, detail, false); err != nil {
		return errs.Kafka(fmt.Sprintf("failed to create topic %s", name), err)
	}
	return nil
}

// DeleteTopic deletes a topic. Supplemented from original_source/lib/admin/client.rs.
func (c *Client) DeleteTopic(ctx context.Context, name string) error {
	if err := c.admin.DeleteTopic(name); err != nil {
		return errs.Kafka(fmt.Sprintf("failed to delete topic %s", name), err)
	}
	return nil
}

// ListConsumerGroups returns every consumer group id known to the cluster.
func (c *Client) ListConsumerGroups(ctx context.Context) ([]string, error) {
	groups, err := c.admin.ListConsumerGroups()
	if err != nil {
		return nil, errs.Kafka("failed to list consumer groups", err)
	}
	out := make([]string, 0, len(groups))
	for name := range groups {
		out = append(out, name)
	}
	return out, nil
}

// DeleteConsumerGroup deletes a consumer group.
func (c *Client) DeleteConsumerGroup(ctx context.Context, name string) error {
	if err := c.admin.DeleteConsumerGroup(name); err != nil {
		return errs.Kafka(fmt.Sprintf("failed to delete consumer group %s", name), err)
	}
	return nil
}

// DescribeConsumerGroup describes a consumer group's state and per-partition
// committed/high-watermark offsets without subscribing or joining it. ignoreCache
// forces a refresh of the cluster's topic/partition metadata.
func (c *Client) DescribeConsumerGroup(ctx context.Context, name string, ignoreCache bool) (record.ConsumerGroupInfo, error) {
	descCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	groups, err := c.admin.DescribeConsumerGroups([]string{name})
	if err != nil {
		return record.ConsumerGroupInfo{}, errs.Kafka(fmt.Sprintf("failed to describe group %s", name), err)
	}
	if len(groups) != 1 {
		return record.ConsumerGroupInfo{}, errs.Kafka(fmt.Sprintf("expected exactly one group named %s, got %d", name, len(groups)), nil)
	}
	group := groups[0]

	assignments, err := c.topicPartitions(ignoreCache)
	if err != nil {
		return record.ConsumerGroupInfo{}, err
	}

	offsetManager, err := sarama.NewOffsetManagerFromClient(name, c.kafka.Sarama)
	if err != nil {
		return record.ConsumerGroupInfo{}, errs.Kafka("failed to build offset manager probe", err)
	}
	defer offsetManager.Close()

	info := record.ConsumerGroupInfo{Name: name, State: group.State}
	for topic, partitions := range assignments {
		for _, partition := range partitions {
			pom, err := offsetManager.ManagePartition(topic, partition)
			if err != nil {
				log.Get(descCtx).Warn("failed to manage partition while describing group",
					zap.String("group", name), zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
				continue
			}
			committed, _ := pom.NextOffset()
			_ = pom.Close()
			if committed < 0 {
				continue // no committed offset for this partition: omit, per spec
			}
			highWatermark, err := c.kafka.Sarama.GetOffset(topic, partition, sarama.OffsetNewest)
			if err != nil {
				return record.ConsumerGroupInfo{}, errs.Kafka(fmt.Sprintf("failed to fetch high watermark for %s/%d", topic, partition), err)
			}
			info.Offsets = append(info.Offsets, record.PartitionOffsets{
				Topic:           topic,
				Partition:       partition,
				CommittedOffset: committed,
				LastOffset:      highWatermark,
			})
		}
	}
	return info, nil
}

// SetConsumerGroup drives a non-joining probe through the same offset
// resolution a real consumer's setup would use, then marks and commits
// (offset - 1) for every partition of the given topics. Because a committed
// offset is the next offset the group reads, the group resumes one record
// before the resolved offset.
func (c *Client) SetConsumerGroup(ctx context.Context, name string, topics []string, config OffsetConfiguration) error {
	offsetManager, err := sarama.NewOffsetManagerFromClient(name, c.kafka.Sarama)
	if err != nil {
		return errs.Kafka("failed to build offset manager probe", err)
	}
	defer offsetManager.Close()

	for _, topic := range topics {
		partitions, err := c.kafka.Sarama.Partitions(topic)
		if err != nil {
			return errs.Kafka(fmt.Sprintf("failed to list partitions for topic %s", topic), err)
		}
		for _, partition := range partitions {
			target, err := ResolveOffset(c.kafka.Sarama, topic, partition, config)
			if err != nil {
				return err
			}
			pom, err := offsetManager.ManagePartition(topic, partition)
			if err != nil {
				return errs.Kafka(fmt.Sprintf("failed to manage partition %s/%d", topic, partition), err)
			}
			pom.MarkOffset(target-1, "")
			if closeErr := pom.Close(); closeErr != nil {
				return errs.Kafka(fmt.Sprintf("failed to commit offset for %s/%d", topic, partition), closeErr)
			}
		}
	}
	return nil
}

// ResolveOffset resolves a single partition's starting offset for an
// OffsetConfiguration, shared between SetConsumerGroup and the per-topic
// consumer's setup_consumer step.
func ResolveOffset(client sarama.Client, topic string, partition int32, config OffsetConfiguration) (int64, error) {
	switch config.Kind {
	case OffsetBeginning:
		off, err := client.GetOffset(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return 0, errs.Kafka(fmt.Sprintf("failed to resolve beginning offset for %s/%d", topic, partition), err)
		}
		return off, nil
	case OffsetEnd:
		off, err := client.GetOffset(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return 0, errs.Kafka(fmt.Sprintf("failed to resolve end offset for %s/%d", topic, partition), err)
		}
		return off, nil
	case OffsetCustom:
		if off, ok := config.OffsetPerPartition[partition]; ok {
			return off, nil
		}
		off, err := client.GetOffset(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return 0, errs.Kafka(fmt.Sprintf("failed to resolve default offset for %s/%d", topic, partition), err)
		}
		return off, nil
	case OffsetFromTimestamp:
		off, err := client.GetOffset(topic, partition, config.TimestampMillis)
		if err != nil {
			return 0, errs.Kafka(fmt.Sprintf("failed to resolve offset at timestamp for %s/%d", topic, partition), err)
		}
		return off, nil
	default:
		return 0, errs.Configuration("unknown offset configuration kind", nil)
	}
}

// topicPartitions returns every topic's partition list, cached per cluster
// unless ignoreCache forces a refresh.
func (c *Client) topicPartitions(ignoreCache bool) (map[string][]int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ignoreCache || c.cachedTopics == nil {
		detail, err := c.admin.ListTopics()
		if err != nil {
			return nil, errs.Kafka("failed to list topics", err)
		}
		c.cachedTopics = detail
	}
	out := make(map[string][]int32, len(c.cachedTopics))
	for topic := range c.cachedTopics {
		partitions, err := c.kafka.Sarama.Partitions(topic)
		if err != nil {
			return nil, errs.Kafka(fmt.Sprintf("failed to list partitions for topic %s", topic), err)
		}
		out[topic] = partitions
	}
	return out, nil
}

// ClusterMetadata reports bootstrap brokers and the current controller id,
// used by the host to show connectivity before any topic is selected.
// Supplemented from original_source/lib/cluster.rs.
func (c *Client) ClusterMetadata(ctx context.Context) ([]string, int32, error) {
	brokers := c.kafka.Sarama.Brokers()
	addrs := make([]string, 0, len(brokers))
	for _, b := range brokers {
		addrs = append(addrs, b.Addr())
	}
	controller, err := c.kafka.Sarama.Controller()
	if err != nil {
		return addrs, 0, errs.Kafka("failed to resolve cluster controller", err)
	}
	return addrs, controller.ID(), nil
}
