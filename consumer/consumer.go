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

// Package consumer runs one topic's ingestion loop: a partition consumer
// per partition, parsed through a Parser and appended to a record Store. A
// Consumer is lazily created the first time a topic is requested and lives
// for the process's lifetime once started.
package consumer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spothero/kafkacore/admin"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/kafkaclient"
	"github.com/spothero/kafkacore/log"
	"github.com/spothero/kafkacore/parser"
	"github.com/spothero/kafkacore/record"
	"github.com/spothero/kafkacore/recordstore"
	"go.uber.org/zap"
)

// State is a Consumer's position in its Fresh -> Running -> Stopped
// lifecycle. A Stopped Consumer can be started again, returning to Running;
// it never returns to Fresh.
type State int32

// Consumer lifecycle states.
const (
	Fresh State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Metrics is the Prometheus bundle shared by every Consumer in the process.
type Metrics struct {
	recordsConsumed *prometheus.CounterVec
	consumerErrors  *prometheus.CounterVec
}

// NewMetrics builds and registers the consumer metrics bundle. Registration
// failures are logged, not fatal, matching the ambient metrics convention
// used elsewhere in this module.
func NewMetrics(registry prometheus.Registerer) Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	labels := []string{"cluster_id", "topic"}
	recordsConsumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kafkacore_consumer_records_total",
		Help: "Total number of records ingested per topic",
	}, labels)
	consumerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kafkacore_consumer_errors_total",
		Help: "Total number of partition consumer errors per topic",
	}, labels)
	for name, collector := range map[string]prometheus.Collector{
		"recordsConsumed": recordsConsumed,
		"consumerErrors":  consumerErrors,
	} {
		if err := registry.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				log.Get(context.Background()).Error("failed to register consumer metric", zap.String("metric", name), zap.Error(err))
			}
		}
	}
	return Metrics{recordsConsumed: recordsConsumed, consumerErrors: consumerErrors}
}

// Snapshot is a Consumer's state as surfaced by the state command: whether
// it is currently running, the last ingested offset observed per
// partition, and the total record count ingested since the Consumer was
// built. Readable regardless of lifecycle state.
type Snapshot struct {
	Running                        bool
	LastIngestedOffsetPerPartition map[int32]int64
	Count                          int64
}

// Consumer ingests one topic's partitions into the shared record Store.
type Consumer struct {
	ClusterID string
	Topic     string

	kafka   *kafkaclient.Client
	parser  *parser.Parser
	store   *recordstore.Store
	metrics Metrics

	state  int32
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu    sync.Mutex
	lastOffset map[int32]int64
	count      int64
}

// New builds a Consumer in the Fresh state. Start must be called before any
// partition is actually consumed.
func New(clusterID, topic string, kafka *kafkaclient.Client, p *parser.Parser, store *recordstore.Store, metrics Metrics) *Consumer {
	return &Consumer{
		ClusterID:  clusterID,
		Topic:      topic,
		kafka:      kafka,
		parser:     p,
		store:      store,
		metrics:    metrics,
		lastOffset: map[int32]int64{},
	}
}

// State reports the Consumer's current lifecycle state.
func (c *Consumer) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// Snapshot reports the Consumer's state command output: whether it is
// currently running, the last ingested offset per partition, and the total
// record count, all readable in any lifecycle state.
func (c *Consumer) Snapshot() Snapshot {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	offsets := make(map[int32]int64, len(c.lastOffset))
	for partition, offset := range c.lastOffset {
		offsets[partition] = offset
	}
	return Snapshot{
		Running:                        c.State() == Running,
		LastIngestedOffsetPerPartition: offsets,
		Count:                          c.count,
	}
}

// Start transitions Fresh -> Running or Stopped -> Running, creating the
// topic's record table (idempotent) and spawning one goroutine per
// partition, each resolving its starting offset via config and then
// reading until Stop is called. ctx bounds only the setup work done inside
// Start; canceling it does not stop the partition goroutines. Calling Start
// on an already-Running Consumer is a no-op.
func (c *Consumer) Start(ctx context.Context, config admin.OffsetConfiguration) error {
	if !c.transitionToRunning() {
		return nil
	}
	if err := c.store.CreateTopicTable(ctx, c.ClusterID, c.Topic); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	consumer, err := sarama.NewConsumerFromClient(c.kafka.Sarama)
	if err != nil {
		return errs.Kafka("failed to build partition consumer", err)
	}
	partitions, err := c.kafka.Sarama.Partitions(c.Topic)
	if err != nil {
		return errs.Kafka("failed to list partitions for topic "+c.Topic, err)
	}
	for _, partitionID := range partitions {
		startOffset, err := admin.ResolveOffset(c.kafka.Sarama, c.Topic, partitionID, config)
		if err != nil {
			return err
		}
		pc, err := consumer.ConsumePartition(c.Topic, partitionID, startOffset)
		if err != nil {
			return errs.Kafka("failed to start partition consumer", err)
		}
		c.wg.Add(1)
		go c.consumePartition(runCtx, pc)
	}
	log.Get(ctx).Info("started topic consumer",
		zap.String("cluster_id", c.ClusterID), zap.String("topic", c.Topic), zap.Int("partitions", len(partitions)))
	return nil
}

func (c *Consumer) consumePartition(ctx context.Context, pc sarama.PartitionConsumer) {
	defer c.wg.Done()
	defer pc.Close()
	labels := prometheus.Labels{"cluster_id": c.ClusterID, "topic": c.Topic}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			raw := record.Raw{Partition: msg.Partition, Offset: msg.Offset, Key: msg.Key, Value: msg.Value}
			if !msg.Timestamp.IsZero() {
				millis := msg.Timestamp.UnixMilli()
				raw.Timestamp = &millis
			}
			parsed, err := c.parser.Parse(ctx, c.Topic, raw)
			if err != nil {
				c.metrics.consumerErrors.With(labels).Inc()
				log.Get(ctx).Warn("failed to parse record", zap.String("topic", c.Topic), zap.Error(err))
				continue
			}
			if err := c.store.InsertRecord(ctx, c.ClusterID, c.Topic, parsed); err != nil {
				c.metrics.consumerErrors.With(labels).Inc()
				log.Get(ctx).Error("failed to persist record", zap.String("topic", c.Topic), zap.Error(err))
				continue
			}
			c.metrics.recordsConsumed.With(labels).Inc()
			c.statsMu.Lock()
			c.lastOffset[msg.Partition] = msg.Offset
			c.count++
			c.statsMu.Unlock()
		case err, ok := <-pc.Errors():
			if !ok {
				return
			}
			c.metrics.consumerErrors.With(labels).Inc()
			log.Get(ctx).Warn("partition consumer error", zap.String("topic", c.Topic), zap.Error(err))
		}
	}
}

// transitionToRunning moves the state machine into Running from any
// non-Running state (Fresh or Stopped), looping only when racing a
// concurrent caller. Reports false when already Running, in which case
// Start is a no-op.
func (c *Consumer) transitionToRunning() bool {
	for {
		cur := atomic.LoadInt32(&c.state)
		if State(cur) == Running {
			return false
		}
		if atomic.CompareAndSwapInt32(&c.state, cur, int32(Running)) {
			return true
		}
	}
}

// Stop transitions Running -> Stopped, canceling every partition goroutine
// and waiting for them to exit. Calling Stop on a non-Running Consumer is a
// no-op.
func (c *Consumer) Stop() {
	if !atomic.CompareAndSwapInt32(&c.state, int32(Running), int32(Stopped)) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
