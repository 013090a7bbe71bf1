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

// Package cluster aggregates every capability the command layer needs for
// one configured Kafka cluster: broker connectivity, administration, schema
// resolution, record parsing, and a per-topic consumer created lazily the
// first time a topic is touched.
package cluster

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spothero/kafkacore/admin"
	"github.com/spothero/kafkacore/consumer"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/kafkaclient"
	"github.com/spothero/kafkacore/parser"
	"github.com/spothero/kafkacore/record"
	"github.com/spothero/kafkacore/recordstore"
	"github.com/spothero/kafkacore/schemaregistry"
)

// Config is one cluster's full configuration: its id, broker connection
// settings, and an optional schema registry.
type Config struct {
	ID             string
	Kafka          kafkaclient.Config
	SchemaRegistry schemaregistry.Config
	HasRegistry    bool
}

// RegisterFlags registers every cluster's flags, namespaced by cluster id,
// so a single process can be configured to serve more than one cluster.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	prefix := c.ID + "."
	c.Kafka.ID = c.ID
	c.Kafka.RegisterFlags(flags, prefix)
	flags.StringVar(&c.SchemaRegistry.URL, prefix+"kafka-schema-registry-url", "", "Kafka schema registry url")
	flags.StringVar(&c.SchemaRegistry.Username, prefix+"kafka-schema-registry-username", "", "Kafka schema registry basic auth username")
	flags.StringVar(&c.SchemaRegistry.Password, prefix+"kafka-schema-registry-password", "", "Kafka schema registry basic auth password")
}

// Cluster is the live, connected handle to one configured Kafka cluster,
// shared by every command the host issues against it. Cluster is safe for
// concurrent use; GetConsumer lazily constructs and caches one Consumer per
// topic under a single mutex.
type Cluster struct {
	ID string

	Kafka          *kafkaclient.Client
	Admin          *admin.Client
	SchemaRegistry *schemaregistry.Client
	Parser         *parser.Parser
	Store          *recordstore.Store

	consumerMetrics consumer.Metrics

	mu        sync.Mutex
	consumers map[string]*consumer.Consumer
}

// New connects to a cluster and builds its admin, schema registry, parser,
// and consumer-registration capabilities. store is shared process-wide
// across every Cluster, matching the single embedded record store.
func New(ctx context.Context, cfg Config, store *recordstore.Store, registerer prometheus.Registerer) (*Cluster, error) {
	kafka, err := kafkaclient.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	adminClient, err := admin.New(kafka)
	if err != nil {
		return nil, err
	}
	var resolver parser.SchemaResolver
	var registryClient *schemaregistry.Client
	if cfg.HasRegistry {
		registryClient = schemaregistry.NewClient(cfg.SchemaRegistry, registerer)
		resolver = registryClient
	}
	return &Cluster{
		ID:              cfg.ID,
		Kafka:           kafka,
		Admin:           adminClient,
		SchemaRegistry:  registryClient,
		Parser:          parser.New(resolver),
		Store:           store,
		consumerMetrics: consumer.NewMetrics(registerer),
		consumers:       map[string]*consumer.Consumer{},
	}, nil
}

// Close releases the cluster's broker connection and stops every consumer
// it has created.
func (c *Cluster) Close(ctx context.Context) {
	c.mu.Lock()
	consumers := make([]*consumer.Consumer, 0, len(c.consumers))
	for _, cons := range c.consumers {
		consumers = append(consumers, cons)
	}
	c.mu.Unlock()
	for _, cons := range consumers {
		cons.Stop()
	}
	c.Kafka.Close(ctx)
}

// GetConsumer returns the Consumer for topic, constructing and starting it
// on first use. Concurrent calls for the same topic return the same
// Consumer instance; only the first caller pays the cost of Start.
func (c *Cluster) GetConsumer(ctx context.Context, topic string, config admin.OffsetConfiguration) (*consumer.Consumer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.consumers[topic]; ok {
		return existing, nil
	}
	cons := consumer.New(c.ID, topic, c.Kafka, c.Parser, c.Store, c.consumerMetrics)
	if err := cons.Start(ctx, config); err != nil {
		return nil, err
	}
	c.consumers[topic] = cons
	return cons, nil
}

// Consumer returns the Consumer already created for topic, whether it is
// currently running or stopped, without constructing or starting one. The
// second return value is false if no Consumer has ever been started for
// that topic.
func (c *Cluster) Consumer(topic string) (*consumer.Consumer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cons, ok := c.consumers[topic]
	return cons, ok
}

// Topics lists every topic known to the cluster's brokers.
func (c *Cluster) Topics(ctx context.Context) ([]record.Topic, error) {
	return c.Admin.ListTopics(ctx)
}

// RequireSchemaRegistry returns the cluster's schema registry client, or a
// Configuration error if the cluster was not configured with one.
func (c *Cluster) RequireSchemaRegistry() (*schemaregistry.Client, error) {
	if c.SchemaRegistry == nil {
		return nil, errs.Configuration("cluster "+c.ID+" is not configured with a schema registry", nil)
	}
	return c.SchemaRegistry, nil
}
