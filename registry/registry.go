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

// Package registry holds the process-wide cluster_id -> Cluster map, built
// once at startup from a persisted YAML configuration file and handed to
// the command dispatcher.
package registry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/spothero/kafkacore/cluster"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/kafkaclient"
	"github.com/spothero/kafkacore/recordstore"
	"github.com/spothero/kafkacore/schemaregistry"
)

// PersistedCluster is one cluster entry in the persisted configuration file.
type PersistedCluster struct {
	ID                string `mapstructure:"id"`
	Brokers           string `mapstructure:"brokers"`
	KafkaVersion      string `mapstructure:"kafka_version"`
	SchemaRegistryURL string `mapstructure:"schema_registry_url"`
	SASLUsername      string `mapstructure:"sasl_username"`
	SASLPassword      string `mapstructure:"sasl_password"`
	TLSCaCrtPath      string `mapstructure:"tls_ca_crt_path"`
	TLSCrtPath        string `mapstructure:"tls_crt_path"`
	TLSKeyPath        string `mapstructure:"tls_key_path"`
}

// PersistedConfig is the on-disk shape of the whole registry: a flat list of
// clusters, matching the original host-side "clusters.yaml" persisted
// configuration file.
type PersistedConfig struct {
	Clusters []PersistedCluster `mapstructure:"clusters"`
}

// Registry owns every configured cluster's live handle, keyed by id.
type Registry struct {
	clusters map[string]*cluster.Cluster
	store    *recordstore.Store
}

// Load reads path via viper (YAML, JSON, and TOML are all accepted; viper
// detects the format from the extension) and connects every configured
// cluster. store is the single process-wide record store shared by every
// cluster's consumers.
func Load(ctx context.Context, path string, store *recordstore.Store, registerer prometheus.Registerer) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errs.IO(fmt.Sprintf("failed to read persisted configuration at %s", path), err)
	}
	var cfg PersistedConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.IO("failed to unmarshal persisted configuration", err)
	}
	return build(ctx, cfg, store, registerer)
}

func build(ctx context.Context, cfg PersistedConfig, store *recordstore.Store, registerer prometheus.Registerer) (*Registry, error) {
	r := &Registry{clusters: map[string]*cluster.Cluster{}, store: store}
	for _, pc := range cfg.Clusters {
		clusterCfg := cluster.Config{
			ID: pc.ID,
			Kafka: kafkaclient.Config{
				ID:           pc.ID,
				Brokers:      pc.Brokers,
				ClientID:     "kafkacore",
				KafkaVersion: defaultString(pc.KafkaVersion, "2.8.0"),
				SASLUsername: pc.SASLUsername,
				SASLPassword: pc.SASLPassword,
				TLSCaCrtPath: pc.TLSCaCrtPath,
				TLSCrtPath:   pc.TLSCrtPath,
				TLSKeyPath:   pc.TLSKeyPath,
			},
		}
		if pc.SchemaRegistryURL != "" {
			clusterCfg.HasRegistry = true
			clusterCfg.SchemaRegistry = schemaregistry.Config{URL: pc.SchemaRegistryURL}
		}
		c, err := cluster.New(ctx, clusterCfg, store, registerer)
		if err != nil {
			return nil, fmt.Errorf("cluster %q: %w", pc.ID, err)
		}
		r.clusters[pc.ID] = c
	}
	return r, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Get returns the Cluster registered under id, or a Configuration error if
// no such cluster was configured.
func (r *Registry) Get(id string) (*cluster.Cluster, error) {
	c, ok := r.clusters[id]
	if !ok {
		return nil, errs.Configuration(fmt.Sprintf("unknown cluster id %q", id), nil)
	}
	return c, nil
}

// ClusterIDs lists every configured cluster id.
func (r *Registry) ClusterIDs() []string {
	ids := make([]string, 0, len(r.clusters))
	for id := range r.clusters {
		ids = append(ids, id)
	}
	return ids
}

// Close shuts down every configured cluster.
func (r *Registry) Close(ctx context.Context) {
	for _, c := range r.clusters {
		c.Close(ctx)
	}
}
