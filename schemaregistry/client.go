// Copyright 2020 SpotHero
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

// Package schemaregistry provides a Confluent Schema Registry client: subject
// and version listing, schema lookup by id with an at-most-once process-wide
// cache, and subject/version deletion.
package schemaregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spothero/kafkacore/avro"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/log"
	"go.uber.org/zap"
)

const acceptHeader = "application/vnd.schemaregistry.v1+json"

// Config defines the connection information for a Kafka Schema Registry.
type Config struct {
	URL      string
	Username string
	Password string
}

// RegisterFlags registers schema registry flags with pflags.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.URL, "kafka-schema-registry-url", "", "Kafka schema registry url")
	flags.StringVar(&c.Username, "kafka-schema-registry-username", "", "Kafka schema registry basic auth username")
	flags.StringVar(&c.Password, "kafka-schema-registry-password", "", "Kafka schema registry basic auth password")
}

// SchemaVersion is one registered version of a Subject.
type SchemaVersion struct {
	Version int    `json:"version"`
	ID      int    `json:"id"`
	Schema  string `json:"schema"`
}

// Subject is a named, ordered sequence of schema versions.
type Subject struct {
	Name     string          `json:"name"`
	Versions []SchemaVersion `json:"versions"`
}

// cacheMetrics are the schema cache hit/miss counters named in the domain
// stack's metrics wiring.
type cacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

// Client is a Schema Registry client with a process-wide, at-most-once,
// immutable-value cache of parsed schemas keyed by id.
type Client struct {
	Config
	http    http.Client
	cache   sync.Map // id uint32 -> *avro.Schema
	metrics cacheMetrics
}

// NewClient builds a Schema Registry client. registerer may be nil, in
// which case cache metrics are not registered.
func NewClient(cfg Config, registerer prometheus.Registerer) *Client {
	c := &Client{
		Config: cfg,
		http:   http.Client{Timeout: 10 * time.Second},
	}
	c.metrics.hits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schema_registry_cache_hits_total",
		Help: "Total number of schema cache hits",
	})
	c.metrics.misses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schema_registry_cache_misses_total",
		Help: "Total number of schema cache misses",
	})
	if registerer != nil {
		registerer.MustRegister(c.metrics.hits, c.metrics.misses)
	}
	return c
}

func (c *Client) endpoint(pathFmt string, args ...interface{}) (string, error) {
	raw := c.URL + fmt.Sprintf(pathFmt, args...)
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errs.URLError(fmt.Sprintf("malformed schema registry url %q", raw), err)
	}
	return parsed.String(), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return errs.HTTPClient("failed to build schema registry request", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.HTTPClient(fmt.Sprintf("request to %s failed", endpoint), err)
	}
	defer resp.Body.Close()
	if method == http.MethodDelete {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errs.HTTPClient("Error calling the delete", nil)
		}
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.HTTPClient(fmt.Sprintf("schema registry returned status %d", resp.StatusCode), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.HTTPClient("failed to decode schema registry response", err)
	}
	return nil
}

// ListSubjects returns every registered subject name.
func (c *Client) ListSubjects(ctx context.Context) ([]string, error) {
	endpoint, err := c.endpoint("/subjects")
	if err != nil {
		return nil, err
	}
	var subjects []string
	if err := c.do(ctx, http.MethodGet, endpoint, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// GetSubject fetches every version of a subject, aggregated and sorted
// ascending by version.
func (c *Client) GetSubject(ctx context.Context, name string) (Subject, error) {
	versionsEndpoint, err := c.endpoint("/subjects/%s/versions", name)
	if err != nil {
		return Subject{}, err
	}
	var versionNumbers []int
	if err := c.do(ctx, http.MethodGet, versionsEndpoint, &versionNumbers); err != nil {
		return Subject{}, err
	}
	subject := Subject{Name: name}
	for _, v := range versionNumbers {
		versionEndpoint, err := c.endpoint("/subjects/%s/versions/%d", name, v)
		if err != nil {
			return Subject{}, err
		}
		var version SchemaVersion
		if err := c.do(ctx, http.MethodGet, versionEndpoint, &version); err != nil {
			return Subject{}, err
		}
		subject.Versions = append(subject.Versions, version)
	}
	sort.Slice(subject.Versions, func(i, j int) bool {
		return subject.Versions[i].Version < subject.Versions[j].Version
	})
	return subject, nil
}

// GetSchemaByID returns the parsed schema for id, serving from cache when
// possible. Concurrent misses for the same id may each issue a request; the
// cache itself resolves to a single, immutable value (first writer wins).
func (c *Client) GetSchemaByID(ctx context.Context, id uint32) (*avro.Schema, error) {
	if cached, ok := c.cache.Load(id); ok {
		c.metrics.hits.Inc()
		c.logSchemaFetch(ctx, id, true)
		return cached.(*avro.Schema), nil
	}
	c.metrics.misses.Inc()
	c.logSchemaFetch(ctx, id, false)
	endpoint, err := c.endpoint("/schemas/ids/%d", id)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Schema string `json:"schema"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, &payload); err != nil {
		return nil, err
	}
	schema, err := avro.Parse(payload.Schema)
	if err != nil {
		return nil, errs.SchemaParse(fmt.Sprintf("schema %d is not valid Avro", id), err)
	}
	actual, _ := c.cache.LoadOrStore(id, schema)
	return actual.(*avro.Schema), nil
}

// DeleteSubject deletes every version of a subject.
func (c *Client) DeleteSubject(ctx context.Context, name string) error {
	endpoint, err := c.endpoint("/subjects/%s", name)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, endpoint, nil)
}

// DeleteVersion deletes a single version of a subject.
func (c *Client) DeleteVersion(ctx context.Context, name string, version int) error {
	endpoint, err := c.endpoint("/subjects/%s/versions/%d", name, version)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, endpoint, nil)
}

// logSchemaFetch is a small helper kept distinct from do() so that cache
// misses are logged with the id, matching the ambient logging convention.
func (c *Client) logSchemaFetch(ctx context.Context, id uint32, hit bool) {
	log.Get(ctx).Debug("schema registry lookup", zap.Uint32("schema_id", id), zap.Bool("cache_hit", hit))
}
