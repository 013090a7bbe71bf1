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

// Package kafkaclient wraps a Sarama client built from a ClusterConfig,
// shared by the admin client and every per-topic consumer in a cluster.
package kafkaclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/spf13/pflag"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config carries connection settings for one Kafka cluster.
type Config struct {
	ID           string
	Brokers      string // comma-separated bootstrap brokers
	ClientID     string
	KafkaVersion string
	Verbose      bool
	TLSCaCrtPath string
	TLSCrtPath   string
	TLSKeyPath   string
	SASLUsername string
	SASLPassword string
}

// RegisterFlags registers Kafka client flags with pflag, namespaced by
// cluster id so multiple clusters can be configured on one command line.
func (c *Config) RegisterFlags(flags *pflag.FlagSet, prefix string) {
	flags.StringVar(&c.Brokers, prefix+"kafka-brokers", "localhost:9092", "Comma-separated Kafka broker addresses")
	flags.StringVar(&c.ClientID, prefix+"kafka-client-id", "kafkacore", "Kafka client ID")
	flags.StringVar(&c.KafkaVersion, prefix+"kafka-version", "2.8.0", "Kafka broker protocol version")
	flags.BoolVar(&c.Verbose, prefix+"kafka-verbose", false, "Log Sarama's internal client chatter")
	flags.StringVar(&c.TLSCaCrtPath, prefix+"kafka-ca-crt-path", "", "Kafka server TLS CA certificate path")
	flags.StringVar(&c.TLSCrtPath, prefix+"kafka-client-crt-path", "", "Kafka client TLS certificate path")
	flags.StringVar(&c.TLSKeyPath, prefix+"kafka-client-key-path", "", "Kafka client TLS key path")
	flags.StringVar(&c.SASLUsername, prefix+"kafka-sasl-username", "", "Kafka SASL/PLAIN username")
	flags.StringVar(&c.SASLPassword, prefix+"kafka-sasl-password", "", "Kafka SASL/PLAIN password")
}

func (c Config) brokerList() []string {
	parts := strings.Split(c.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Client wraps a sarama.Client built from Config.
type Client struct {
	Config
	Sarama sarama.Client
}

// New builds a Sarama client from Config. ctx is used only for logging (the
// verbose Sarama logger and the connection message); Sarama's own client
// construction is synchronous.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Verbose {
		stdLogger, err := zap.NewStdLogAt(log.Get(ctx).Named("sarama"), zapcore.InfoLevel)
		if err != nil {
			return nil, errs.Configuration("failed to build verbose Sarama logger", err)
		}
		sarama.Logger = stdLogger
	}
	saramaConfig := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion(cfg.KafkaVersion)
	if err != nil {
		return nil, errs.Configuration(fmt.Sprintf("invalid Kafka version %q", cfg.KafkaVersion), err)
	}
	saramaConfig.Version = version
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Consumer.Return.Errors = true

	if cfg.SASLUsername != "" {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = cfg.SASLUsername
		saramaConfig.Net.SASL.Password = cfg.SASLPassword
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}

	if cfg.TLSCrtPath != "" && cfg.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCrtPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, errs.Configuration("failed to load Kafka client TLS key pair", err)
		}
		tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}}
		if cfg.TLSCaCrtPath != "" {
			caCert, err := os.ReadFile(cfg.TLSCaCrtPath)
			if err != nil {
				return nil, errs.Configuration("failed to load Kafka server CA certificate", err)
			}
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(caCert)
			tlsConfig.RootCAs = pool
		} else {
			tlsConfig.InsecureSkipVerify = true
		}
		saramaConfig.Net.TLS.Config = tlsConfig
		saramaConfig.Net.TLS.Enable = true
	}

	saramaClient, err := sarama.NewClient(cfg.brokerList(), saramaConfig)
	if err != nil {
		return nil, errs.Kafka(fmt.Sprintf("failed to connect to Kafka cluster %q", cfg.ID), err)
	}
	log.Get(ctx).Info("connected to Kafka cluster", zap.String("cluster_id", cfg.ID), zap.String("brokers", cfg.Brokers))
	return &Client{Config: cfg, Sarama: saramaClient}, nil
}

// Close releases the underlying Sarama client, logging (not returning) any
// close error, matching the teacher's fire-and-forget close convention.
func (c *Client) Close(ctx context.Context) {
	if err := c.Sarama.Close(); err != nil {
		log.Get(ctx).Error("error closing Kafka client", zap.String("cluster_id", c.ID), zap.Error(err))
	}
}
