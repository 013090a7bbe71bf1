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

package cluster

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spothero/kafkacore/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireSchemaRegistryAbsentReturnsConfigurationError(t *testing.T) {
	c := &Cluster{ID: "prod"}
	_, err := c.RequireSchemaRegistry()
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindConfiguration, coreErr.Kind)
}

func TestConsumerAbsentReturnsFalseWithoutStartingOne(t *testing.T) {
	c := &Cluster{ID: "prod"}
	cons, ok := c.Consumer("t")
	assert.False(t, ok)
	assert.Nil(t, cons)
}

func TestRegisterFlagsNamespacesByClusterID(t *testing.T) {
	flags := pflag.NewFlagSet("pflags", pflag.PanicOnError)
	cfg := &Config{ID: "prod"}
	cfg.RegisterFlags(flags)

	brokers, err := flags.GetString("prod.kafka-brokers")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", brokers)
	assert.Equal(t, "prod", cfg.Kafka.ID)
}
