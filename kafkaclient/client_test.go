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

package kafkaclient

import (
	"context"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spothero/kafkacore/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlagsAppliesPrefix(t *testing.T) {
	flags := pflag.NewFlagSet("pflags", pflag.PanicOnError)
	c := &Config{}
	c.RegisterFlags(flags, "prod.")

	brokers, err := flags.GetString("prod.kafka-brokers")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", brokers)

	version, err := flags.GetString("prod.kafka-version")
	require.NoError(t, err)
	assert.Equal(t, "2.8.0", version)
}

func TestBrokerListSplitsAndTrimsBlankEntries(t *testing.T) {
	c := Config{Brokers: " broker-1:9092, broker-2:9092 ,,"}
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.brokerList())
}

func TestNewInvalidKafkaVersionReturnsConfigurationError(t *testing.T) {
	_, err := New(context.Background(), Config{Brokers: "localhost:9092", KafkaVersion: "not-a-version"})
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindConfiguration, coreErr.Kind)
}

func TestNewMissingTLSKeyPairReturnsConfigurationError(t *testing.T) {
	_, err := New(context.Background(), Config{
		Brokers:      "localhost:9092",
		KafkaVersion: "2.8.0",
		TLSCrtPath:   "/does/not/exist.crt",
		TLSKeyPath:   "/does/not/exist.key",
	})
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindConfiguration, coreErr.Kind)
}
