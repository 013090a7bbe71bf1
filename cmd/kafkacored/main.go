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

// Command kafkacored runs the cluster core as a standalone process,
// loading a persisted cluster registry and serving the command table over
// the additive httpapi JSON surface.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spothero/kafkacore/cli"
	"github.com/spothero/kafkacore/command"
	shHTTP "github.com/spothero/kafkacore/http"
	"github.com/spothero/kafkacore/httpapi"
	"github.com/spothero/kafkacore/log"
	"github.com/spothero/kafkacore/recordstore"
	"github.com/spothero/kafkacore/registry"
	"go.uber.org/zap"
)

const appName = "kafkacored"

// connectRegistry loads the cluster registry with exponential backoff,
// tolerating brokers that are not yet accepting connections when
// kafkacored starts (e.g. racing a Kafka container's own boot).
func connectRegistry(ctx context.Context, configPath string, store *recordstore.Store, maxRetries uint64) (*registry.Registry, error) {
	var reg *registry.Registry
	expBackOff := backoff.NewExponentialBackOff()
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackOff, maxRetries), ctx)
	retryErr := backoff.Retry(func() error {
		var err error
		reg, err = registry.Load(ctx, configPath, store, nil)
		if err != nil {
			log.Get(ctx).Warn("cluster registry connect attempt failed, retrying", zap.Error(err))
		}
		return err
	}, policy)
	if retryErr != nil {
		return nil, retryErr
	}
	return reg, nil
}

func main() {
	var configPath string
	var connectRetries uint64
	logConfig := &log.LoggingConfig{UseDevelopmentLogger: true, Level: "info"}
	httpConfig := shHTTP.NewDefaultConfig(appName)

	cmd := &cobra.Command{
		Use:              appName,
		Short:            "Inspect Kafka clusters: topics, consumer groups, and decoded record history",
		PersistentPreRun: cli.CobraBindEnvironmentVariables(strings.Replace(appName, "-", "_", -1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logConfig.InitializeLogger(); err != nil {
				return err
			}
			ctx := context.Background()

			store, err := recordstore.Open(ctx)
			if err != nil {
				return fmt.Errorf("failed to open record store: %w", err)
			}
			defer store.Close()

			reg, err := connectRegistry(ctx, configPath, store, connectRetries)
			if err != nil {
				return fmt.Errorf("failed to load cluster registry: %w", err)
			}
			defer reg.Close(ctx)

			dispatcher := command.New(reg)
			server := httpapi.NewServer(dispatcher)
			httpConfig.RegisterHandlers = func(router *mux.Router) {
				router.PathPrefix("/").Handler(server.Router())
			}
			log.Get(ctx).Info("kafkacored started", zap.Strings("clusters", reg.ClusterIDs()))
			httpConfig.NewServer().Run()
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "clusters.yaml", "Path to the persisted cluster registry configuration")
	flags.Uint64Var(&connectRetries, "kafka-connect-retries", 5, "Number of exponential-backoff retries when connecting to configured Kafka brokers at startup")
	logConfig.RegisterFlags(flags)
	httpConfig.RegisterFlags(flags)

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		panic(err)
	}
}
