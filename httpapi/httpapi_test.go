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

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spothero/kafkacore/command"
	"github.com/spothero/kafkacore/registry"
	"github.com/stretchr/testify/assert"
)

func TestListTopicsUnknownClusterReturnsBadRequestEnvelope(t *testing.T) {
	server := NewServer(command.New(&registry.Registry{}))
	req := httptest.NewRequest(http.MethodGet, "/clusters/missing/topics", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration")
}

func TestStopConsumerUnknownClusterReturnsBadRequestEnvelope(t *testing.T) {
	server := NewServer(command.New(&registry.Registry{}))
	req := httptest.NewRequest(http.MethodDelete, "/clusters/missing/topics/t/consumer", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration")
}

func TestGetConsumerStateUnknownClusterReturnsBadRequestEnvelope(t *testing.T) {
	server := NewServer(command.New(&registry.Registry{}))
	req := httptest.NewRequest(http.MethodGet, "/clusters/missing/topics/t/consumer", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration")
}
