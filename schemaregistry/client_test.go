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

package schemaregistry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spothero/kafkacore/avro"
	"github.com/spothero/kafkacore/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSubjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subjects", r.URL.Path)
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		w.Write([]byte(`["orders-value", "payments-value"]`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL}, nil)
	subjects, err := client.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders-value", "payments-value"}, subjects)
}

func TestGetSubjectAggregatesAndSortsVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subjects/orders-value/versions":
			w.Write([]byte(`[2, 1]`))
		case "/subjects/orders-value/versions/1":
			w.Write([]byte(`{"version": 1, "id": 10, "schema": "\"string\""}`))
		case "/subjects/orders-value/versions/2":
			w.Write([]byte(`{"version": 2, "id": 11, "schema": "\"string\""}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL}, nil)
	subject, err := client.GetSubject(context.Background(), "orders-value")
	require.NoError(t, err)
	require.Len(t, subject.Versions, 2)
	assert.Equal(t, 1, subject.Versions[0].Version)
	assert.Equal(t, 2, subject.Versions[1].Version)
}

func TestGetSchemaByIDCachesAfterFirstFetch(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/schemas/ids/7", r.URL.Path)
		w.Write([]byte(`{"schema": "\"string\""}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL}, nil)
	first, err := client.GetSchemaByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, avro.KindString, first.Kind)

	second, err := client.GetSchemaByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, requests)
}

func TestGetSchemaByIDInvalidAvroReturnsSchemaParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schema": "not valid avro json"}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL}, nil)
	_, err := client.GetSchemaByID(context.Background(), 9)
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindSchemaParse, coreErr.Kind)
}

func TestDoNonSuccessStatusReturnsHTTPClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL}, nil)
	_, err := client.ListSubjects(context.Background())
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindHTTPClient, coreErr.Kind)
}

func TestDeleteSubjectRequiresSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL}, nil)
	err := client.DeleteSubject(context.Background(), "orders-value")
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindHTTPClient, coreErr.Kind)
}

func TestEndpointMalformedURLReturnsURLError(t *testing.T) {
	client := NewClient(Config{URL: "://nope"}, nil)
	_, err := client.ListSubjects(context.Background())
	var coreErr *errs.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.KindURLError, coreErr.Kind)
}

func TestBasicAuthSentWhenUsernameConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL, Username: "alice", Password: "secret"}, nil)
	_, err := client.ListSubjects(context.Background())
	require.NoError(t, err)
}
