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

// Package httpapi is a thin JSON-over-HTTP surface mounting command.Dispatcher,
// additive to the in-process Go command API: manual inspection and
// integration tests can drive the command table without a Go-level caller.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/spothero/kafkacore/admin"
	"github.com/spothero/kafkacore/command"
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/record"
)

// Server mounts the command table behind gorilla/mux routes.
type Server struct {
	dispatcher *command.Dispatcher
}

// NewServer builds an httpapi Server over dispatcher.
func NewServer(dispatcher *command.Dispatcher) *Server {
	return &Server{dispatcher: dispatcher}
}

// Router builds the mux.Router exposing the command table as routes. CreateTopic,
// SetConsumerGroup and ResetConsumerGroupOffset have no route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/clusters/{cluster_id}/subjects", s.listSubjects).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/subjects/{subject}", s.getSubject).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/subjects/{subject}", s.deleteSubject).Methods(http.MethodDelete)
	r.HandleFunc("/clusters/{cluster_id}/subjects/{subject}/versions/{version}", s.deleteSubjectVersion).Methods(http.MethodDelete)
	r.HandleFunc("/clusters/{cluster_id}/topics", s.listTopics).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}", s.getTopicInfo).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}", s.deleteTopic).Methods(http.MethodDelete)
	r.HandleFunc("/clusters/{cluster_id}/consumer-groups", s.listConsumerGroups).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/consumer-groups/{group}", s.describeConsumerGroup).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/consumer-groups/{group}", s.deleteConsumerGroup).Methods(http.MethodDelete)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}/records", s.getRecords).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}/records/count", s.getRecordsCount).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}/consumer", s.startConsumer).Methods(http.MethodPost)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}/consumer", s.stopConsumer).Methods(http.MethodDelete)
	r.HandleFunc("/clusters/{cluster_id}/topics/{topic}/consumer", s.getConsumerState).Methods(http.MethodGet)
	r.HandleFunc("/query", s.queryRecords).Methods(http.MethodPost)
	r.HandleFunc("/clusters/{cluster_id}", s.describeCluster).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errs.ToEnvelope(err))
}

func (s *Server) listSubjects(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["cluster_id"]
	out, err := s.dispatcher.ListSubjects(r.Context(), clusterID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSubject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := s.dispatcher.GetSubject(r.Context(), vars["cluster_id"], vars["subject"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteSubject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.dispatcher.DeleteSubject(r.Context(), vars["cluster_id"], vars["subject"]); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSubjectVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		writeErr(w, errs.URLError("version must be an integer", err))
		return
	}
	if err := s.dispatcher.DeleteSubjectVersion(r.Context(), vars["cluster_id"], vars["subject"], version); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	out, err := s.dispatcher.ListTopics(r.Context(), mux.Vars(r)["cluster_id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTopicInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := s.dispatcher.GetTopicInfo(r.Context(), vars["cluster_id"], vars["topic"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteTopic(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.dispatcher.DeleteTopic(r.Context(), vars["cluster_id"], vars["topic"]); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listConsumerGroups(w http.ResponseWriter, r *http.Request) {
	out, err := s.dispatcher.ListConsumerGroups(r.Context(), mux.Vars(r)["cluster_id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) describeConsumerGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ignoreCache := r.URL.Query().Get("ignore_cache") == "true"
	out, err := s.dispatcher.DescribeConsumerGroup(r.Context(), vars["cluster_id"], vars["group"], ignoreCache)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteConsumerGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.dispatcher.DeleteConsumerGroup(r.Context(), vars["cluster_id"], vars["group"]); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getRecords(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.dispatcher.GetRecords(r.Context(), vars["cluster_id"], vars["topic"], offset, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRecordsCount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := s.dispatcher.GetRecordsCount(r.Context(), vars["cluster_id"], vars["topic"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) startConsumer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var config admin.OffsetConfiguration
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
			writeErr(w, errs.IO("failed to decode offset configuration body", err))
			return
		}
	}
	if err := s.dispatcher.StartConsumer(r.Context(), vars["cluster_id"], vars["topic"], config); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stopConsumer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.dispatcher.StopConsumer(r.Context(), vars["cluster_id"], vars["topic"]); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getConsumerState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := s.dispatcher.GetConsumerState(r.Context(), vars["cluster_id"], vars["topic"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) queryRecords(w http.ResponseWriter, r *http.Request) {
	var q record.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeErr(w, errs.IO("failed to decode query body", err))
		return
	}
	out, err := s.dispatcher.QueryRecords(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) describeCluster(w http.ResponseWriter, r *http.Request) {
	brokers, controllerID, err := s.dispatcher.DescribeCluster(r.Context(), mux.Vars(r)["cluster_id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"brokers": brokers, "controller_id": controllerID})
}
