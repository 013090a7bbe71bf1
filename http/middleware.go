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

package http

import (
	"net/http"

	"github.com/spothero/kafkacore/log"
	"go.uber.org/zap"
)

// StatusRecorder wraps the http ResponseWriter, allowing additional instrumentation and metrics
// capture before the response is returned to the client.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
}

// WriteHeader implements the http ResponseWriter WriteHeader interface. This function acts as a
// middleware which captures the StatusCode on the StatusRecorder and then delegates the actual
// work of writing the header to the underlying http ResponseWriter.
func (sr *StatusRecorder) WriteHeader(code int) {
	sr.StatusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// MiddlewareFunc defines a middleware function used in processing HTTP Requests. Request
// preprocessing may be specified in the body of the middleware function call. If post-processing
// is required, please use the returned deferable func() to encapsulate that logic.
type MiddlewareFunc func(*StatusRecorder, *http.Request) (func(), *http.Request)

// Middleware defines a collection of middleware functions.
type Middleware []MiddlewareFunc

// handler is meant to be used as middleware for every request on a given handler. Common usages of
// middleware functions:
//
// * Capture metrics to Prometheus for the duration of the HTTP request
// * Log standard request/response attributes
//
// Middleware is an effective way to add functionality to every request traversing the server --
// both before and after processing is completed.
func (m Middleware) handler(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Default to http.StatusOK which is the golang default if the status is not set.
		wrappedWriter := &StatusRecorder{w, http.StatusOK}
		for _, mw := range m {
			var deferable func()
			deferable, r = mw(wrappedWriter, r)
			defer deferable()
		}
		next.ServeHTTP(wrappedWriter, r)
	})
}

// LoggingMiddleware logs a series of standard attributes for every HTTP request.
//
//  On inbound request received these attributes include:
// * The remote address of the client
// * The HTTP Method utilized
// * The hostname specified on this request
// * The port specified on this request
//
// On outbound response return these attributes include all of the above as well as:
// * HTTP response code
func LoggingMiddleware(sr *StatusRecorder, r *http.Request) (func(), *http.Request) {
	remoteAddress := zap.String("remote_address", r.RemoteAddr)
	method := zap.String("method", r.Method)
	hostname := zap.String("hostname", r.URL.Hostname())
	port := zap.String("port", r.URL.Port())
	log.Get(r.Context()).Info("Request Received", remoteAddress, method, hostname, port)
	log.Get(r.Context()).Debug("Request Headers", zap.Reflect("Headers", r.Header))
	return func() {
		log.Get(r.Context()).Info(
			"Returning Response",
			remoteAddress, method, hostname, port, zap.Int("response_code", sr.StatusCode))
	}, r
}
