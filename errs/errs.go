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

// Package errs defines the typed error kinds raised by the cluster core and
// the uniform envelope the command layer converts them into for the host.
package errs

import "fmt"

// Kind identifies which layer of the core raised an error.
type Kind string

// Error kinds surfaced to the command layer.
const (
	KindConfiguration Kind = "Configuration"
	KindHTTPClient    Kind = "HttpClient"
	KindURLError      Kind = "UrlError"
	KindSchemaParse   Kind = "SchemaParse"
	KindAvroParse     Kind = "AvroParse"
	KindKafka         Kind = "Kafka"
	KindSQL           Kind = "SqlError"
	KindIO            Kind = "IO"
)

// Error is a typed error carrying the kind that raised it plus an optional
// wrapped cause. The message is what the command layer shows to the host;
// the cause, if present, is preserved for %w-style unwrapping.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

func build(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Configuration reports an unknown cluster id or a requested capability the
// cluster was not configured with (e.g. schema registry).
func Configuration(message string, cause error) *Error {
	return build(KindConfiguration, message, cause)
}

// HTTPClient reports transport, timeout, or non-2xx failures from the HTTP client.
func HTTPClient(message string, cause error) *Error { return build(KindHTTPClient, message, cause) }

// URLError reports a malformed endpoint URL.
func URLError(message string, cause error) *Error { return build(KindURLError, message, cause) }

// SchemaParse reports an unparseable schema registry response.
func SchemaParse(message string, cause error) *Error { return build(KindSchemaParse, message, cause) }

// AvroParse reports a framing, datum decode, resolution, or projection failure.
func AvroParse(message string, cause error) *Error { return build(KindAvroParse, message, cause) }

// Kafka reports a broker rejection or missing topic/group.
func Kafka(message string, cause error) *Error { return build(KindKafka, message, cause) }

// SQL reports a record store statement failure.
func SQL(message string, cause error) *Error { return build(KindSQL, message, cause) }

// IO reports a persisted-configuration read failure.
func IO(message string, cause error) *Error { return build(KindIO, message, cause) }

// Envelope is the uniform shape the command layer returns to the host for
// any error surfaced by the core.
type Envelope struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// ToEnvelope converts any error into the host-facing envelope. Errors not
// produced by this package are reported with an empty ErrorType so the host
// can distinguish "known kind" from "unexpected Go error".
func ToEnvelope(err error) Envelope {
	if err == nil {
		return Envelope{}
	}
	var coreErr *Error
	if e, ok := err.(*Error); ok {
		coreErr = e
	}
	if coreErr == nil {
		return Envelope{Message: err.Error()}
	}
	return Envelope{ErrorType: string(coreErr.Kind), Message: coreErr.Message}
}
