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

package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Kafka("failed to connect", cause)
	assert.Equal(t, "Kafka: failed to connect: dial tcp: connection refused", err.Error())
}

func TestErrorMessageOmitsCauseWhenAbsent(t *testing.T) {
	err := Configuration("unknown cluster id \"prod\"", nil)
	assert.Equal(t, "Configuration: unknown cluster id \"prod\"", err.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := SQL("query failed", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestToEnvelopeNilError(t *testing.T) {
	assert.Equal(t, Envelope{}, ToEnvelope(nil))
}

func TestToEnvelopeKnownKind(t *testing.T) {
	err := AvroParse("unsupported logical type", nil)
	assert.Equal(t, Envelope{ErrorType: "AvroParse", Message: "unsupported logical type"}, ToEnvelope(err))
}

func TestToEnvelopeUnknownErrorHasEmptyErrorType(t *testing.T) {
	err := errors.New("plain stdlib error")
	envelope := ToEnvelope(err)
	assert.Empty(t, envelope.ErrorType)
	assert.Equal(t, "plain stdlib error", envelope.Message)
}
