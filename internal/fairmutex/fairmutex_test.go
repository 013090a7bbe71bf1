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

package fairmutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMutexExcludes(t *testing.T) {
	m := New()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			defer m.Unlock()
			counter++
			time.Sleep(time.Microsecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestMutexSerializesAccess(t *testing.T) {
	m := New()
	m.Lock()
	locked := make(chan struct{})
	go func() {
		m.Lock()
		close(locked)
		m.Unlock()
	}()
	select {
	case <-locked:
		t.Fatal("second Lock returned while first holder still held the mutex")
	case <-time.After(20 * time.Millisecond):
	}
	m.Unlock()
	<-locked
}
