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

// Package fairmutex provides a strictly FIFO mutual-exclusion lock. Go's
// sync.Mutex is explicitly not fair under contention (the runtime may let a
// newly-arriving goroutine barge ahead of one that has been waiting), which
// is unacceptable for the record store: a long-running ingestion loop and an
// interactive query must take turns, not let one starve the other.
//
// The lock is a single-slot channel. Goroutines blocked receiving from a Go
// channel are released in the order they started waiting, so contending
// Lock callers are granted the mutex strictly in arrival order.
package fairmutex

// Mutex is a fair, FIFO mutual-exclusion lock.
type Mutex struct {
	slot chan struct{}
}

// New creates a ready-to-use fair Mutex.
func New() *Mutex {
	m := &Mutex{slot: make(chan struct{}, 1)}
	m.slot <- struct{}{}
	return m
}

// Lock blocks until the caller holds the mutex, granting access strictly in
// the order Lock was called among contending goroutines.
func (m *Mutex) Lock() {
	<-m.slot
}

// Unlock releases the mutex, waking the longest-waiting queued caller if
// any, or leaving it free otherwise.
func (m *Mutex) Unlock() {
	m.slot <- struct{}{}
}
