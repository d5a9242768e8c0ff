/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pg-auto-ha/pgautoctl/internal/model"
)

// MemStore is an in-memory Store, the analogue of the teacher's
// controller-runtime fake client: it lets the orchestration logic in this
// package be exercised by tests (and by `pg_autoctl` demo/tmux-less runs)
// without a live Postgres instance backing the monitor.
type MemStore struct {
	mu sync.Mutex

	formations map[string]model.Formation
	nodes      map[int64]model.Node
	events     []Event
	nextID     int64

	groupLocks map[string]*sync.Mutex
}

// NewMemStore returns an empty, ready-to-use MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		formations: make(map[string]model.Formation),
		nodes:      make(map[int64]model.Node),
		groupLocks: make(map[string]*sync.Mutex),
	}
}

func groupKey(formation string, groupID int64) string {
	return fmt.Sprintf("%s/%d", formation, groupID)
}

func (s *MemStore) CreateFormationIfNotExists(_ context.Context, f model.Formation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.formations[f.Name]; ok {
		return nil
	}
	s.formations[f.Name] = f
	return nil
}

func (s *MemStore) GetFormation(_ context.Context, name string) (model.Formation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.formations[name]
	if !ok {
		return model.Formation{}, ErrNotFound
	}
	return f, nil
}

func (s *MemStore) SetGroupSettings(_ context.Context, formation string, numberSyncStandbys int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.formations[formation]
	if !ok {
		return ErrNotFound
	}
	f.NumberSyncStandbys = numberSyncStandbys
	s.formations[formation] = f
	return nil
}

// WithGroupLock serializes callers on a per-(formation,groupID) mutex, the
// in-memory analogue of the Postgres advisory lock the real store takes.
func (s *MemStore) WithGroupLock(ctx context.Context, formation string, groupID int64, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	key := groupKey(formation, groupID)
	lock, ok := s.groupLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.groupLocks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func (s *MemStore) NextNodeID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *MemStore) InsertNode(_ context.Context, n model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.NodeID] = n
	return nil
}

func (s *MemStore) SaveNode(_ context.Context, n model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.NodeID]; !ok {
		return ErrNotFound
	}
	s.nodes[n.NodeID] = n
	return nil
}

func (s *MemStore) GetNode(_ context.Context, nodeID int64) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nodeID]
	if !ok {
		return model.Node{}, ErrNotFound
	}
	return n, nil
}

func (s *MemStore) FindNode(_ context.Context, formation, host string, port int) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.Formation == formation && n.Host == host && n.Port == port {
			return n, nil
		}
	}
	return model.Node{}, ErrNotFound
}

func (s *MemStore) ListNodes(_ context.Context, formation string, groupID int64) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Node
	for _, n := range s.nodes {
		if n.Formation == formation && n.GroupID == groupID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (s *MemStore) ListAllNodes(_ context.Context) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (s *MemStore) RemoveNode(_ context.Context, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, nodeID)
	return nil
}

func (s *MemStore) AppendEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.events = append(s.events, e)
	return nil
}

func (s *MemStore) ListEvents(_ context.Context, formation string, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if formation == "" || s.events[i].Formation == formation {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}
