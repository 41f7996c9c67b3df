package relation

import (
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// secretNamespace seeds deterministic secret IDs so that granting the same
// label always yields the same reference.
var secretNamespace = uuid.MustParse("9cbfbe9b-3a8c-4e2b-9f6e-6d0dd3a6df20")

// MemoryStore is an in-process Store. The coordinator binary feeds it from
// its relation-data API; tests drive it directly.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int
	rels   map[string][]*MemoryRelation
	writes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rels: make(map[string][]*MemoryRelation)}
}

// AddRelation creates a relation on the endpoint and returns it.
func (s *MemoryStore) AddRelation(endpoint, remoteApp string) *MemoryRelation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r := &MemoryRelation{
		store:     s,
		id:        s.nextID,
		remoteApp: remoteApp,
		appData:   make(map[string]string),
		unitData:  make(map[string]map[string]string),
		localData: make(map[string]string),
	}
	s.rels[endpoint] = append(s.rels[endpoint], r)
	return r
}

// RemoveRelation drops a relation from the endpoint, as when a worker
// departs.
func (s *MemoryStore) RemoveRelation(endpoint string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rels := s.rels[endpoint]
	for i, r := range rels {
		if r.id == id {
			s.rels[endpoint] = append(rels[:i], rels[i+1:]...)
			return
		}
	}
}

// Relations implements Store.
func (s *MemoryStore) Relations(endpoint string) []Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	rels := s.rels[endpoint]
	out := make([]Relation, len(rels))
	for i, r := range rels {
		out[i] = r
	}
	return out
}

// Relation returns the relation with the given ID on the endpoint, or nil.
func (s *MemoryStore) Relation(endpoint string, id int) *MemoryRelation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rels[endpoint] {
		if r.id == id {
			return r
		}
	}
	return nil
}

// Writes returns the number of local-databag writes that actually changed
// data. Suppressed (identical) writes are not counted.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// MemoryRelation is one relation held by a MemoryStore.
type MemoryRelation struct {
	store     *MemoryStore
	id        int
	remoteApp string
	appData   map[string]string
	unitData  map[string]map[string]string
	localData map[string]string
}

func (r *MemoryRelation) ID() int                   { return r.id }
func (r *MemoryRelation) RemoteApplication() string { return r.remoteApp }

func (r *MemoryRelation) RemoteAppData() map[string]string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return copyMap(r.appData)
}

func (r *MemoryRelation) RemoteUnits() []string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	units := make([]string, 0, len(r.unitData))
	for u := range r.unitData {
		units = append(units, u)
	}
	sort.Strings(units)
	return units
}

func (r *MemoryRelation) RemoteUnitData(unit string) map[string]string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return copyMap(r.unitData[unit])
}

func (r *MemoryRelation) ReplaceLocalAppData(data map[string]string) bool {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if maps.Equal(r.localData, data) {
		return false
	}
	r.localData = copyMap(data)
	r.store.writes++
	return true
}

func (r *MemoryRelation) LocalAppData() map[string]string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return copyMap(r.localData)
}

func (r *MemoryRelation) GrantSecret(label string) string {
	return "secret:" + uuid.NewSHA1(secretNamespace, []byte(label)).String()
}

// SetRemoteAppData replaces the remote application databag.
func (r *MemoryRelation) SetRemoteAppData(data map[string]string) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.appData = copyMap(data)
}

// SetRemoteUnitData replaces one remote unit's databag.
func (r *MemoryRelation) SetRemoteUnitData(unit string, data map[string]string) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.unitData[unit] = copyMap(data)
}

// RemoveRemoteUnit drops one remote unit's databag.
func (r *MemoryRelation) RemoveRemoteUnit(unit string) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.unitData, unit)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
