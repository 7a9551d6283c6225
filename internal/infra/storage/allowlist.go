package storage

import (
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// IDSet es un set concurrente de ids (usuarios o roles).
type IDSet struct {
	m *xsync.MapOf[string, struct{}]
}

func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{m: xsync.NewMapOf[string, struct{}]()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add devuelve false si ya estaba (o si el id viene vacio).
func (s *IDSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	_, loaded := s.m.LoadOrStore(id, struct{}{})
	return !loaded
}

func (s *IDSet) Remove(id string) bool {
	_, loaded := s.m.LoadAndDelete(strings.TrimSpace(id))
	return loaded
}

func (s *IDSet) Has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.m.Load(id)
	return ok
}

// List ordenado para que /whitelist list sea estable.
func (s *IDSet) List() []string {
	out := make([]string, 0, s.m.Size())
	s.m.Range(func(k string, _ struct{}) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}

func (s *IDSet) Len() int { return s.m.Size() }
