package storage

import (
	"sync"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
)

// SnapshotStore guarda el ultimo snapshot por guild. Los snapshots no se mutan
// despues de guardarse: Put reemplaza el puntero entero.
//
// Ademas lleva, por guild, el id con el que se recreo cada entidad del
// snapshot, asi una restauracion repetida reconoce lo que ya recreo.
type SnapshotStore struct {
	m     *xsync.MapOf[string, *domain.Snapshot]
	repl  *xsync.MapOf[string, *xsync.MapOf[string, string]]
	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		m:     xsync.NewMapOf[string, *domain.Snapshot](),
		repl:  xsync.NewMapOf[string, *xsync.MapOf[string, string]](),
		locks: xsync.NewMapOf[string, *sync.Mutex](),
	}
}

// Put reemplaza el snapshot; los reemplazos viejos dejan de valer porque el
// snapshot nuevo ya tiene los ids vivos.
func (s *SnapshotStore) Put(snap *domain.Snapshot) {
	if snap == nil || snap.GuildID == "" {
		return
	}
	s.m.Store(snap.GuildID, snap)
	s.repl.Delete(snap.GuildID)
}

func (s *SnapshotStore) Get(guildID string) (*domain.Snapshot, bool) {
	return s.m.Load(guildID)
}

func (s *SnapshotStore) Len() int { return s.m.Size() }

// Remap registra que la entidad oldID del snapshot se recreo como newID.
func (s *SnapshotStore) Remap(guildID, oldID, newID string) {
	if guildID == "" || oldID == "" || newID == "" {
		return
	}
	m, _ := s.repl.LoadOrCompute(guildID, func() *xsync.MapOf[string, string] {
		return xsync.NewMapOf[string, string]()
	})
	m.Store(oldID, newID)
}

// Replacement devuelve el id con el que se recreo oldID, si hubo.
func (s *SnapshotStore) Replacement(guildID, oldID string) (string, bool) {
	m, ok := s.repl.Load(guildID)
	if !ok {
		return "", false
	}
	return m.Load(oldID)
}

// Lock serializa las restauraciones de un guild; devuelve el unlock.
func (s *SnapshotStore) Lock(guildID string) func() {
	mu, _ := s.locks.LoadOrCompute(guildID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}
