package storage

import (
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

// MemStore agrupa todo el estado en memoria del bot. Se reconstruye al arrancar.
type MemStore struct {
	Counters  *CounterStore
	Snapshots *SnapshotStore
	Lockdowns *LockdownBook
	Allow     *IDSet // actores exentos
	Trust     *IDSet // roles que el lockdown no toca
}

func NewMemStore(windows map[domain.ActionKind]time.Duration, allow ...string) *MemStore {
	return &MemStore{
		Counters:  NewCounterStore(windows),
		Snapshots: NewSnapshotStore(),
		Lockdowns: NewLockdownBook(),
		Allow:     NewIDSet(allow...),
		Trust:     NewIDSet(),
	}
}
