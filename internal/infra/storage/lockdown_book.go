package storage

import (
	"sync"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
)

// LockdownBook: a lo sumo un LockdownState activo por guild.
// Las transiciones se serializan con Lock(guild); guilds distintos no se bloquean.
type LockdownBook struct {
	locks  *xsync.MapOf[string, *sync.Mutex]
	states *xsync.MapOf[string, domain.LockdownState]
}

func NewLockdownBook() *LockdownBook {
	return &LockdownBook{
		locks:  xsync.NewMapOf[string, *sync.Mutex](),
		states: xsync.NewMapOf[string, domain.LockdownState](),
	}
}

// Lock toma el mutex del guild y devuelve el unlock.
func (b *LockdownBook) Lock(guildID string) func() {
	mu, _ := b.locks.LoadOrCompute(guildID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// Get devuelve una copia; el mapa de permisos guardados no se comparte.
func (b *LockdownBook) Get(guildID string) (domain.LockdownState, bool) {
	st, ok := b.states.Load(guildID)
	if !ok || !st.Active {
		return domain.LockdownState{}, false
	}
	return st.Copy(), true
}

func (b *LockdownBook) Active(guildID string) bool {
	st, ok := b.states.Load(guildID)
	return ok && st.Active
}

// Put y Delete se llaman con el Lock del guild tomado.
func (b *LockdownBook) Put(st domain.LockdownState) {
	b.states.Store(st.GuildID, st)
}

func (b *LockdownBook) Delete(guildID string) {
	b.states.Delete(guildID)
}

// ActiveCount alimenta el gauge de lockdowns.
func (b *LockdownBook) ActiveCount() int {
	n := 0
	b.states.Range(func(_ string, st domain.LockdownState) bool {
		if st.Active {
			n++
		}
		return true
	})
	return n
}
