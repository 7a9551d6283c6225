package storage

import (
	"sync"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultSpamWindow        = 60 * time.Second
	DefaultDestructiveWindow = time.Hour
)

// eventLog guarda los timestamps de una key. dead = ya fue purgado del mapa.
type eventLog struct {
	mu    sync.Mutex
	times []time.Time
	dead  bool
}

// trim saca todo lo anterior a cutoff. No asume orden.
func (l *eventLog) trim(cutoff time.Time) {
	kept := l.times[:0]
	for _, t := range l.times {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(l.times); i++ {
		l.times[i] = time.Time{}
	}
	l.times = kept
}

// CounterStore implementa la ventana deslizante por (guild, actor, accion).
type CounterStore struct {
	logs    *xsync.MapOf[domain.ActorActionKey, *eventLog]
	windows map[domain.ActionKind]time.Duration
}

// NewCounterStore: windows puede venir nil o parcial; lo que falte usa los defaults.
func NewCounterStore(windows map[domain.ActionKind]time.Duration) *CounterStore {
	w := map[domain.ActionKind]time.Duration{
		domain.ActionMessageSpam:   DefaultSpamWindow,
		domain.ActionChannelDelete: DefaultDestructiveWindow,
		domain.ActionRoleDelete:    DefaultDestructiveWindow,
		domain.ActionMemberBan:     DefaultDestructiveWindow,
	}
	for k, v := range windows {
		if v > 0 {
			w[k] = v
		}
	}
	return &CounterStore{
		logs:    xsync.NewMapOf[domain.ActorActionKey, *eventLog](),
		windows: w,
	}
}

func (s *CounterStore) Window(kind domain.ActionKind) time.Duration {
	if w, ok := s.windows[kind]; ok {
		return w
	}
	return DefaultDestructiveWindow
}

// Record agrega el evento y devuelve cuantos quedan dentro de la ventana.
// El append y el conteo son atomicos para la key.
func (s *CounterStore) Record(key domain.ActorActionKey, at time.Time) int {
	cutoff := at.Add(-s.Window(key.Kind))
	for {
		l, _ := s.logs.LoadOrCompute(key, func() *eventLog { return &eventLog{} })
		l.mu.Lock()
		if l.dead {
			l.mu.Unlock()
			// el purge lo saco; reemplazamos si todavia aparece el viejo
			s.logs.Compute(key, func(old *eventLog, loaded bool) (*eventLog, bool) {
				if loaded && old != l {
					return old, false
				}
				return &eventLog{}, false
			})
			continue
		}
		l.times = append(l.times, at)
		l.trim(cutoff)
		n := len(l.times)
		l.mu.Unlock()
		return n
	}
}

// Count es solo lectura: no agrega ni borra keys.
func (s *CounterStore) Count(key domain.ActorActionKey, now time.Time) int {
	l, ok := s.logs.Load(key)
	if !ok {
		return 0
	}
	cutoff := now.Add(-s.Window(key.Kind))
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.times {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}

// PurgeExpired recorta todos los logs y borra las keys vacias. Devuelve cuantas borro.
func (s *CounterStore) PurgeExpired(now time.Time) int {
	var keys []domain.ActorActionKey
	s.logs.Range(func(k domain.ActorActionKey, _ *eventLog) bool {
		keys = append(keys, k)
		return true
	})

	removed := 0
	for _, k := range keys {
		cutoff := now.Add(-s.Window(k.Kind))
		s.logs.Compute(k, func(old *eventLog, loaded bool) (*eventLog, bool) {
			if !loaded {
				return old, true
			}
			old.mu.Lock()
			defer old.mu.Unlock()
			old.trim(cutoff)
			if len(old.times) == 0 {
				old.dead = true
				removed++
				return old, true
			}
			return old, false
		})
	}
	return removed
}

// Len = cantidad de keys trackeadas.
func (s *CounterStore) Len() int { return s.logs.Size() }
