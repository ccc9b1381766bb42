package notify

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Conn is the slice of a websocket connection the registry needs. The ws
// handler wraps *websocket.Conn; tests plug in fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Registry tracks live sessions: admin connections partitioned by country,
// at most one connection per user. It is constructed once at startup and
// injected wherever fanout is needed.
type Registry struct {
	mu     sync.RWMutex
	admins map[string]map[Conn]struct{}
	users  map[int]Conn
}

func NewRegistry() *Registry {
	return &Registry{
		admins: make(map[string]map[Conn]struct{}),
		users:  make(map[int]Conn),
	}
}

func (r *Registry) RegisterAdmin(country string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.admins[country] == nil {
		r.admins[country] = make(map[Conn]struct{})
	}
	r.admins[country][conn] = struct{}{}
	zap.L().Info("admin session connected", zap.String("country", country))
}

func (r *Registry) UnregisterAdmin(country string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins[country], conn)
	zap.L().Info("admin session disconnected", zap.String("country", country))
}

// RegisterUser replaces any previous session for the user; the stale
// connection is closed.
func (r *Registry) RegisterUser(userID int, conn Conn) {
	r.mu.Lock()
	old := r.users[userID]
	r.users[userID] = conn
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	zap.L().Info("user session connected", zap.Int("userID", userID))
}

func (r *Registry) UnregisterUser(userID int, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users[userID] == conn {
		delete(r.users, userID)
		zap.L().Info("user session disconnected", zap.Int("userID", userID))
	}
}

// NotifyUser sends to the user's live session, if any. An absent session
// drops the event; a failed write evicts the connection.
func (r *Registry) NotifyUser(userID int, event Event) {
	r.mu.RLock()
	conn := r.users[userID]
	r.mu.RUnlock()

	if conn == nil {
		return
	}
	if err := conn.WriteJSON(event); err != nil {
		zap.L().Error("failed to send to user, evicting session", zap.Int("userID", userID), zap.Error(err))
		r.UnregisterUser(userID, conn)
		conn.Close()
	}
}

// NotifyCountryAdmins sends to every admin session for the country. Writes
// run in parallel so one dead socket cannot block the rest; failed
// connections are evicted.
func (r *Registry) NotifyCountryAdmins(country string, event Event) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.admins[country]))
	for conn := range r.admins[country] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	var failed sync.Map
	var g errgroup.Group
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			if err := conn.WriteJSON(event); err != nil {
				zap.L().Error("failed to send to admin", zap.String("country", country), zap.Error(err))
				failed.Store(conn, struct{}{})
			}
			return nil
		})
	}
	g.Wait()

	failed.Range(func(key, _ any) bool {
		conn := key.(Conn)
		r.UnregisterAdmin(country, conn)
		conn.Close()
		return true
	})
}

// AdminCount reports live admin sessions for a country.
func (r *Registry) AdminCount(country string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.admins[country])
}

// CloseAll tears down every live session on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for country, conns := range r.admins {
		for conn := range conns {
			conn.Close()
		}
		delete(r.admins, country)
	}
	for userID, conn := range r.users {
		conn.Close()
		delete(r.users, userID)
	}
}
