package notification

import "sync"

// State is a point-in-time copy of a Store.
type State struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Filter        Filter         `json:"filter"`
	Loading       bool           `json:"loading"`
	Error         string         `json:"error,omitempty"`
}

// Store is the per-session notification cache. UnreadCount always equals the
// number of cached entries with IsRead false.
type Store struct {
	mu            sync.RWMutex
	notifications []Notification
	unread        int
	filter        Filter
	loading       bool
	err           string
}

func NewStore() *Store {
	return &Store{filter: FilterAll}
}

// SetNotifications replaces the cached list.
func (s *Store) SetNotifications(list []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = dedupe(list)
	s.recount()
}

// AddNotification prepends n. It returns false and leaves the cache untouched
// when an entry with the same ID is already cached.
func (s *Store) AddNotification(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == n.ID {
			return false
		}
	}

	s.notifications = append([]Notification{n}, s.notifications...)
	s.recount()
	return true
}

// MarkAsRead flags the entry with id as read. Unknown ids are a no-op.
func (s *Store) MarkAsRead(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			break
		}
	}
	s.recount()
}

func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.unread = 0
}

// SetFilter changes the view filter only; the list is not touched.
func (s *Store) SetFilter(f Filter) error {
	if !f.Valid() {
		return ErrInvalidFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	return nil
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetError records the last request failure; nil clears it.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.err = ""
		return
	}
	s.err = err.Error()
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Get returns a copy of the cached entry with id.
func (s *Store) Get(id int64) (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Visible returns the entries that pass the current filter.
func (s *Store) Visible() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Notification, 0, len(s.notifications))
	for i := range s.notifications {
		if s.filter.Keep(&s.notifications[i]) {
			out = append(out, s.notifications[i])
		}
	}
	return out
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Notification, len(s.notifications))
	copy(list, s.notifications)
	return State{
		Notifications: list,
		UnreadCount:   s.unread,
		Filter:        s.filter,
		Loading:       s.loading,
		Error:         s.err,
	}
}

func (s *Store) recount() {
	unread := 0
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			unread++
		}
	}
	s.unread = unread
}

func dedupe(list []Notification) []Notification {
	seen := make(map[int64]bool, len(list))
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}
