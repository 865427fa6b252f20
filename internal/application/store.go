package application

import (
	"slices"
	"sync"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

// FeedStore owns the reconciled feed. Every mutation runs under one lock, so
// the poll path and the push path never interleave partial writes.
type FeedStore struct {
	mu         sync.Mutex
	items      []domain.Notification
	unread     int
	generation uint64

	subscribers map[int]chan domain.Feed
	nextSubID   int
}

func NewFeedStore() *FeedStore {
	return &FeedStore{subscribers: map[int]chan domain.Feed{}}
}

// ReplaceAll installs an authoritative snapshot, newest first and truncated to
// domain.FeedCapacity. Undated entries sort last and ties keep the server's
// order.
func (s *FeedStore) ReplaceAll(list []domain.Notification) domain.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replaceAllLocked(list)
}

// InsertOne prepends a push event and evicts the oldest entry past capacity.
// An event whose id is already in the feed is ignored.
func (s *FeedStore) InsertOne(notification domain.Notification) domain.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertOneLocked(notification)
}

func (s *FeedStore) MarkAllRead() domain.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.Notification, len(s.items))
	for i, item := range s.items {
		item.IsRead = true
		items[i] = item
	}

	return s.commitLocked(items)
}

func (s *FeedStore) RemoveInviteFor(projectID string) domain.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeInviteForLocked(projectID)
}

func (s *FeedStore) Feed() domain.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.feedLocked()
}

func (s *FeedStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unread
}

// Generation identifies the session the feed currently belongs to.
func (s *FeedStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

// Reset empties the feed and starts a new generation. Writers bound to an
// older generation are rejected from then on.
func (s *FeedStore) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.commitLocked(nil)

	return s.generation
}

// Writer returns a sink whose writes only apply while the store is still on
// the given generation.
func (s *FeedStore) Writer(generation uint64) FeedWriter {
	return FeedWriter{store: s, generation: generation}
}

// Subscribe returns a channel that always holds the latest feed. Slow
// readers skip intermediate states. The returned func unsubscribes.
func (s *FeedStore) Subscribe() (<-chan domain.Feed, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan domain.Feed, 1)
	ch <- s.feedLocked()
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.subscribers, id)
			close(ch)
		})
	}
}

func (s *FeedStore) replaceAllLocked(list []domain.Notification) domain.Feed {
	items := make([]domain.Notification, 0, len(list))
	for _, item := range list {
		if item.Kind == domain.KindHeartbeat {
			continue
		}
		items = append(items, item)
	}
	slices.SortStableFunc(items, func(a, b domain.Notification) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(items) > domain.FeedCapacity {
		items = items[:domain.FeedCapacity:domain.FeedCapacity]
	}

	return s.commitLocked(items)
}

func (s *FeedStore) insertOneLocked(notification domain.Notification) domain.Feed {
	if notification.Kind == domain.KindHeartbeat {
		return s.feedLocked()
	}
	if notification.ID != "" {
		for _, item := range s.items {
			if item.ID == notification.ID {
				return s.feedLocked()
			}
		}
	}

	items := make([]domain.Notification, 0, domain.FeedCapacity)
	items = append(items, notification)
	for _, item := range s.items {
		if len(items) == domain.FeedCapacity {
			break
		}
		items = append(items, item)
	}

	return s.commitLocked(items)
}

func (s *FeedStore) removeInviteForLocked(projectID string) domain.Feed {
	items := make([]domain.Notification, 0, len(s.items))
	for _, item := range s.items {
		if item.IsInviteFor(projectID) {
			continue
		}
		items = append(items, item)
	}
	if len(items) == len(s.items) {
		return s.feedLocked()
	}

	return s.commitLocked(items)
}

// commitLocked is the only place the feed changes; unread is always derived.
func (s *FeedStore) commitLocked(items []domain.Notification) domain.Feed {
	s.items = items
	s.unread = domain.CountUnread(items)

	feed := s.feedLocked()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s.feedLocked()
	}

	return feed
}

func (s *FeedStore) feedLocked() domain.Feed {
	items := make([]domain.Notification, len(s.items))
	copy(items, s.items)
	for i := range items {
		if items[i].Action != nil {
			action := *items[i].Action
			items[i].Action = &action
		}
	}

	return domain.Feed{Items: items, Unread: s.unread}
}

// FeedWriter applies channel writes on behalf of one session generation.
type FeedWriter struct {
	store      *FeedStore
	generation uint64
}

func (w FeedWriter) Generation() uint64 {
	return w.generation
}

func (w FeedWriter) ReplaceAll(list []domain.Notification) (domain.Feed, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	if w.store.generation != w.generation {
		return domain.Feed{}, domain.ErrStaleSession
	}

	return w.store.replaceAllLocked(list), nil
}

func (w FeedWriter) InsertOne(notification domain.Notification) (domain.Feed, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	if w.store.generation != w.generation {
		return domain.Feed{}, domain.ErrStaleSession
	}

	return w.store.insertOneLocked(notification), nil
}

func (w FeedWriter) RemoveInviteFor(projectID string) (domain.Feed, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	if w.store.generation != w.generation {
		return domain.Feed{}, domain.ErrStaleSession
	}

	return w.store.removeInviteForLocked(projectID), nil
}
