// Package live streams total snapshots of activity and goal collections to
// subscribers whenever they change.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/observability"
	"example.com/smartroutine/internal/persistence"
)

// Collection names a subscribable collection.
type Collection string

const (
	CollectionActivities Collection = "activities"
	CollectionGoals      Collection = "goals"
)

// ParseCollection validates a collection name.
func ParseCollection(value string) (Collection, error) {
	switch Collection(value) {
	case CollectionActivities, CollectionGoals:
		return Collection(value), nil
	}
	return "", fmt.Errorf("%w: unknown collection %q", domain.ErrValidation, value)
}

// Filter selects the records of a subscription. An empty UserID spans all
// users and is only meaningful for activities.
type Filter struct {
	Collection Collection
	UserID     string
	Status     domain.ReviewStatus
}

func (f Filter) matches(userID string) bool {
	return f.UserID == "" || f.UserID == userID
}

// Snapshot is the full current result set of a filter.
type Snapshot struct {
	Collection Collection
	Activities []domain.Activity
	Goals      []domain.Goal
	At         time.Time
}

// DefaultResyncInterval re-delivers snapshots when no notification arrives.
const DefaultResyncInterval = 30 * time.Second

type subscription struct {
	filter Filter
	wake   chan struct{}
}

// Hub fans change notifications out to subscriptions.
type Hub struct {
	activities domain.ActivityRepository
	goals      domain.GoalRepository
	resync     time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

// NewHub constructs a Hub. A non-positive resync interval selects DefaultResyncInterval.
func NewHub(activities domain.ActivityRepository, goals domain.GoalRepository, resync time.Duration, logger *zap.Logger) *Hub {
	if resync <= 0 {
		resync = DefaultResyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		activities: activities,
		goals:      goals,
		resync:     resync,
		logger:     logger,
		subs:       make(map[int]*subscription),
	}
}

// Subscribe delivers a snapshot immediately, then again after every
// matching Notify and every resync interval. An undelivered snapshot is
// replaced by a newer one. The channel closes when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, filter Filter) (<-chan Snapshot, error) {
	if _, err := ParseCollection(string(filter.Collection)); err != nil {
		return nil, err
	}
	if filter.Collection == CollectionGoals && filter.UserID == "" {
		return nil, fmt.Errorf("%w: goal subscriptions require a user", domain.ErrValidation)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, filter.Status)
	}

	sub := &subscription{filter: filter, wake: make(chan struct{}, 1)}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()
	observability.SubscriberJoined(string(filter.Collection))

	out := make(chan Snapshot, 1)
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			observability.SubscriberLeft(string(filter.Collection))
			close(out)
		}()

		ticker := time.NewTicker(h.resync)
		defer ticker.Stop()
		for {
			if snap, err := h.load(ctx, filter); err != nil {
				if ctx.Err() != nil {
					return
				}
				h.logger.Warn("load live snapshot", zap.String("collection", string(filter.Collection)), zap.Error(err))
			} else {
				deliver(out, snap)
			}

			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

// Notify wakes every subscription that can observe userID's records.
func (h *Hub) Notify(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if !sub.filter.matches(userID) {
			continue
		}
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func deliver(out chan Snapshot, snap Snapshot) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- snap
}

func (h *Hub) load(ctx context.Context, filter Filter) (Snapshot, error) {
	snap := Snapshot{Collection: filter.Collection, At: time.Now().UTC()}
	switch filter.Collection {
	case CollectionGoals:
		goals, err := h.goals.ListGoals(ctx, filter.UserID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Goals = goals
	default:
		query := domain.ActivityQuery{
			UserID:    filter.UserID,
			Status:    filter.Status,
			Limit:     persistence.MaxPageSize,
			Ascending: filter.UserID == "",
		}
		snap.Activities = make([]domain.Activity, 0)
		for {
			page, next, err := h.activities.ListActivities(ctx, query)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Activities = append(snap.Activities, page...)
			if next == nil {
				break
			}
			query.Cursor = next
		}
	}
	return snap, nil
}
