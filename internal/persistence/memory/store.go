// Package memory provides an in-process storage collaborator for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/persistence"
)

type userRecord struct {
	profile      domain.UserProfile
	passwordHash string
}

// Store keeps activities, goals and users in maps guarded by a single lock.
type Store struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	goals      map[string]domain.Goal
	users      map[string]userRecord
	emails     map[string]string
	sessions   map[string]domain.TrackingSession
	now        func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]domain.Activity),
		goals:      make(map[string]domain.Goal),
		users:      make(map[string]userRecord),
		emails:     make(map[string]string),
		sessions:   make(map[string]domain.TrackingSession),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateActivity implements domain.ActivityRepository.
func (s *Store) CreateActivity(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(activity.ID) == "" {
		activity.ID = uuid.NewString()
	}
	if _, exists := s.activities[activity.ID]; exists {
		return fmt.Errorf("%w: activity %s already exists", domain.ErrConflict, activity.ID)
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}
	s.activities[activity.ID] = activity
	return nil
}

// GetActivity implements domain.ActivityRepository.
func (s *Store) GetActivity(_ context.Context, id string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// ListActivities implements domain.ActivityRepository.
func (s *Store) ListActivities(_ context.Context, query domain.ActivityQuery) ([]domain.Activity, *domain.Cursor, error) {
	s.mu.RLock()
	matched := make([]domain.Activity, 0)
	for _, a := range s.activities {
		if query.UserID != "" && a.UserID != query.UserID {
			continue
		}
		if query.Status != "" && a.Status != query.Status {
			continue
		}
		if !query.From.IsZero() && a.CreatedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && !a.CreatedAt.Before(query.To) {
			continue
		}
		if query.Cursor != nil && !persistence.After(*query.Cursor, a.CreatedAt, a.ID, query.Ascending) {
			continue
		}
		matched = append(matched, a)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			if query.Ascending {
				return matched[i].ID < matched[j].ID
			}
			return matched[i].ID > matched[j].ID
		}
		if query.Ascending {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := persistence.PageSize(query.Limit)
	if len(matched) <= limit {
		return matched, nil, nil
	}
	page := matched[:limit]
	last := page[len(page)-1]
	return page, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

// UpdateActivityStatus implements domain.ActivityRepository.
func (s *Store) UpdateActivityStatus(_ context.Context, id string, from, to domain.ReviewStatus) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	if activity.Status != from {
		return nil, fmt.Errorf("%w: activity %s is %s", domain.ErrInvalidTransition, id, activity.Status)
	}
	activity.Status = to
	s.activities[id] = activity
	return &activity, nil
}

// DeleteActivity implements domain.ActivityRepository.
func (s *Store) DeleteActivity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activities, id)
	return nil
}

// CreateGoal implements domain.GoalRepository.
func (s *Store) CreateGoal(_ context.Context, goal domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(goal.ID) == "" {
		goal.ID = uuid.NewString()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = s.now()
	}
	s.goals[goal.ID] = goal
	return nil
}

// GetGoal implements domain.GoalRepository.
func (s *Store) GetGoal(_ context.Context, id string) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, nil
	}
	return &goal, nil
}

// ListGoals implements domain.GoalRepository. Goals are returned newest first.
func (s *Store) ListGoals(_ context.Context, userID string) ([]domain.Goal, error) {
	s.mu.RLock()
	goals := make([]domain.Goal, 0)
	for _, g := range s.goals {
		if g.UserID == userID {
			goals = append(goals, g)
		}
	}
	s.mu.RUnlock()
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].ID > goals[j].ID
		}
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
	return goals, nil
}

// UpdateGoalStatus implements domain.GoalRepository.
func (s *Store) UpdateGoalStatus(_ context.Context, id string, from, to domain.GoalStatus) (*domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, nil
	}
	if goal.Status != from {
		return nil, fmt.Errorf("%w: goal %s is %s", domain.ErrInvalidTransition, id, goal.Status)
	}
	goal.Status = to
	s.goals[id] = goal
	return &goal, nil
}

// DeleteGoal implements domain.GoalRepository.
func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

// CreateUser implements domain.UserRepository.
func (s *Store) CreateUser(_ context.Context, profile domain.UserProfile, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if _, taken := s.emails[email]; taken {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	if strings.TrimSpace(profile.UID) == "" {
		profile.UID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.now()
	}
	profile.Email = email
	s.users[profile.UID] = userRecord{profile: profile, passwordHash: passwordHash}
	s.emails[email] = profile.UID
	return nil
}

// GetUser implements domain.UserRepository.
func (s *Store) GetUser(_ context.Context, uid string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[uid]
	if !ok {
		return nil, nil
	}
	profile := rec.profile
	return &profile, nil
}

// FindCredentials implements domain.UserRepository.
func (s *Store) FindCredentials(_ context.Context, email string) (*domain.UserProfile, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, "", nil
	}
	rec := s.users[uid]
	profile := rec.profile
	return &profile, rec.passwordHash, nil
}

// UsernamesByID implements domain.UserRepository.
func (s *Store) UsernamesByID(_ context.Context, uids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(uids))
	for _, uid := range uids {
		if rec, ok := s.users[uid]; ok {
			out[uid] = rec.profile.Username
		}
	}
	return out, nil
}

// SetRole implements domain.UserRepository.
func (s *Store) SetRole(_ context.Context, uid string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[uid]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, uid)
	}
	rec.profile.Role = role
	s.users[uid] = rec
	return nil
}
