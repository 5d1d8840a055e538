package memory

import (
	"context"
	"time"

	"example.com/smartroutine/internal/domain"
)

var _ domain.SessionRepository = (*Store)(nil)

// CreateSession implements domain.SessionRepository.
func (s *Store) CreateSession(_ context.Context, session domain.TrackingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.UserID]; exists {
		return domain.ErrAlreadyTracking
	}
	session.ClaimedAt = nil
	s.sessions[session.UserID] = session
	return nil
}

// GetSession implements domain.SessionRepository.
func (s *Store) GetSession(_ context.Context, userID string) (*domain.TrackingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return copySession(session), nil
}

// SetSessionEvidence implements domain.SessionRepository.
func (s *Store) SetSessionEvidence(_ context.Context, userID string, evidence domain.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok || session.ClaimedAt != nil {
		return domain.ErrNotTracking
	}
	evidence.Data = append([]byte(nil), evidence.Data...)
	session.Evidence = &evidence
	s.sessions[userID] = session
	return nil
}

// ClaimSession implements domain.SessionRepository.
func (s *Store) ClaimSession(_ context.Context, userID string, now time.Time, staleAfter time.Duration) (*domain.TrackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	if session.ClaimedAt != nil && now.Sub(*session.ClaimedAt) < staleAfter {
		return nil, nil
	}
	claimedAt := now
	session.ClaimedAt = &claimedAt
	s.sessions[userID] = session
	return copySession(session), nil
}

// ReleaseSession implements domain.SessionRepository.
func (s *Store) ReleaseSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		session.ClaimedAt = nil
		s.sessions[userID] = session
	}
	return nil
}

// DeleteSession implements domain.SessionRepository.
func (s *Store) DeleteSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func copySession(session domain.TrackingSession) *domain.TrackingSession {
	if session.Evidence != nil {
		evidence := *session.Evidence
		evidence.Data = append([]byte(nil), evidence.Data...)
		session.Evidence = &evidence
	}
	if session.ClaimedAt != nil {
		claimedAt := *session.ClaimedAt
		session.ClaimedAt = &claimedAt
	}
	return &session
}
