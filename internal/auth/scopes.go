package auth

import "example.com/smartroutine/internal/domain"

// Known OAuth scopes granted to SmartRoutine tokens.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	ScopeGoalsWrite      = "goals:write"
	ScopeGoalsRead       = "goals:read"
	ScopeReviewsWrite    = "reviews:write"
)

// ScopesForRole lists the scopes a signed-in user of role receives.
func ScopesForRole(role domain.Role) []string {
	scopes := []string{ScopeActivitiesRead, ScopeActivitiesWrite, ScopeGoalsRead, ScopeGoalsWrite}
	if role == domain.RoleAdmin {
		scopes = append(scopes, ScopeReviewsWrite)
	}
	return scopes
}
