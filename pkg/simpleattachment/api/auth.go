package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// ErrUnauthenticated is returned when the request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// ActorFromContext builds the acting identity from the verified JWT claims.
// The subject must be a UUID. Admin rights come from adminRole appearing in
// the "roles" claim or in Keycloak's "realm_access.roles".
func ActorFromContext(ctx context.Context, adminRole string) (simpleattachment.Actor, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return simpleattachment.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return simpleattachment.Actor{}, fmt.Errorf("%w: invalid subject %q", ErrUnauthenticated, sub)
	}

	return simpleattachment.Actor{UserID: userID, IsAdmin: hasRole(claims, adminRole)}, nil
}

func hasRole(claims map[string]interface{}, role string) bool {
	if role == "" {
		return false
	}
	if containsRole(claims["roles"], role) {
		return true
	}
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		return containsRole(realm["roles"], role)
	}
	return false
}

func containsRole(raw interface{}, role string) bool {
	switch roles := raw.(type) {
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == role {
				return true
			}
		}
	case []string:
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	}
	return false
}
