// internal/session/claims.go
//
// Local token introspection. The access token is parsed without signature
// verification: validating it is the resource servers' job, the client only
// reads the profile and realm role claims Keycloak puts in it.

package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sieger/storefront/internal/catalog"
)

// extractIdentity pulls the user profile and the application role set out of
// an access token. Realm roles outside the app's role set are dropped.
func extractIdentity(accessToken string) (User, []string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return User{}, nil, fmt.Errorf("session: parse access token: %w", err)
	}

	user := User{
		ID:        stringClaim(claims, "sub"),
		Username:  stringClaim(claims, "preferred_username"),
		Email:     stringClaim(claims, "email"),
		FirstName: stringClaim(claims, "given_name"),
		LastName:  stringClaim(claims, "family_name"),
		FullName:  stringClaim(claims, "name"),
	}

	roles := catalog.FilterAppRoles(realmRoles(claims))
	return user, roles, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// realmRoles digs realm_access.roles out of the token. Keycloak encodes it
// as {"realm_access": {"roles": ["ADMIN", ...]}}.
func realmRoles(claims jwt.MapClaims) []string {
	access, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := access["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
