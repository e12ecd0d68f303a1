// Package credentials is a reference implementation of
// ports.CredentialResolver that reads exchange API key material from
// environment variables, following the teacher's convention of env-var
// overrides for operational secrets (see internal/config's
// applyEnvironmentOverrides).
package credentials

import (
	"context"
	"fmt"
	"os"
)

// Resolver resolves credentials for exchangeID by looking up environment
// variables named "<adminIdentity>_EXCHANGE_<exchangeID>_API_KEY" and
// "..._API_SECRET". adminIdentity scopes credentials to one operator
// account, matching the configuration surface's admin-identity option.
type Resolver struct {
	adminIdentity string
}

// New constructs a Resolver scoped to adminIdentity. An empty
// adminIdentity is valid and simply omits the scoping prefix.
func New(adminIdentity string) *Resolver {
	return &Resolver{adminIdentity: adminIdentity}
}

// Resolve returns empty credentials, not an error, when the corresponding
// environment variables are unset: the caller treats that as "fall back to
// public access," which is exactly what an unset credential pair means
// here.
func (r *Resolver) Resolve(ctx context.Context, exchangeID int) (apiKey, apiSecret string, err error) {
	keyVar := r.envName(exchangeID, "API_KEY")
	secretVar := r.envName(exchangeID, "API_SECRET")
	return os.Getenv(keyVar), os.Getenv(secretVar), nil
}

func (r *Resolver) envName(exchangeID int, suffix string) string {
	if r.adminIdentity == "" {
		return fmt.Sprintf("EXCHANGE_%d_%s", exchangeID, suffix)
	}
	return fmt.Sprintf("%s_EXCHANGE_%d_%s", r.adminIdentity, exchangeID, suffix)
}
