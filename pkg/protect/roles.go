package protect

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// RoleLookup returns the display names of the directory roles assigned to
// the entity with the given remote id.
type RoleLookup interface {
	Roles(ctx context.Context, remoteID string) ([]string, error)
}

// RoleLookupFunc adapts a function to RoleLookup.
type RoleLookupFunc func(ctx context.Context, remoteID string) ([]string, error)

// Roles calls f.
func (f RoleLookupFunc) Roles(ctx context.Context, remoteID string) ([]string, error) {
	return f(ctx, remoteID)
}

// roleCheck is the outcome of one role lookup. A non-nil err means the
// lookup failed and the check did not run.
type roleCheck struct {
	matched string
	err     error
}

// DefaultRoleLookupConcurrency bounds parallel role lookups.
const DefaultRoleLookupConcurrency = 8

// lookupRoles runs lookups for every candidate concurrently and returns one
// check per candidate, index-aligned. It only fails when ctx is cancelled,
// including cancellation while a lookup is in flight.
func lookupRoles(ctx context.Context, lookup RoleLookup, candidates []Candidate, protectedRoles []string, limit int) ([]roleCheck, error) {
	checks := make([]roleCheck, len(candidates))
	if limit <= 0 {
		limit = DefaultRoleLookupConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			roles, err := lookup.Roles(gctx, c.RemoteID)
			if err != nil {
				// A cancelled run is not a failed lookup.
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				checks[i] = roleCheck{err: err}
				return nil
			}
			checks[i] = roleCheck{matched: matchRole(roles, protectedRoles)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

// matchRole returns the first assigned role whose display name contains one
// of the protected role names, compared case-insensitively.
func matchRole(roles, protectedRoles []string) string {
	for _, role := range roles {
		roleLower := fold(role)
		for _, pr := range protectedRoles {
			prLower := fold(strings.TrimSpace(pr))
			if prLower != "" && strings.Contains(roleLower, prLower) {
				return role
			}
		}
	}
	return ""
}
