package protect

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"idsync/pkg/schema"
)

// Reasons recorded on a Decision.
const (
	ReasonPattern  = "pattern"
	ReasonDenylist = "denylist"
	ReasonRule     = "rule"
	ReasonRole     = "role"
)

// Candidate is a mutating action up for protection review.
type Candidate struct {
	Key      string               `json:"key"`
	RemoteID string               `json:"remoteId"`
	Remote   *schema.RemoteRecord `json:"-"`
}

// Decision is the protection verdict for one candidate.
type Decision struct {
	Key         string `json:"key"`
	RemoteID    string `json:"remoteId"`
	IsProtected bool   `json:"isProtected"`
	Reason      string `json:"reason,omitempty"`
	MatchedRole string `json:"matchedRole,omitempty"`
	MatchedRule string `json:"matchedRule,omitempty"`
	LookupErr   string `json:"lookupError,omitempty"`
}

// ProtectedEntry pairs a vetoed candidate with its decision.
type ProtectedEntry struct {
	Candidate Candidate `json:"candidate"`
	Decision  Decision  `json:"decision"`
}

// Result splits candidates into allowed and protected. Both keep input order.
type Result struct {
	Allowed   []Candidate      `json:"allowed"`
	Protected []ProtectedEntry `json:"protected"`

	// LookupFailures lists the unprotected decisions whose role lookup failed.
	LookupFailures []Decision `json:"lookupFailures,omitempty"`
}

// Config holds the protection settings.
type Config struct {
	Patterns              []string `toml:"patterns"`
	Denylist              []string `toml:"denylist"`
	Expressions           []string `toml:"expressions"`
	RoleProtection        bool     `toml:"role_protection"`
	ProtectedRoles        []string `toml:"protected_roles"`
	RoleLookupConcurrency int      `toml:"role_lookup_concurrency"`
}

// Filter vetoes mutating actions against protected entities.
type Filter struct {
	patterns []pattern
	denylist map[string]struct{}
	rules    []rule

	roleProtection bool
	protectedRoles []string
	concurrency    int
	roles          RoleLookup

	log zerolog.Logger
}

// New compiles cfg. roles may be nil when role protection is off.
func New(cfg Config, roles RoleLookup, log zerolog.Logger) (*Filter, error) {
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	rules, err := compileRules(cfg.Expressions)
	if err != nil {
		return nil, err
	}
	if cfg.RoleProtection && roles == nil {
		return nil, fmt.Errorf("role protection enabled without a role lookup")
	}

	deny := make(map[string]struct{}, len(cfg.Denylist))
	for _, id := range cfg.Denylist {
		if id = strings.TrimSpace(id); id != "" {
			deny[id] = struct{}{}
		}
	}

	var protectedRoles []string
	for _, r := range cfg.ProtectedRoles {
		if r = strings.TrimSpace(r); r != "" {
			protectedRoles = append(protectedRoles, r)
		}
	}

	return &Filter{
		patterns:       patterns,
		denylist:       deny,
		rules:          rules,
		roleProtection: cfg.RoleProtection && len(protectedRoles) > 0,
		protectedRoles: protectedRoles,
		concurrency:    cfg.RoleLookupConcurrency,
		roles:          roles,
		log:            log,
	}, nil
}

// Filter evaluates every candidate. Static checks run first; candidates
// that pass them go through role lookup concurrently. A failed lookup never
// protects. The only error is ctx cancellation during role lookup.
func (f *Filter) Filter(ctx context.Context, candidates []Candidate) (Result, error) {
	decisions := make([]Decision, len(candidates))
	var pending []int

	for i, c := range candidates {
		d := f.static(c)
		decisions[i] = d
		if !d.IsProtected && f.roleProtection && c.RemoteID != "" {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		sub := make([]Candidate, len(pending))
		for j, i := range pending {
			sub[j] = candidates[i]
		}
		checks, err := lookupRoles(ctx, f.roles, sub, f.protectedRoles, f.concurrency)
		if err != nil {
			return Result{}, fmt.Errorf("role lookup: %w", err)
		}
		for j, i := range pending {
			check := checks[j]
			d := &decisions[i]
			switch {
			case check.err != nil:
				d.LookupErr = check.err.Error()
				f.log.Warn().Err(check.err).
					Str("key", d.Key).
					Str("remote_id", d.RemoteID).
					Msg("role lookup failed, treating as unprotected")
			case check.matched != "":
				d.IsProtected = true
				d.Reason = ReasonRole
				d.MatchedRole = check.matched
			}
		}
	}

	var out Result
	for i, c := range candidates {
		d := decisions[i]
		if d.IsProtected {
			out.Protected = append(out.Protected, ProtectedEntry{Candidate: c, Decision: d})
			f.log.Info().
				Str("key", d.Key).
				Str("reason", d.Reason).
				Msg("protected entity, action vetoed")
			continue
		}
		out.Allowed = append(out.Allowed, c)
		if d.LookupErr != "" {
			out.LookupFailures = append(out.LookupFailures, d)
		}
	}
	return out, nil
}

func (f *Filter) static(c Candidate) Decision {
	d := Decision{Key: c.Key, RemoteID: c.RemoteID}

	if raw, ok := matchPatterns(f.patterns, c.Key); ok {
		d.IsProtected = true
		d.Reason = ReasonPattern
		d.MatchedRule = raw
		return d
	}

	if _, ok := f.denylist[c.Key]; ok {
		d.IsProtected = true
		d.Reason = ReasonDenylist
		d.MatchedRule = c.Key
		return d
	}
	if c.RemoteID != "" {
		if _, ok := f.denylist[c.RemoteID]; ok {
			d.IsProtected = true
			d.Reason = ReasonDenylist
			d.MatchedRule = c.RemoteID
			return d
		}
	}

	for _, r := range f.rules {
		hit, err := r.eval(c)
		if err != nil {
			f.log.Warn().Err(err).
				Str("key", c.Key).
				Str("expression", r.expr).
				Msg("protection expression failed, skipping")
			continue
		}
		if hit {
			d.IsProtected = true
			d.Reason = ReasonRule
			d.MatchedRule = r.expr
			return d
		}
	}

	return d
}
