package policy

import (
	"fmt"

	"github.com/agentbridge/agentbridge/internal/store"
)

// Loader reloads an Authorizer's Snapshot from the policy store.
type Loader struct {
	repo *store.PolicyRepo
	auth *Authorizer
}

func NewLoader(repo *store.PolicyRepo, auth *Authorizer) *Loader {
	return &Loader{repo: repo, auth: auth}
}

// Reload reads the full policy and group tables and installs a fresh
// Snapshot. Called at startup, on SIGHUP, and from the admin reload
// endpoint (SPEC_FULL.md §10).
func (l *Loader) Reload() error {
	rows, err := l.repo.LoadPolicies()
	if err != nil {
		return fmt.Errorf("load policy rows: %w", err)
	}
	groupRows, err := l.repo.LoadGroups()
	if err != nil {
		return fmt.Errorf("load group rows: %w", err)
	}

	rules := make([]Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, Rule{Subject: r.Subject, Object: r.Object, Action: r.Action, Effect: Effect(r.Effect)})
	}

	groups := make(map[string][]string)
	for _, g := range groupRows {
		groups[g.Group] = append(groups[g.Group], g.Member)
	}

	l.auth.Reload(NewSnapshot(rules, groups))
	return nil
}
