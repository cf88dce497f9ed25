package store

import (
	"database/sql"
	"fmt"
)

// PolicyRow is a raw subject/object/action/effect tuple as stored, before
// the policy package compiles it into an Authorizer.
type PolicyRow struct {
	Subject string
	Object  string
	Action  string
	Effect  string
}

// GroupMembership is a raw group_name -> member row.
type GroupMembership struct {
	Group  string
	Member string
}

// PolicyRepo loads the ACL policy and group tables, grounded on the
// teacher's JSONStore full-snapshot read pattern (persistence/store.go):
// the whole policy set is small and re-read wholesale on reload rather
// than queried per-request.
type PolicyRepo struct {
	db *sql.DB
}

func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

func (r *PolicyRepo) LoadPolicies() ([]PolicyRow, error) {
	rows, err := r.db.Query(`SELECT subject, object, action, effect FROM acl_policies`)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyRow
	for rows.Next() {
		var p PolicyRow
		if err := rows.Scan(&p.Subject, &p.Object, &p.Action, &p.Effect); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PolicyRepo) LoadGroups() ([]GroupMembership, error) {
	rows, err := r.db.Query(`SELECT group_name, member FROM acl_groups`)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	defer rows.Close()

	var out []GroupMembership
	for rows.Next() {
		var g GroupMembership
		if err := rows.Scan(&g.Group, &g.Member); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// PutPolicy upserts a single policy row, keyed by (subject, object, action).
func (r *PolicyRepo) PutPolicy(p PolicyRow) error {
	_, err := r.db.Exec(`
		DELETE FROM acl_policies WHERE subject = ? AND object = ? AND action = ?
	`, p.Subject, p.Object, p.Action)
	if err != nil {
		return fmt.Errorf("replace policy: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO acl_policies (subject, object, action, effect) VALUES (?, ?, ?, ?)
	`, p.Subject, p.Object, p.Action, p.Effect)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (r *PolicyRepo) PutGroupMember(group, member string) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO acl_groups (group_name, member) VALUES (?, ?)
	`, group, member)
	if err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}
