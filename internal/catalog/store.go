package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"camerasync/internal/grouping"
)

// HasFile reports whether name is catalogued with a state of at least minState.
func (s *Store) HasFile(ctx context.Context, name string, minState State) (bool, error) {
	var state int
	err := s.db.QueryRowContext(ctx, "SELECT state FROM file WHERE name = ?", name).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("has file", err)
	}
	return State(state) >= minState, nil
}

// AddFile registers name under the group derived from its stem and tags.
// The group is created when absent and the file is inserted at StateSeen.
// Calling AddFile again for a known file changes nothing; if the derived
// group differs from the stored one the result reports Regrouped.
func (s *Store) AddFile(ctx context.Context, tags grouping.Tags, name, fileType string) (AddResult, error) {
	derived := grouping.Derive(grouping.Stem(name), tags)
	result := AddResult{Group: derived.Group, Seq: derived.Sequence}
	fileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result.Inserted = false
		result.ExistingGroup = ""
		result.Regrouped = false

		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT g.name FROM file f JOIN image_group g ON g.id = f.image_group_id WHERE f.name = ?`,
			name,
		).Scan(&existing)
		switch {
		case err == nil:
			result.ExistingGroup = existing
			result.Regrouped = existing != derived.Group
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup file: %w", err)
		}

		groupID, err := upsertGroup(ctx, tx, derived.Group)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file (name, type, seq, state, image_group_id) VALUES (?, ?, ?, ?, ?)`,
			name, fileType, derived.Sequence, int(StateSeen), groupID,
		); err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		result.Inserted = true
		return nil
	})
	if err != nil {
		return AddResult{}, wrap("add file", err)
	}
	return result, nil
}

func upsertGroup(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO image_group (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name,
	); err != nil {
		return 0, fmt.Errorf("upsert group: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM image_group WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup group: %w", err)
	}
	return id, nil
}

// MarkSynced advances name to StateSynced. Files already at or beyond
// StateSynced are left alone.
func (s *Store) MarkSynced(ctx context.Context, name string) error {
	res, err := s.exec(ctx,
		`UPDATE file SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ? AND state < ?`,
		int(StateSynced), name, int(StateSynced),
	)
	if err != nil {
		return wrap("mark synced", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	exists, err := s.HasFile(ctx, name, StateSeen)
	if err != nil {
		return err
	}
	if !exists {
		return wrap("mark synced", fmt.Errorf("%w: %s", ErrFileNotFound, name))
	}
	return nil
}

// UnprocessedGroups lists, sorted by name, every group with at least one
// member below StateProcessed.
func (s *Store) UnprocessedGroups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT g.name
		   FROM image_group g
		   JOIN file f ON f.image_group_id = g.id
		  WHERE f.state < ?
		  ORDER BY g.name`,
		int(StateProcessed),
	)
	if err != nil {
		return nil, wrap("unprocessed groups", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap("unprocessed groups", err)
		}
		groups = append(groups, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("unprocessed groups", err)
	}
	return groups, nil
}

// FilesForGroup returns the members of group keyed by filename.
func (s *Store) FilesForGroup(ctx context.Context, group string) (map[string]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.name, f.type, f.seq, f.state, g.name
		   FROM file f
		   JOIN image_group g ON g.id = f.image_group_id
		  WHERE g.name = ?
		  ORDER BY f.name`,
		group,
	)
	if err != nil {
		return nil, wrap("files for group", err)
	}
	defer rows.Close()

	files := make(map[string]File)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, wrap("files for group", err)
		}
		files[f.Name] = f
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("files for group", err)
	}
	return files, nil
}

// MarkGroupProcessed advances every member of group to StateProcessed in a
// single transaction. On any failure no member changes state.
func (s *Store) MarkGroupProcessed(ctx context.Context, group string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids, total, err := pendingMembers(ctx, tx, group)
		if err != nil {
			return err
		}
		if total == 0 {
			return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE file SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND state < ?`,
				int(StateProcessed), id, int(StateProcessed),
			); err != nil {
				return fmt.Errorf("update file %d: %w", id, err)
			}
		}
		return nil
	})
	return wrap("mark group processed", err)
}

func pendingMembers(ctx context.Context, tx *sql.Tx, group string) ([]int64, int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT f.id, f.state
		   FROM file f
		   JOIN image_group g ON g.id = f.image_group_id
		  WHERE g.name = ?
		  ORDER BY f.name`,
		group,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var (
		ids   []int64
		total int
	)
	for rows.Next() {
		var (
			id    int64
			state int
		)
		if err := rows.Scan(&id, &state); err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		total++
		if State(state) < StateProcessed {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	return ids, total, nil
}

// Groups summarizes every image group, sorted by name.
func (s *Store) Groups(ctx context.Context) ([]GroupSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.name,
		        COUNT(f.id),
		        COALESCE(SUM(CASE WHEN f.state >= ? THEN 1 ELSE 0 END), 0),
		        COALESCE(MIN(f.state), 0)
		   FROM image_group g
		   LEFT JOIN file f ON f.image_group_id = g.id
		  GROUP BY g.id
		  ORDER BY g.name`,
		int(StateProcessed),
	)
	if err != nil {
		return nil, wrap("groups", err)
	}
	defer rows.Close()

	var out []GroupSummary
	for rows.Next() {
		var (
			summary  GroupSummary
			minState int
		)
		if err := rows.Scan(&summary.Name, &summary.Files, &summary.Processed, &minState); err != nil {
			return nil, wrap("groups", err)
		}
		summary.MinState = State(minState)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("groups", err)
	}
	return out, nil
}

// StateCounts returns the number of files per state.
func (s *Store) StateCounts(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM file GROUP BY state`)
	if err != nil {
		return nil, wrap("state counts", err)
	}
	defer rows.Close()

	counts := map[State]int{StateSeen: 0, StateSynced: 0, StateProcessed: 0}
	for rows.Next() {
		var state, count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, wrap("state counts", err)
		}
		counts[State(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("state counts", err)
	}
	return counts, nil
}

func scanFile(scanner interface{ Scan(dest ...any) error }) (File, error) {
	var (
		f     File
		state int
	)
	if err := scanner.Scan(&f.ID, &f.Name, &f.Type, &f.Seq, &state, &f.Group); err != nil {
		return File{}, err
	}
	f.State = State(state)
	return f, nil
}
