package profile

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Source describes one directory variant and how to project it onto a Profile.
type Source struct {
	Kind     Kind
	Table    string
	NameExpr string
	Rank     int
}

// DefaultSources are probed by a single query; when an id exists in more than one
// variant the lowest rank wins.
var DefaultSources = []Source{
	{Kind: KindPatient, Table: "patients", NameExpr: "TRIM(first_name || ' ' || last_name)", Rank: 1},
	{Kind: KindMentor, Table: "mentors", NameExpr: "full_name", Rank: 2},
	{Kind: KindAccount, Table: "accounts", NameExpr: "display_name", Rank: 3},
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresDirectory struct {
	db      querier
	sources []Source
}

func NewPostgresDirectory(db querier) *PostgresDirectory {
	return &PostgresDirectory{db: db, sources: DefaultSources}
}

func (d *PostgresDirectory) sourceSelect(s Source, where sq.Sqlizer) sq.SelectBuilder {
	return sq.Select(
		"id",
		s.NameExpr+" AS display_name",
		"avatar_url",
		fmt.Sprintf("'%s' AS kind", s.Kind),
		fmt.Sprintf("%d AS rank", s.Rank),
	).From(s.Table).Where(where)
}

func (d *PostgresDirectory) union(parts []sq.SelectBuilder) (string, []any, error) {
	var (
		sql  string
		args []any
	)
	for i, p := range parts {
		q, a, err := p.ToSql()
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sql += " UNION ALL "
		}
		sql += q
		args = append(args, a...)
	}
	return sql, args, nil
}

func (d *PostgresDirectory) Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error) {
	out := make(map[uuid.UUID]Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	parts := make([]sq.SelectBuilder, 0, len(d.sources))
	for _, s := range d.sources {
		parts = append(parts, d.sourceSelect(s, sq.Eq{"id": keys}))
	}
	inner, args, err := d.union(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %v", err)
	}
	query, err := sq.Dollar.ReplacePlaceholders(
		"SELECT DISTINCT ON (id) id, display_name, avatar_url, kind FROM (" + inner + ") AS u ORDER BY id, rank")
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %v", err)
	}

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Profile
		var kind string
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.AvatarURL, &kind); err != nil {
			return nil, err
		}
		p.Kind = Kind(kind)
		out[p.ID] = p
	}
	return out, rows.Err()
}

// counterparts lists the directory variants a user of the given kind may contact.
func (d *PostgresDirectory) counterparts(kind Kind) []Source {
	var out []Source
	for _, s := range d.sources {
		if CanContact(kind, s.Kind) {
			out = append(out, s)
		}
	}
	return out
}

// CanContact reports whether a user of kind self may start a conversation with one of kind other.
func CanContact(self, other Kind) bool {
	switch self {
	case KindPatient:
		return other == KindMentor
	case KindMentor:
		return other == KindPatient
	default:
		return other == KindPatient || other == KindMentor
	}
}

func (d *PostgresDirectory) Contacts(ctx context.Context, userID uuid.UUID, kind Kind, limit int) ([]Profile, error) {
	sources := d.counterparts(kind)
	if len(sources) == 0 {
		return []Profile{}, nil
	}
	parts := make([]sq.SelectBuilder, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, d.sourceSelect(s, sq.NotEq{"id": userID.String()}))
	}
	inner, args, err := d.union(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %v", err)
	}
	query, err := sq.Dollar.ReplacePlaceholders(fmt.Sprintf(
		"SELECT id, display_name, avatar_url, kind FROM (%s) AS u ORDER BY rank, display_name, id LIMIT %d", inner, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %v", err)
	}

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var k string
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.AvatarURL, &k); err != nil {
			return nil, err
		}
		p.Kind = Kind(k)
		out = append(out, p)
	}
	return out, rows.Err()
}
