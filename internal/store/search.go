package store

import (
	"fmt"
	"strings"
	"unicode"
)

// Filter narrows the candidate set for both recall paths. It is applied as
// a pre-filter inside the queries, never as a post-filter on ranked output.
type Filter struct {
	Tag  string
	From int64 // unix ms UTC inclusive, 0 = unbounded
	To   int64 // unix ms UTC inclusive, 0 = unbounded
}

// clauses renders the filter as additional WHERE conditions against the
// notes table aliased as n.
func (f Filter) clauses() (string, []any) {
	var sb strings.Builder
	var args []any
	if f.Tag != "" {
		sb.WriteString(" AND EXISTS (SELECT 1 FROM json_each(n.tags) WHERE json_each.value = ?)")
		args = append(args, f.Tag)
	}
	if f.From > 0 {
		sb.WriteString(" AND n.created >= ?")
		args = append(args, f.From)
	}
	if f.To > 0 {
		sb.WriteString(" AND n.created <= ?")
		args = append(args, f.To)
	}
	return sb.String(), args
}

// KeywordHit is a lexical match with its relevance score (higher is
// better).
type KeywordHit struct {
	NoteID int64
	Score  float64
}

func queryRuneAllowed(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
		r == '_' || r == '-'
}

// ValidateQuery checks a recall query against the token grammar the
// full-text index accepts. Stray punctuation the index would interpret as
// an operator yields a QuerySyntaxError carrying the offending token and a
// cleaned alternative; the decision to retry belongs to the caller.
func ValidateQuery(query string) error {
	for _, token := range strings.Fields(query) {
		for _, r := range token {
			if !queryRuneAllowed(r) {
				return &QuerySyntaxError{Token: token, Suggestion: CleanQuery(query)}
			}
		}
	}
	return nil
}

// CleanQuery strips every character the full-text index could mistake for
// an operator and collapses the remaining whitespace.
func CleanQuery(query string) string {
	var sb strings.Builder
	for _, r := range query {
		if queryRuneAllowed(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// matchExpr renders a validated query as an FTS5 MATCH expression: each
// token double-quoted, implicitly ANDed.
func matchExpr(query string) string {
	tokens := strings.Fields(query)
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " ")
}

// SearchKeyword runs a full-text match over note content and summary,
// returning hits best-first. The query must pass ValidateQuery; the filter
// narrows candidates before ranking so a limit is always satisfied by
// relevant items.
func (db *DB) SearchKeyword(query string, f Filter, limit int) ([]KeywordHit, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}

	where, filterArgs := f.clauses()
	args := append([]any{expr}, filterArgs...)
	args = append(args, limit)

	// bm25 is ascending-better; negate so callers rank descending.
	rows, err := db.Query(`
		SELECT n.id, -bm25(notes_fts) AS score
		FROM notes_fts JOIN notes n ON n.id = notes_fts.rowid
		WHERE notes_fts MATCH ?`+where+`
		ORDER BY bm25(notes_fts) LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.NoteID, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
