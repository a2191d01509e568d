package analyzer

import (
	"errors"
	"regexp"
	"strings"
)

// FallbackSQL always executes; it stands in for an unusable generation.
const FallbackSQL = "SELECT 1 AS result"

var (
	ErrEmptyQuery = errors.New("generated query is empty")
	ErrNotSelect  = errors.New("query must start with SELECT")
)

// completionMarkers are structured-output delimiters a model may echo into
// the query field.
var completionMarkers = []string{"[[", "##"}

// fenceRe matches a fenced block with an optional sql language tag. An
// unterminated fence runs to the end of the text.
var fenceRe = regexp.MustCompile("(?s)```((?i:sqlite3?|sql))?(?:[ \\t]*\\r?\\n|[ \\t]+)?(.*?)(?:```|\\z)")

// SanitizeSQL turns a raw generation into a single-line SELECT statement.
func SanitizeSQL(raw string) (string, error) {
	sql := strings.TrimSpace(raw)

	for _, marker := range completionMarkers {
		if i := strings.Index(sql, marker); i >= 0 {
			sql = sql[:i]
		}
	}

	if block, ok := fencedBlock(sql); ok {
		sql = block
	}

	if i := strings.Index(sql, ";"); i >= 0 {
		sql = sql[:i]
	}
	sql = strings.Join(strings.Fields(sql), " ")

	if sql == "" {
		return "", ErrEmptyQuery
	}
	if !strings.HasPrefix(strings.ToUpper(sql), "SELECT") {
		return "", ErrNotSelect
	}
	return sql, nil
}

// fencedBlock returns the content of the first sql-tagged fence, or of the
// first fence when none is tagged.
func fencedBlock(s string) (string, bool) {
	matches := fenceRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if m[1] != "" {
			return m[2], true
		}
	}
	return matches[0][2], true
}
