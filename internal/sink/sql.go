package sink

import (
	"fmt"
	"strings"

	"harvester/internal/models"
)

// dialect captures the differences between the SQL sinks.
type dialect struct {
	placeholder func(n int) string
	intType     string
	jsonType    string
}

var (
	sqliteDialect = dialect{
		placeholder: func(int) string { return "?" },
		intType:     "INTEGER",
		jsonType:    "TEXT",
	}

	postgresDialect = dialect{
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		intType:     "BIGINT",
		jsonType:    "JSONB",
	}
)

var metricColumns = map[string]bool{
	"view_count": true, "like_count": true, "dislike_count": true, "comment_count": true,
	"reaction_count": true, "share_count": true, "reply_count": true, "forward_count": true,
	"member_count": true, "message_count": true,
}

// quoteIdent quotes a table or column name. Telegram table names contain dashes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d dialect) createTable(t *models.Table) string {
	cols := columns(t)
	defs := make([]string, len(cols))

	for i, c := range cols {
		typ := "TEXT"

		switch {
		case i == 0:
			typ = "TEXT PRIMARY KEY"
		case metricColumns[c]:
			typ = d.intType
		case c == "attributes":
			typ = d.jsonType
		case c == "source" || c == "kind" || c == "created_at" || c == "text" || c == "lang":
			typ = "TEXT NOT NULL"
		}

		defs[i] = quoteIdent(c) + " " + typ
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", "))
}

func (d dialect) insert(t *models.Table) string {
	cols := columns(t)
	names := make([]string, len(cols))
	params := make([]string, len(cols))

	for i, c := range cols {
		names[i] = quoteIdent(c)
		params[i] = d.placeholder(i + 1)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		quoteIdent(t.Name), strings.Join(names, ", "), strings.Join(params, ", "), names[0])
}
