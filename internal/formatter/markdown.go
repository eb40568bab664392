// Package formatter renders result tables as aligned markdown for terminal preview.
package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"harvester/internal/models"
	"harvester/pkg/utils"
)

// PreviewOptions tunes Preview.
type PreviewOptions struct {
	// Title is rendered as a heading when set.
	Title string
	// Limit caps the number of rows; 0 means all.
	Limit int
	// TextWidth is the display width at which the text column is cut. Default 48.
	TextWidth int
}

type metricColumn struct {
	get  func(*models.Record) *int64
	name string
}

var metricColumns = []metricColumn{
	{name: "views", get: func(r *models.Record) *int64 { return r.ViewCount }},
	{name: "likes", get: func(r *models.Record) *int64 { return r.LikeCount }},
	{name: "dislikes", get: func(r *models.Record) *int64 { return r.DislikeCount }},
	{name: "comments", get: func(r *models.Record) *int64 { return r.CommentCount }},
	{name: "reactions", get: func(r *models.Record) *int64 { return r.ReactionCount }},
	{name: "shares", get: func(r *models.Record) *int64 { return r.ShareCount }},
	{name: "replies", get: func(r *models.Record) *int64 { return r.ReplyCount }},
	{name: "forwards", get: func(r *models.Record) *int64 { return r.ForwardCount }},
	{name: "members", get: func(r *models.Record) *int64 { return r.MemberCount }},
	{name: "messages", get: func(r *models.Record) *int64 { return r.MessageCount }},
}

// Preview renders records as a markdown table. Metric columns appear only when at
// least one shown record reports them; unreported values are left blank.
func Preview(records []models.Record, opts PreviewOptions) string {
	textWidth := opts.TextWidth
	if textWidth <= 0 {
		textWidth = 48
	}

	shown := records
	if opts.Limit > 0 && len(shown) > opts.Limit {
		shown = shown[:opts.Limit]
	}

	var metrics []metricColumn

	for _, m := range metricColumns {
		for i := range shown {
			if m.get(&shown[i]) != nil {
				metrics = append(metrics, m)

				break
			}
		}
	}

	header := []string{"id", "kind", "source", "created_at", "text"}
	for _, m := range metrics {
		header = append(header, m.name)
	}

	rows := [][]string{header, nil}

	for i := range shown {
		r := &shown[i]
		row := []string{
			cell(r.ID, 0), string(r.Kind), cell(r.Source, 0), r.CreatedAt, cell(r.Text, textWidth),
		}

		for _, m := range metrics {
			v := ""
			if p := m.get(r); p != nil {
				v = strconv.FormatInt(*p, 10)
			}

			row = append(row, v)
		}

		rows = append(rows, row)
	}

	var sb strings.Builder

	if opts.Title != "" {
		fmt.Fprintf(&sb, "## %s\n\n", opts.Title)
	}

	sb.WriteString(strings.Join(renderTable(rows, 1), "\n"))
	sb.WriteString("\n")

	if len(shown) < len(records) {
		fmt.Fprintf(&sb, "\n%d of %d records shown\n", len(shown), len(records))
	}

	return sb.String()
}

// cell flattens s onto one line, escapes pipes and cuts it to width columns (0 = no cut).
func cell(s string, width int) string {
	s = utils.NewStringHelper().NormalizeWhitespace(s)
	s = strings.ReplaceAll(s, "|", `\|`)

	if width > 0 {
		s = runewidth.Truncate(s, width, "...")
	}

	return s
}

// FormatMarkdown realigns every pipe table in content by display width. Wide
// (CJK) characters count as two columns. Other lines are kept as they are.
func FormatMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	var block []string

	flush := func() {
		if len(block) > 0 {
			out = append(out, alignBlock(block)...)
			block = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			block = append(block, line)

			continue
		}

		flush()

		out = append(out, line)
	}

	flush()

	return strings.Join(out, "\n")
}

func alignBlock(lines []string) []string {
	// A single row has no header separator and is left alone.
	if len(lines) < 2 {
		return lines
	}

	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = splitRow(line)
	}

	sep := -1
	if isSeparator(rows[1]) {
		sep = 1
	}

	return renderTable(rows, sep)
}

// splitRow splits a pipe row into trimmed cells. An escaped pipe stays in its cell.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return nil
	}

	line = line[1 : len(line)-1]

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}

	return true
}

// renderTable pads every cell to its column's display width. The row at index sep
// (if any) is drawn as the dash separator. Columns are at least three wide.
func renderTable(rows [][]string, sep int) []string {
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}

	for r, row := range rows {
		if r == sep {
			continue
		}

		for c, v := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(v))
		}
	}

	out := make([]string, len(rows))

	for r, row := range rows {
		var sb strings.Builder

		sb.WriteString("|")

		for c := 0; c < cols; c++ {
			sb.WriteString(" ")

			if r == sep {
				sb.WriteString(strings.Repeat("-", widths[c]))
			} else {
				v := ""
				if c < len(row) {
					v = row[c]
				}

				sb.WriteString(runewidth.FillRight(v, widths[c]))
			}

			sb.WriteString(" |")
		}

		out[r] = sb.String()
	}

	return out
}
