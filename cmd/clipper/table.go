package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableSpec describes a CLI table. Numeric columns are right-aligned; a
// non-empty caption renders under the table as a row count or summary.
type tableSpec struct {
	headers []string
	numeric map[int]bool
	caption string
}

func newTable(headers ...string) *tableSpec {
	return &tableSpec{headers: headers, numeric: map[int]bool{}}
}

func (s *tableSpec) alignRight(columns ...int) *tableSpec {
	for _, c := range columns {
		s.numeric[c] = true
	}
	return s
}

func (s *tableSpec) withCaption(format string, args ...any) *tableSpec {
	s.caption = fmt.Sprintf(format, args...)
	return s
}

func (s *tableSpec) render(rows [][]string) string {
	if len(s.headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(s.headers))
	for i, h := range s.headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(s.headers))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(s.headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if s.numeric[i] {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	if s.caption != "" {
		tw.SetCaption(s.caption)
	}
	return tw.Render()
}
