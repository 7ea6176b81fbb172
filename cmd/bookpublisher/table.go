package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"BookPublisher/internal/usecase"
)

const excerptWidth = 60

func renderResults(results []usecase.SearchResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Chapter", "Title", "Similarity", "Finalized On", "Excerpt"})

	for i, r := range results {
		tw.AppendRow(table.Row{
			i + 1,
			r.ChapterID,
			r.Title,
			strconv.FormatFloat(r.Similarity, 'f', 4, 64),
			r.FinalizedOn,
			excerpt(r.Excerpt),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= excerptWidth {
		return s
	}
	return string(runes[:excerptWidth-3]) + "..."
}
