package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"finscraper/internal/pipeline"
	"finscraper/internal/runstore"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func describeError(outcome pipeline.Outcome) string {
	if outcome.Success {
		return ""
	}
	if outcome.ErrorMessage == "" {
		return outcome.ErrorType
	}
	return fmt.Sprintf("%s: %s", outcome.ErrorType, outcome.ErrorMessage)
}

// flatten lists every leaf of `value` under its dot separated path. Lists of records are
// summarized, they are printed as their own tables.
func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			flatten(path, inner, out)
		}
	case []any:
		out[prefix] = fmt.Sprintf("%d rows", len(v))
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var canonicalColumns = []string{"date", "description", "amount", "balance", "reference"}

// transactionColumns orders the canonical transaction fields first, then every other column
// alphabetically.
func transactionColumns(rows []any) []string {
	present := map[string]bool{}
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		for key := range record {
			present[key] = true
		}
	}

	var columns []string
	for _, column := range canonicalColumns {
		if present[column] {
			columns = append(columns, column)
			delete(present, column)
		}
	}
	return append(columns, sortedKeys(present)...)
}

func printTransactions(out io.Writer, account string, rows []any) {
	columns := transactionColumns(rows)
	if len(columns) == 0 {
		return
	}

	t := newTable(out)
	t.SetTitle(fmt.Sprintf("%s transactions", account))
	header := table.Row{}
	for _, column := range columns {
		header = append(header, column)
	}
	t.AppendHeader(header)
	for _, row := range rows {
		record, _ := row.(map[string]any)
		cells := table.Row{}
		for _, column := range columns {
			cell, ok := record[column]
			if !ok {
				cell = ""
			}
			cells = append(cells, cell)
		}
		t.AppendRow(cells)
	}
	t.Render()
}

// printOutcome prints the summary of a run, its data fields and a table per account
// with transactions.
func printOutcome(out io.Writer, profileName string, outcome pipeline.Outcome) {
	summary := newTable(out)
	summary.AppendRow(table.Row{"Profile", profileName})
	summary.AppendRow(table.Row{"Success", outcome.Success})
	if !outcome.Success {
		summary.AppendRow(table.Row{"Error", describeError(outcome)})
	}
	summary.Render()

	if len(outcome.Data) == 0 {
		return
	}

	fields := map[string]string{}
	flatten("", outcome.Data, fields)
	data := newTable(out)
	data.AppendHeader(table.Row{"Field", "Value"})
	for _, key := range sortedKeys(fields) {
		data.AppendRow(table.Row{key, fields[key]})
	}
	data.Render()

	accounts, _ := outcome.Data["accounts"].(map[string]any)
	for _, account := range sortedKeys(accounts) {
		accountFields, _ := accounts[account].(map[string]any)
		rows, ok := accountFields["transactions"].([]any)
		if ok && len(rows) > 0 {
			printTransactions(out, account, rows)
		}
	}
}

func printRuns(out io.Writer, runs []runstore.Run) {
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Started", "Duration", "Success", "Error"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Format(time.DateTime),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			run.Outcome.Success,
			describeError(run.Outcome),
		})
	}
	t.Render()
}

func loginKind(kind string) string {
	if kind == "" {
		return "none"
	}
	return strings.ToLower(kind)
}
