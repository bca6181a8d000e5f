package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"webstats/internal/query"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// resolveFormat picks the output format: an explicit flag wins, otherwise
// terminals get a table and pipes get JSON.
func resolveFormat(flagValue string, isTerminal bool) string {
	switch strings.ToLower(strings.TrimSpace(flagValue)) {
	case formatJSON:
		return formatJSON
	case formatTable:
		return formatTable
	}
	if isTerminal {
		return formatTable
	}
	return formatJSON
}

func writeTable(w io.Writer, result *query.QueryResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(upper(result.Columns), "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = formatCell(row[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Totals) > 0 {
		keys := make([]string, 0, len(result.Totals))
		for k := range result.Totals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + formatCell(result.Totals[k])
		}
		fmt.Fprintf(w, "\ntotals: %s\n", strings.Join(parts, " "))
	}
	_, err := fmt.Fprintf(w, "%d rows, %s base, %s, %dms\n",
		len(result.Rows), result.Meta.Base, result.Meta.Range, result.Meta.ElapsedMs)
	return err
}

func writeCatalog(w io.Writer, desc query.Description) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "FILTER\tTYPE\tREQUIRES\tOPERATORS")
	for _, f := range desc.Filters {
		ops := make([]string, len(f.Operators))
		for i, op := range f.Operators {
			ops[i] = string(op)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Type, orDash(string(f.Requires)), strings.Join(ops, ","))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "GROUP BY\tALIAS\tREQUIRES\tCOLUMNS")
	for _, g := range desc.GroupBys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.Name, g.Alias, orDash(string(g.Requires)), strings.Join(g.Columns, ","))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "MEASURE\tBASES\tDESCRIPTION")
	for _, m := range desc.Measures {
		bases := make([]string, len(m.Bases))
		for i, b := range m.Bases {
			bases[i] = string(b)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, strings.Join(bases, ","), m.Description)
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ", ")
	}
	return fmt.Sprint(v)
}

func upper(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToUpper(c)
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
