// Package format renders quizzes as plain text and as table rows.
package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pavelanni/mcqgen/internal/model"
)

// OrderedKeys returns the quiz keys sorted numerically when every key is an
// integer, otherwise in quiz order.
func OrderedKeys(q model.Quiz) []string {
	keys := q.Keys()
	nums := make(map[string]int, len(keys))
	for _, k := range keys {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return keys
		}
		nums[k] = n
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return nums[keys[i]] < nums[keys[j]]
	})
	return keys
}

// Text renders a quiz for humans:
//
//	1. Question text
//	   a) first option
//	   Correct: a
//	   Explanation: why
func Text(q model.Quiz) string {
	var lines []string
	for _, k := range OrderedKeys(q) {
		item, _ := q.Get(k)
		lines = append(lines, fmt.Sprintf("%s. %s", k, item.MCQ))
		for _, letter := range model.OptionKeys {
			if text, ok := item.Options[letter]; ok {
				lines = append(lines, fmt.Sprintf("   %s) %s", letter, text))
			}
		}
		lines = append(lines, "   Correct: "+item.Correct)
		if item.Explanation != "" {
			lines = append(lines, "   Explanation: "+item.Explanation)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Row is one question flattened for a table view.
type Row struct {
	Key         string `json:"key"`
	MCQ         string `json:"mcq"`
	Choices     string `json:"choices"`
	Correct     string `json:"correct"`
	Explanation string `json:"explanation"`
}

// Columns are the table headers matching Row fields.
var Columns = []string{"#", "MCQ", "Choices", "Correct", "Explanation"}

// Rows flattens a quiz into table rows, one per question, in display order.
func Rows(q model.Quiz) []Row {
	keys := OrderedKeys(q)
	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		item, _ := q.Get(k)
		rows = append(rows, Row{
			Key:         k,
			MCQ:         item.MCQ,
			Choices:     Choices(item.Options),
			Correct:     item.Correct,
			Explanation: item.Explanation,
		})
	}
	return rows
}

// Choices joins options as "a-> x || b-> y". Letters a..d come first in
// order; any other keys follow alphabetically.
func Choices(opts model.Options) string {
	var parts []string
	seen := make(map[string]bool, len(model.OptionKeys))
	for _, letter := range model.OptionKeys {
		seen[letter] = true
		if text, ok := opts[letter]; ok {
			parts = append(parts, letter+"-> "+text)
		}
	}
	var extra []string
	for k := range opts {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, k+"-> "+opts[k])
	}
	return strings.Join(parts, " || ")
}

func (r Row) values() []string {
	return []string{r.Key, r.MCQ, r.Choices, r.Correct, r.Explanation}
}

// WriteTable writes rows as an aligned plain-text table.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Columns, "\t"))
	for _, r := range rows {
		vals := r.values()
		for i, v := range vals {
			vals[i] = strings.ReplaceAll(strings.ReplaceAll(v, "\t", " "), "\n", " ")
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	return tw.Flush()
}

// WriteCSV writes rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
