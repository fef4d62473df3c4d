// Package prompt builds the request sent to the tabular agent: a fixed
// policy, a summary of the loaded tables and the user's question.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/csv-chat/backend/internal/models"
)

// ErrEmptyQuestion is returned by Compose for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// MaxSummaryColumns is the default number of columns listed per table.
const MaxSummaryColumns = 15

// Policy tells the agent to answer from the loaded tables only.
const Policy = `You are a strict data assistant working with one or more SQL tables loaded from the user's CSV files.

GENERAL RULES
- You MUST always inspect the tables with your tools before answering.
- You are NOT allowed to answer from general knowledge or guesses.
- Never respond with "you can find it in column X" or "it is stored in the table".
- Always return the actual values from the tables.

TEXT QUESTIONS (FAQs / policies, etc.)
- For questions like "what is the return policy" or "what is the warranty", do this:
  1. Look through all text columns for relevant rows
     (for example using WHERE "Question" ILIKE '%keyword%').
  2. If there is a column named 'Answer', 'Policy', 'Description', 'Details'
     or similar, treat that as the main answer column.
  3. Return the cell text from the most relevant row(s).
  4. If multiple rows are relevant, list them clearly (e.g. bullet points).

NUMERIC QUESTIONS
- For numeric questions (totals, counts, averages, etc.), use SQL aggregations
  on the numeric columns (SUM, AVG, COUNT, GROUP BY) and give the computed result.

ANSWER STYLE
- Answer in plain English.
- Quote the actual text or numbers from the tables.
- Only mention file/column names briefly if helpful.`

const (
	dataSeparator     = "\n\nABOUT THE DATA\nThe following tables are loaded from CSV files:\n"
	questionSeparator = "\n\nNow answer this question using the tables only:\n"
)

// Summarize describes each table on one line, in order, listing at most
// maxColumns leading column names (MaxSummaryColumns when maxColumns <= 0).
func Summarize(tables []*models.Table, maxColumns int) string {
	if maxColumns <= 0 {
		maxColumns = MaxSummaryColumns
	}

	lines := make([]string, 0, len(tables))
	for _, t := range tables {
		names := t.ColumnNames()
		listed := names
		if len(listed) > maxColumns {
			listed = listed[:maxColumns]
		}

		line := fmt.Sprintf("- file '%s' (table %s) has columns: %s", t.Name, t.SQLName, strings.Join(listed, ", "))
		if extra := len(names) - len(listed); extra > 0 {
			line += fmt.Sprintf(", ... (+%d more)", extra)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Compose joins the policy, the table summary and the question into the
// final request. The question is passed through verbatim.
func Compose(summary, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	return Policy + dataSeparator + summary + questionSeparator + question, nil
}
