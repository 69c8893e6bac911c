// Package prompt builds the instructions sent to a code generation backend.
// Build is a pure function of its input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/executor"
	"github.com/sakif/usage-dashboard/internal/frame"
)

// SampleRows is the number of leading and trailing rows shown.
const SampleRows = 5

// Request is everything a prompt depends on.
type Request struct {
	Text     string
	Table    *frame.Frame
	Contract executor.Contract
	// PriorCode and Feedback switch the prompt to refinement mode when both
	// are non-empty.
	PriorCode string
	Feedback  string
}

// Prompt splits the instructions (System) from the operator's request
// (User). Backends without roles concatenate them.
type Prompt struct {
	System string
	User   string
}

// Refinement reports whether r asks for a revision of earlier code.
func (r Request) Refinement() bool {
	return strings.TrimSpace(r.PriorCode) != "" && strings.TrimSpace(r.Feedback) != ""
}

// Combined is the single-message form of p.
func (p Prompt) Combined() string {
	return p.System + "\n\nUser request:\n" + p.User
}

func Build(r Request) Prompt {
	c := r.Contract
	table := r.Table
	if table == nil {
		table = frame.New(nil)
	}
	lang := c.Language
	if lang == "" {
		lang = "plotscript"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert and meticulous data analyst writing %s chart code.\n", lang)
	if r.Refinement() {
		b.WriteString("A user wants to refine a visualization you previously created.\n\n")
	} else {
		b.WriteString("Generate clean, readable and error-free code for the visualization the user requests.\n\n")
	}

	fmt.Fprintf(&b, "The table is already in memory as `%s`.\n\n", c.DataVar)
	section(&b, "Schema", table.Describe())
	section(&b, "Head", table.Head(SampleRows).String())
	section(&b, "Tail", table.Tail(SampleRows).String())

	quoted := lo.Map(table.ColumnNames(), func(n string, _ int) string { return fmt.Sprintf("%q", n) })
	fmt.Fprintf(&b, "Available columns are: [%s]\n\n", strings.Join(quoted, ", "))

	if r.Refinement() {
		fmt.Fprintf(&b, "Here is the original user request:\n%q\n\n", strings.TrimSpace(r.Text))
		section(&b, "Here is the code you previously generated", strings.TrimSpace(r.PriorCode))
		fmt.Fprintf(&b, "The user has provided the following feedback for how to change the chart:\n%q\n\n", strings.TrimSpace(r.Feedback))
		b.WriteString("Your task is to generate ONLY the updated code that incorporates the feedback, not a fresh chart.\n")
	} else {
		b.WriteString("Your task is to generate ONLY the code that creates the requested visualization.\n")
	}
	b.WriteString("Your response must be raw code only: no prose, no explanations, no markdown code fences.\n\n")

	b.WriteString("Requirements:\n")
	rules := []string{
		fmt.Sprintf("The table is bound to `%s`. Do not load any data.", c.DataVar),
		fmt.Sprintf("The plotting library is available as `%s` and the table library as `%s`. Do not import anything else.", c.PlotAlias, c.TableAlias),
		fmt.Sprintf("Assign the final chart to a variable named `%s`.", c.OutputVar),
		"Only use columns that exist in the schema above.",
		"Aggregate with grouping operations before plotting when the request implies totals or averages.",
		"Handle missing values by dropping them where they would break the chart.",
	}
	for _, rule := range rules {
		b.WriteString("- " + rule + "\n")
	}
	if c.Vocabulary != "" {
		b.WriteString("\n")
		section(&b, "Language reference", c.Vocabulary)
	}

	return Prompt{
		System: strings.TrimRight(b.String(), "\n"),
		User:   strings.TrimSpace(r.Text),
	}
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "%s:\n```\n%s\n```\n\n", title, strings.TrimRight(body, "\n"))
}
