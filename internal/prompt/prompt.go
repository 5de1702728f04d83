// Package prompt renders the generation request sent for each input. Build
// is a pure function of its parameters: it performs no I/O and does not
// check that the reference documents are present, which is the caller's job.
package prompt

import (
	"fmt"
	"strings"
	"time"
)

// SystemInstruction is the fixed system message of every generation request.
const SystemInstruction = "You are a professional LaTeX typesetting assistant. " +
	"You turn daily learning-feedback notes into structured LaTeX documents. " +
	"Every document you produce must compile as-is."

// Params are the inputs of one rendered prompt.
type Params struct {
	InputText         string
	StyleText         string
	ExampleText       string
	Date              string
	StyleName         string
	ExampleName       string
	DocumentClass     string
	FontSize          string
	ExtraInstructions []string
}

// Build renders the user prompt for p.
func Build(p Params) string {
	var b strings.Builder

	b.WriteString("Generate a complete LaTeX document from the input below.\n\n")

	section(&b, "Input", p.InputText)
	section(&b, fmt.Sprintf("Style file (%s)", p.StyleName), p.StyleText)
	section(&b, fmt.Sprintf("Example document (%s)", p.ExampleName), p.ExampleText)

	requirements := []string{
		"First clean up the input: fix typos, keep it fluent, and make sure every quotation mark is " +
			"part of a correctly ordered opening/closing pair (never two opening or two closing marks).",
		documentClassLine(p.DocumentClass, p.FontSize),
		"Use the commands and conventions of the style file, and keep the same structure and formatting as the example.",
		fmt.Sprintf("Write the date exactly as %q.", p.Date),
		"Output only raw LaTeX markup, with no explanation before or after it.",
	}
	requirements = append(requirements, p.ExtraInstructions...)

	b.WriteString("Requirements:\n")
	for i, r := range requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\nReturn the full document, including \\documentclass and \\begin{document}...\\end{document}.\n")
	return b.String()
}

// FormatDate renders date with the Go time layout used in documents, for
// example "2006年1月2日" gives "2025年4月1日".
func FormatDate(date time.Time, layout string) string {
	if layout == "" {
		layout = "2006-01-02"
	}
	return date.Format(layout)
}

func documentClassLine(class, fontSize string) string {
	if fontSize == "" {
		return fmt.Sprintf("Produce a complete, compilable document using the %s document class.", class)
	}
	return fmt.Sprintf("Produce a complete, compilable document using the %s document class at %s.", class, fontSize)
}

func section(b *strings.Builder, title, body string) {
	b.WriteString(title)
	b.WriteString(":\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
