// Package extract pulls the document body out of a raw generator response.
// The response format is not guaranteed, so Extract tries progressively
// looser strategies and never fails.
package extract

import (
	"regexp"
	"strings"
)

// Strategy records which rule produced the extracted body.
type Strategy string

const (
	StrategyFenced   Strategy = "fenced"
	StrategyDocument Strategy = "document"
	StrategyRaw      Strategy = "raw"
)

var (
	fencedBlock = regexp.MustCompile("(?is)```(?:latex|tex)\\b[ \\t]*\\r?\\n?(.*?)```")
	beginDoc    = regexp.MustCompile(`\\begin\{document\}`)
	endDoc      = regexp.MustCompile(`\\end\{document\}`)
	docClass    = regexp.MustCompile(`\\documentclass`)
)

// Extract returns the usable document from raw:
//  1. the inner content of the first latex/tex fenced block;
//  2. otherwise the span through the first \end{document} following a
//     \begin{document}, starting at a preceding \documentclass when there
//     is one so the preamble is kept;
//  3. otherwise raw unchanged.
func Extract(raw string) (string, Strategy) {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), StrategyFenced
	}
	if span, ok := documentSpan(raw); ok {
		return span, StrategyDocument
	}
	return raw, StrategyRaw
}

func documentSpan(raw string) (string, bool) {
	begin := beginDoc.FindStringIndex(raw)
	if begin == nil {
		return "", false
	}
	end := endDoc.FindStringIndex(raw[begin[1]:])
	if end == nil {
		return "", false
	}
	start := begin[0]
	if cls := docClass.FindStringIndex(raw[:begin[0]]); cls != nil {
		start = cls[0]
	}
	return raw[start : begin[1]+end[1]], true
}
