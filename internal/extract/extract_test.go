package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		want     string
		strategy Strategy
	}{
		{
			name:     "fenced block",
			raw:      "Here you go:\n```latex\n\\documentclass{article}\n\\begin{document}hi\\end{document}\n```\nEnjoy.",
			want:     "\\documentclass{article}\n\\begin{document}hi\\end{document}",
			strategy: StrategyFenced,
		},
		{
			name:     "tex tag and first block wins",
			raw:      "```tex\nfirst\n```\n```latex\nsecond\n```",
			want:     "first",
			strategy: StrategyFenced,
		},
		{
			name:     "text fence is not a latex block",
			raw:      "Notes:\n```text\nchanged typos\n```\n\n```latex\n\\documentclass{article}\n```",
			want:     "\\documentclass{article}",
			strategy: StrategyFenced,
		},
		{
			name:     "texinfo fence is skipped",
			raw:      "```texinfo\n@node Top\n```\n```tex\nbody\n```",
			want:     "body",
			strategy: StrategyFenced,
		},
		{
			name:     "fence wins over document span",
			raw:      "\\begin{document}outside\\end{document}\n```latex\ninside\n```",
			want:     "inside",
			strategy: StrategyFenced,
		},
		{
			name:     "document span keeps preamble",
			raw:      "Sure!\n\\documentclass{article}\n\\begin{document}\nbody\n\\end{document}\nThanks",
			want:     "\\documentclass{article}\n\\begin{document}\nbody\n\\end{document}",
			strategy: StrategyDocument,
		},
		{
			name:     "document span without preamble",
			raw:      "text \\begin{document}body\\end{document} trailing \\end{document}",
			want:     "\\begin{document}body\\end{document}",
			strategy: StrategyDocument,
		},
		{
			name:     "untagged fence is not a latex block",
			raw:      "```\nplain\n```",
			want:     "```\nplain\n```",
			strategy: StrategyRaw,
		},
		{
			name:     "unterminated document falls back to raw",
			raw:      "\\begin{document} never ends",
			want:     "\\begin{document} never ends",
			strategy: StrategyRaw,
		},
		{
			name:     "empty",
			raw:      "",
			want:     "",
			strategy: StrategyRaw,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, strategy := Extract(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.strategy, strategy)
		})
	}
}
