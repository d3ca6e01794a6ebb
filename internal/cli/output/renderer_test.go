package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferRenderer(mode Mode) (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewRenderer(&buf, &bytes.Buffer{}, mode), &buf
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want Mode
	}{
		{"auto off a terminal resolves to markdown", ModeAuto, ModeMarkdown},
		{"empty mode behaves like auto", Mode(""), ModeMarkdown},
		{"explicit text", ModeText, ModeText},
		{"explicit json", ModeJSON, ModeJSON},
		{"md alias", Mode("md"), ModeMarkdown},
		{"case insensitive", Mode("JSON"), ModeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newBufferRenderer(tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_IsTTYFalseForBuffers(t *testing.T) {
	r, _ := newBufferRenderer(ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestRenderer_JSON(t *testing.T) {
	r, buf := newBufferRenderer(ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"score": 97}))
	assert.JSONEq(t, `{"score": 97}`, buf.String())
}

func TestRenderer_PlainOutputWithoutTTY(t *testing.T) {
	r, buf := newBufferRenderer(ModeText)

	r.Header(1, "Sources")
	r.Success("all checks passed")
	r.Warning("two rules skipped")
	r.Muted("details follow")

	want := "Sources\n✓ all checks passed\n! two rules skipped\ndetails follow\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderer_StatusLine(t *testing.T) {
	r, buf := newBufferRenderer(ModeText)

	r.StatusLine("leapdq.yaml", "success", "")
	r.StatusLine("store", "failed", "connection refused")
	r.StatusLine("packs", "skipped", "")

	want := "  ✓ leapdq.yaml\n  ✗ store  connection refused\n  - packs\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Checks", FormatHeader(2, "Checks"))
	assert.Equal(t, "# Checks", FormatHeader(0, "Checks"))
	assert.Equal(t, "- **Score**: 97", FormatKeyValue("Score", "97"))
	assert.Equal(t, "```yaml\ndomain: banking\n```", FormatCodeBlock("yaml", "domain: banking"))
}

func TestSpinner_NoTTYWritesOnlyTerminalLine(t *testing.T) {
	r, buf := newBufferRenderer(ModeText)

	sp := r.NewSpinner("validating")
	sp.Start()
	sp.Success("validation finished")

	assert.Equal(t, "✓ validation finished\n", buf.String())
}

func TestSpinner_FailLine(t *testing.T) {
	r, buf := newBufferRenderer(ModeText)

	sp := r.NewSpinner("validating")
	sp.Start()
	sp.Fail("bronze layer failed")

	assert.Equal(t, "✗ bronze layer failed\n", buf.String())
}

func TestStyles_SeverityStyle(t *testing.T) {
	s := NewStyles(true)
	assert.Equal(t, s.Error, s.SeverityStyle("blocking"))
	assert.Equal(t, s.Warning, s.SeverityStyle("warning"))
	assert.Equal(t, s.Muted, s.SeverityStyle("unknown"))
}

func TestStyles_ScoreStyle(t *testing.T) {
	s := NewStyles(true)
	assert.Equal(t, s.Success, s.ScoreStyle(100))
	assert.Equal(t, s.Success, s.ScoreStyle(90))
	assert.Equal(t, s.Warning, s.ScoreStyle(89))
	assert.Equal(t, s.Warning, s.ScoreStyle(70))
	assert.Equal(t, s.Error, s.ScoreStyle(69))
}
