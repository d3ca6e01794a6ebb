// Package output renders CLI results in text, markdown, or JSON.
//
// Commands pick the concrete rendering through EffectiveMode: an explicit
// mode is honored as-is, while ModeAuto resolves to styled text on a TTY
// and to markdown when output is piped. Color is dropped when stdout is
// not a terminal or when NO_COLOR is set.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects the output rendering.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	tty    bool
	styles *Styles
}

// NewRenderer creates a renderer for the given writers and mode.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	tty := isTerminal(out)
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		tty:    tty,
		styles: NewStyles(tty && !termenv.EnvNoColor()),
	}
}

// NewRendererWithTTY creates a renderer with the TTY state forced,
// bypassing detection. Tests use it to pin EffectiveMode; color stays
// off so assertions see plain output.
func NewRendererWithTTY(out, errOut io.Writer, tty bool, mode Mode) *Renderer {
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		tty:    tty,
		styles: NewStyles(false),
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the environment: text for a
// terminal, markdown for pipes and files. Explicit modes pass through.
func (r *Renderer) EffectiveMode() Mode {
	switch strings.ToLower(string(r.mode)) {
	case "json":
		return ModeJSON
	case "markdown", "md":
		return ModeMarkdown
	case "text":
		return ModeText
	}
	if r.tty {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to an interactive terminal.
func (r *Renderer) IsTTY() bool {
	return r.tty
}

// Styles returns the style set for the current color capability.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Writer returns the primary output writer.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line to the primary output.
func (r *Renderer) Println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// Printf writes formatted output to the primary output.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// JSON writes v as indented JSON to the primary output.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Header writes a styled section header. Level 1 is the page title,
// anything deeper renders as a subsection.
func (r *Renderer) Header(level int, text string) {
	style := r.styles.Header1
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println(style.Render(text))
}

// Muted writes a de-emphasized line.
func (r *Renderer) Muted(s string) {
	r.Println(r.styles.Muted.Render(s))
}

// Success writes a line prefixed with the success icon.
func (r *Renderer) Success(s string) {
	r.Println(r.styles.StatusSuccess.String() + " " + s)
}

// Failure writes a line prefixed with the failure icon.
func (r *Renderer) Failure(s string) {
	r.Println(r.styles.StatusFailed.String() + " " + s)
}

// Warning writes a line prefixed with the warning icon.
func (r *Renderer) Warning(s string) {
	r.Println(r.styles.StatusWarning.String() + " " + r.styles.Warning.Render(s))
}

// StatusLine writes an indented item with a status icon and an optional
// muted detail, as used by scaffolding and health check listings.
func (r *Renderer) StatusLine(name, status, detail string) {
	icon := r.styles.StatusSuccess.String()
	switch status {
	case "failed", "error":
		icon = r.styles.StatusFailed.String()
	case "warning", "warn":
		icon = r.styles.StatusWarning.String()
	case "skipped":
		icon = r.styles.StatusSkipped.String()
	}
	if detail != "" {
		r.Printf("  %s %s  %s\n", icon, name, r.styles.Muted.Render(detail))
		return
	}
	r.Printf("  %s %s\n", icon, name)
}
