package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

const progressBarWidth = 30

// runWithProgressUI drives the run behind a live terminal UI: one line
// per layer plus a rule progress bar while Silver is working. The
// engine runs in its own goroutine and feeds the UI through a buffered
// channel; progress events are dropped rather than stalling the run
// when the terminal cannot keep up.
func runWithProgressUI(cmd *cobra.Command, cmdCtx *CommandContext, src *core.DataSource, runOpts pipeline.RunOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	events := make(chan pipeline.ProgressEvent, 64)
	result := make(chan runResult, 1)

	runOpts.Progress = func(ev pipeline.ProgressEvent) {
		select {
		case events <- ev:
		default:
		}
	}

	start := time.Now()
	go func() {
		run, err := cmdCtx.Engine.Run(ctx, src.ID, runOpts)
		result <- runResult{run: run, err: err}
	}()

	r := cmdCtx.Renderer
	model := newRunProgressModel(src.Name, r.Styles(), cancel, events, result)
	p := tea.NewProgram(model, tea.WithOutput(r.Writer()))

	final, err := p.Run()
	if err != nil {
		cancel()
		<-result
		return fmt.Errorf("progress display failed: %w", err)
	}

	m := final.(runProgressModel)
	if m.err != nil {
		return m.err
	}
	return renderRunSummary(r, m.run, time.Since(start))
}

type runResult struct {
	run *core.PipelineRun
	err error
}

type (
	runProgressMsg struct{ ev pipeline.ProgressEvent }
	runFinishedMsg struct {
		run *core.PipelineRun
		err error
	}
)

// waitForRunEvent returns a command that delivers the next progress
// event, draining buffered events before accepting the terminal result
// so the final layer transitions still reach the screen.
func waitForRunEvent(events <-chan pipeline.ProgressEvent, result <-chan runResult) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return runProgressMsg{ev: ev}
		default:
		}
		select {
		case ev := <-events:
			return runProgressMsg{ev: ev}
		case res := <-result:
			return runFinishedMsg{run: res.run, err: res.err}
		}
	}
}

type runProgressModel struct {
	source string
	styles *output.Styles
	cancel context.CancelFunc

	spinner spinner.Model
	bar     progress.Model

	layers     map[core.Layer]core.LayerStatus
	ruleKey    string
	rulesDone  int
	rulesTotal int
	start      time.Time
	cancelling bool

	events <-chan pipeline.ProgressEvent
	result <-chan runResult

	run *core.PipelineRun
	err error
}

func newRunProgressModel(source string, styles *output.Styles, cancel context.CancelFunc, events <-chan pipeline.ProgressEvent, result <-chan runResult) runProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Info

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = progressBarWidth

	return runProgressModel{
		source:  source,
		styles:  styles,
		cancel:  cancel,
		spinner: sp,
		bar:     bar,
		layers: map[core.Layer]core.LayerStatus{
			core.LayerBronze: core.LayerPending,
			core.LayerSilver: core.LayerPending,
			core.LayerGold:   core.LayerPending,
		},
		start:  time.Now(),
		events: events,
		result: result,
	}
}

func (m runProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForRunEvent(m.events, m.result))
}

func (m runProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// Cancel the run and keep waiting; the engine records
			// the aborted run before the result arrives.
			m.cancelling = true
			m.cancel()
		}
		return m, nil

	case runProgressMsg:
		ev := msg.ev
		if ev.RuleKey != "" {
			m.ruleKey = ev.RuleKey
			m.rulesDone = ev.RulesDone
			m.rulesTotal = ev.RulesTotal
		} else {
			m.layers[ev.Layer] = ev.Status
		}
		return m, waitForRunEvent(m.events, m.result)

	case runFinishedMsg:
		m.run = msg.run
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m runProgressModel) View() string {
	var b strings.Builder

	title := m.styles.Bold.Render(fmt.Sprintf("Running %s", m.source))
	if m.cancelling {
		title += m.styles.Muted.Render("  (cancelling)")
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	for _, layer := range []core.Layer{core.LayerBronze, core.LayerSilver, core.LayerGold} {
		b.WriteString(m.layerLine(layer))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("elapsed %s", time.Since(m.start).Round(100*time.Millisecond))))
	b.WriteString("\n")
	return b.String()
}

func (m runProgressModel) layerLine(layer core.Layer) string {
	status := m.layers[layer]

	var icon string
	switch status {
	case core.LayerCompleted:
		icon = m.styles.StatusSuccess.String()
	case core.LayerFailed:
		icon = m.styles.StatusFailed.String()
	case core.LayerRunning:
		icon = strings.TrimRight(m.spinner.View(), " ")
	default:
		icon = m.styles.StatusSkipped.String()
	}

	line := fmt.Sprintf("  %s %s", icon, layer)
	if layer == core.LayerSilver {
		line += m.silverDetail(status)
	}
	return line
}

// silverDetail appends the rule progress bar while Silver is running
// and the final counter once it is done.
func (m runProgressModel) silverDetail(status core.LayerStatus) string {
	if m.rulesTotal == 0 {
		return ""
	}

	counter := fmt.Sprintf("%d/%d rules", m.rulesDone, m.rulesTotal)
	if status == core.LayerRunning {
		pct := float64(m.rulesDone) / float64(m.rulesTotal)
		detail := fmt.Sprintf("  %s %s", m.bar.ViewAs(pct), counter)
		if m.ruleKey != "" {
			detail += m.styles.Muted.Render("  " + m.ruleKey)
		}
		return detail
	}
	return m.styles.Muted.Render("  " + counter)
}
