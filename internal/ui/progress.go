package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/hordedream/internal/prefs"
	"github.com/five82/hordedream/internal/state"
)

const (
	defaultTick     = 250 * time.Millisecond
	maxBarWidth     = 60
	defaultBarWidth = 40
)

// Options configures the progress view.
type Options struct {
	Store     *state.Store
	Cancel    context.CancelFunc
	Prompt    string
	ThemeName string
	PrefsPath string
	Output    io.Writer
	Tick      time.Duration
}

// Model is the Bubble Tea model for a running job.
type Model struct {
	store     *state.Store
	cancel    context.CancelFunc
	prompt    string
	prefsPath string
	tick      time.Duration

	theme   Theme
	spinner spinner.Model
	bar     progress.Model

	snapshot   state.Snapshot
	started    time.Time
	cancelling bool
	done       bool
	err        error
}

// DoneMsg tells the view the generation flow has returned.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

type snapshotMsg state.Snapshot

// New creates a progress model.
func New(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	theme := GetTheme(opts.ThemeName)
	styles := theme.Styles()

	bar := progress.New(progress.WithSolidFill(theme.Accent))
	bar.Width = defaultBarWidth

	return Model{
		store:     opts.Store,
		cancel:    opts.Cancel,
		prompt:    opts.Prompt,
		prefsPath: opts.PrefsPath,
		tick:      tick,
		theme:     theme,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.AccentText)),
		bar:       bar,
		started:   time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(m.tick), fetchSnapshotCmd(m.store))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > maxBarWidth {
			width = maxBarWidth
		}
		if width > 0 {
			m.bar.Width = width
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tea.Batch(fetchSnapshotCmd(m.store), tickCmd(m.tick))

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.snapshot = m.store.Snapshot()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if !m.cancelling && !m.done {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case "t":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = m.theme.Styles().AccentText
		if m.prefsPath != "" {
			p := prefs.Load(m.prefsPath)
			p.Theme = m.theme.Name
			_ = prefs.Save(m.prefsPath, p)
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	var b strings.Builder
	b.WriteString(styles.Title.Render("hordedream"))
	if snap.JobID != "" {
		b.WriteString(styles.MutedText.Render(" · job " + snap.JobID))
	}
	b.WriteString("\n")
	if m.prompt != "" {
		b.WriteString(styles.Text.Render(truncate(m.prompt, 72)))
		b.WriteString("\n")
	}

	phase := snap.Phase
	if m.cancelling && !m.done && phase < state.PhaseCancelling {
		phase = state.PhaseCancelling
	}
	if m.done {
		b.WriteString(m.renderResult(styles))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(styles.PhaseStyle(phase).Render(phase.String()))
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("  %s elapsed", time.Since(m.started).Truncate(time.Second))))
	}
	b.WriteString("\n")

	if snap.HasCheck {
		c := snap.Check
		b.WriteString(m.bar.ViewAs(fraction(c.Finished, snap.Requested)))
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(fmt.Sprintf("finished %d/%d · processing %d · waiting %d", c.Finished, snap.Requested, c.Processing, c.Waiting)))
		b.WriteString("\n")
		if !c.Done {
			b.WriteString(styles.MutedText.Render(fmt.Sprintf("queue position %d · wait ~%ds", c.QueuePosition, c.WaitTime)))
			b.WriteString("\n")
		}
		if !c.IsPossible && !c.Done {
			b.WriteString(styles.WarningText.Render("no worker can currently serve this request"))
			b.WriteString("\n")
		}
	}
	if snap.IsOffline() {
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("reconnecting (%d failed checks)", snap.ConsecutiveFailures)))
		b.WriteString("\n")
	}

	if !m.done {
		footer := "ctrl+c cancel · t theme"
		if m.cancelling {
			footer = "cancelling, collecting finished images..."
		}
		b.WriteString(styles.Footer.Render(footer))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderResult(styles Styles) string {
	switch {
	case m.err != nil:
		return styles.DangerText.Render("failed: " + m.err.Error())
	case m.cancelling:
		return styles.WarningText.Render("cancelled")
	default:
		return styles.SuccessText.Render("done")
	}
}

func fraction(finished, requested int) float64 {
	if requested <= 0 {
		return 0
	}
	f := float64(finished) / float64(requested)
	if f > 1 {
		return 1
	}
	return f
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run shows the progress view while work runs on its own goroutine. It
// always waits for work to return; the view's own failure is reported only
// when work succeeded. Signals are left to the caller's context; ctrl+c
// inside the view calls opts.Cancel.
func Run(opts Options, work func() error) error {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	p := tea.NewProgram(New(opts), tea.WithOutput(out), tea.WithoutSignalHandler())

	result := make(chan error, 1)
	go func() {
		err := work()
		result <- err
		p.Send(DoneMsg{Err: err})
	}()

	_, uiErr := p.Run()
	workErr := <-result
	if workErr != nil {
		return workErr
	}
	if uiErr != nil {
		return fmt.Errorf("run progress view: %w", uiErr)
	}
	return nil
}
