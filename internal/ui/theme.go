package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/hordedream/internal/state"
)

// Theme defines colors for the progress view.
type Theme struct {
	Name string

	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	PhaseColors map[state.Phase]string
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	Title       lipgloss.Style
	Footer      lipgloss.Style

	phaseColors map[state.Phase]string
	muted       string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Italic(true),

		phaseColors: t.PhaseColors,
		muted:       t.Muted,
	}
}

// PhaseStyle returns a badge style for the given phase.
func (s Styles) PhaseStyle(p state.Phase) lipgloss.Style {
	color := s.phaseColors[p]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Bold(true)
}

var themes = map[string]Theme{
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
	"Slate":    slateTheme(),
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return nightfoxTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func nightfoxTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name:    "Nightfox",
		Text:    "#cdcecf", // fg1
		Muted:   "#738091", // comment
		Accent:  "#719cd6", // blue
		Success: "#81b29a", // green
		Warning: "#dbc074", // yellow
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan
		PhaseColors: map[state.Phase]string{
			state.PhaseSubmitting: "#738091",
			state.PhasePolling:    "#719cd6",
			state.PhaseCancelling: "#f4a261",
			state.PhaseRetrieving: "#9d79d6",
			state.PhaseFinished:   "#81b29a",
		},
	}
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name:    "Kanagawa",
		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#E6C384", // carpYellow
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue
		PhaseColors: map[state.Phase]string{
			state.PhaseSubmitting: "#727169",
			state.PhasePolling:    "#7E9CD8",
			state.PhaseCancelling: "#E6C384",
			state.PhaseRetrieving: "#957FB8",
			state.PhaseFinished:   "#98BB6C",
		},
	}
}

func slateTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name:    "Slate",
		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500
		PhaseColors: map[state.Phase]string{
			state.PhaseSubmitting: "#64748b",
			state.PhasePolling:    "#0ea5e9",
			state.PhaseCancelling: "#f59e0b",
			state.PhaseRetrieving: "#06b6d4",
			state.PhaseFinished:   "#16a34a",
		},
	}
}
