package tui

import (
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/hostconsole/schema"
)

type palette struct {
	BarBG     lipgloss.Color
	BarFG     lipgloss.Color
	ActiveBG  lipgloss.Color
	ActiveFG  lipgloss.Color
	ErrorFG   lipgloss.Color
	WarnFG    lipgloss.Color
	MetaFG    lipgloss.Color
	EchoFG    lipgloss.Color
	PromptFG  lipgloss.Color
	PanelEdge lipgloss.Color
}

var palettes = map[schema.ThemeName]palette{
	"outrun": {
		BarBG:     "#200838",
		BarFG:     "#f0f1ff",
		ActiveBG:  "#00e5ff",
		ActiveFG:  "#0a0d17",
		ErrorFG:   "#ff6b6b",
		WarnFG:    "#ff5bbd",
		MetaFG:    "#9aa3b2",
		EchoFG:    "#70d6ff",
		PromptFG:  "#ffffff",
		PanelEdge: "#6e88ff",
	},
	"gruvbox": {
		BarBG:     "#3c3836",
		BarFG:     "#ebdbb2",
		ActiveBG:  "#fabd2f",
		ActiveFG:  "#282828",
		ErrorFG:   "#fb4934",
		WarnFG:    "#d3869b",
		MetaFG:    "#928374",
		EchoFG:    "#fabd2f",
		PromptFG:  "#ffffff",
		PanelEdge: "#83a598",
	},
	"tokyo-midnight": {
		BarBG:     "#1a1b26",
		BarFG:     "#c0caf5",
		ActiveBG:  "#7aa2f7",
		ActiveFG:  "#1a1b26",
		ErrorFG:   "#f7768e",
		WarnFG:    "#bb9af7",
		MetaFG:    "#7f85a3",
		EchoFG:    "#9ece6a",
		PromptFG:  "#ffffff",
		PanelEdge: "#7dcfff",
	},
}

// theme holds the rendered styles for one palette.
type theme struct {
	Name   schema.ThemeName
	Bar    lipgloss.Style
	Status map[schema.Status]lipgloss.Style
	Meta   lipgloss.Style
	Error  lipgloss.Style
	Banner lipgloss.Style
	Echo   lipgloss.Style
	Prompt lipgloss.Style
	Panel  lipgloss.Style
	Title  lipgloss.Style
}

func themeForName(name schema.ThemeName) theme {
	normalized, ok := schema.NormalizeThemeName(string(name))
	if !ok {
		normalized = schema.DefaultTheme
	}
	if normalized == "plain" {
		return plainTheme()
	}
	p := palettes[normalized]
	active := lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(p.ActiveBG).Foreground(p.ActiveFG)
	return theme{
		Name: normalized,
		Bar:  lipgloss.NewStyle().Background(p.BarBG).Foreground(p.BarFG),
		Status: map[schema.Status]lipgloss.Style{
			schema.StatusConnected:    active,
			schema.StatusConnecting:   active.Background(p.MetaFG),
			schema.StatusDisconnected: active.Background(p.BarBG).Foreground(p.MetaFG),
			schema.StatusEnded:        active.Background(p.WarnFG),
			schema.StatusErrored:      active.Background(p.ErrorFG),
		},
		Meta:   lipgloss.NewStyle().Foreground(p.MetaFG),
		Error:  lipgloss.NewStyle().Foreground(p.ErrorFG),
		Banner: lipgloss.NewStyle().Bold(true).Foreground(p.WarnFG),
		Echo:   lipgloss.NewStyle().Foreground(p.EchoFG),
		Prompt: lipgloss.NewStyle().Bold(true).Foreground(p.PromptFG),
		Panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.PanelEdge).Padding(0, 1),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(p.PanelEdge),
	}
}

func plainTheme() theme {
	plain := lipgloss.NewStyle()
	return theme{
		Name: "plain",
		Bar:  plain,
		Status: map[schema.Status]lipgloss.Style{
			schema.StatusConnected:    plain,
			schema.StatusConnecting:   plain,
			schema.StatusDisconnected: plain,
			schema.StatusEnded:        plain,
			schema.StatusErrored:      plain,
		},
		Meta:   plain,
		Error:  plain,
		Banner: plain,
		Echo:   plain,
		Prompt: plain,
		Panel:  plain.Border(lipgloss.NormalBorder()),
		Title:  plain,
	}
}

func (t theme) status(status schema.Status) lipgloss.Style {
	if style, ok := t.Status[status]; ok {
		return style
	}
	return t.Meta
}
