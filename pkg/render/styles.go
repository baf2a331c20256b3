package render

import "github.com/charmbracelet/lipgloss"

// Theme is the terminal color scheme.
type Theme struct {
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color
	Primary       lipgloss.Color
	Secondary     lipgloss.Color
	Success       lipgloss.Color
	Warning       lipgloss.Color
	Error         lipgloss.Color
	Border        lipgloss.Color
}

// TokyoNight is the default theme.
var TokyoNight = Theme{
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),
	Primary:       lipgloss.Color("#7aa2f7"),
	Secondary:     lipgloss.Color("#bb9af7"),
	Success:       lipgloss.Color("#9ece6a"),
	Warning:       lipgloss.Color("#e0af68"),
	Error:         lipgloss.Color("#f7768e"),
	Border:        lipgloss.Color("#3b4261"),
}

// Styles are the pre-computed styles of the renderer.
type Styles struct {
	Title     lipgloss.Style
	Heading   lipgloss.Style
	Subgroup  lipgloss.Style
	Task      lipgloss.Style
	Done      lipgloss.Style
	Meta      lipgloss.Style
	Priority  lipgloss.Style
	Empty     lipgloss.Style
	StatValue lipgloss.Style
	StatLabel lipgloss.Style
	BarFill   lipgloss.Style
	BarEmpty  lipgloss.Style
	Warning   lipgloss.Style
	Box       lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, t Theme) Styles {
	return Styles{
		Title:     r.NewStyle().Bold(true).Foreground(t.Primary),
		Heading:   r.NewStyle().Bold(true).Foreground(t.Secondary),
		Subgroup:  r.NewStyle().Italic(true).Foreground(t.ForegroundDim).PaddingLeft(2),
		Task:      r.NewStyle().Foreground(t.Foreground),
		Done:      r.NewStyle().Foreground(t.ForegroundDim).Strikethrough(true),
		Meta:      r.NewStyle().Foreground(t.ForegroundDim),
		Priority:  r.NewStyle().Foreground(t.Warning),
		Empty:     r.NewStyle().Foreground(t.ForegroundDim).Italic(true),
		StatValue: r.NewStyle().Bold(true).Foreground(t.Primary),
		StatLabel: r.NewStyle().Foreground(t.ForegroundDim),
		BarFill:   r.NewStyle().Foreground(t.Success),
		BarEmpty:  r.NewStyle().Foreground(t.Border),
		Warning:   r.NewStyle().Foreground(t.Error),
		Box:       r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1),
	}
}
