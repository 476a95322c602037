package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"asmlens/internal/annotate"
	"asmlens/internal/asmlens/styles"
	"asmlens/internal/ui/colorize"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewRoutines
	viewInfo
)

// routineItem is one label in the annotated listing.
type routineItem struct {
	name string
	line int // 0-based index into the listing
}

func (i routineItem) Title() string       { return i.name }
func (i routineItem) Description() string { return "" }
func (i routineItem) FilterValue() string { return i.name }

// Custom item delegate for the routines list
type routineDelegate struct{}

func (d routineDelegate) Height() int                               { return 1 }
func (d routineDelegate) Spacing() int                              { return 0 }
func (d routineDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d routineDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(routineItem)
	if !ok {
		return
	}

	var indicator string
	var lineStyle lipgloss.Style
	if index == m.Index() {
		indicator = ">"
		lineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	} else {
		indicator = " "
		lineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}

	fmt.Fprintf(w, " %s  %s  %s",
		indicator,
		lineStyle.Render(fmt.Sprintf("%4d", i.line+1)),
		i.name)
}

type model struct {
	viewport viewport.Model
	routines list.Model
	infoView viewport.Model
	mode     viewMode

	target   string
	lines    []string
	mappings []annotate.Mapping
	width    int
	height   int
}

// newModel builds the viewer over an already-annotated listing.
func newModel(target string, lines []string, mappings []annotate.Mapping) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	items := routineItems(lines)
	routines := list.New(items, routineDelegate{}, 80, 24)
	routines.SetShowStatusBar(false)
	routines.SetFilteringEnabled(true)
	routines.Title = fmt.Sprintf("Routines (%d)", len(items))
	routines.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	ivp := viewport.New()
	ivp.SetWidth(80)
	ivp.SetHeight(24)

	m := model{
		viewport: vp,
		routines: routines,
		infoView: ivp,
		mode:     viewListing,
		target:   target,
		lines:    lines,
		mappings: mappings,
		width:    80,
		height:   24,
	}
	m.setListingContent()
	m.setInfoContent()
	return m
}

// routineItems collects the label lines of the listing.
func routineItems(lines []string) []list.Item {
	var items []list.Item
	for i, line := range lines {
		if line == "" || line[0] == '\t' {
			continue
		}
		name, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		items = append(items, routineItem{name: name, line: i})
	}
	return items
}

func (m *model) setListingContent() {
	content := strings.Join(m.lines, "\n")
	if colorize.Enabled() {
		if colored, err := colorize.Listing(content); err == nil {
			content = colored
		}
	}
	m.viewport.SetContent(content)
}

func (m *model) setInfoContent() {
	target := m.target
	if target == "" {
		target = "(translation unit)"
	}
	markdown := fmt.Sprintf(`# asmlens

- **Target**: %s
- **Output lines**: %d
- **Mapped source lines**: %d

Press L for the listing, R for routines, Tab to cycle, Q to quit.
`, target, len(m.lines), len(m.mappings))

	width := m.width
	if width == 0 {
		width = 80
	}
	renderer := styles.GetMarkdownRenderer(width - 2)
	rendered, _ := renderer.Render(markdown)
	m.infoView.SetContent(strings.TrimSuffix(rendered, "\n"))
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.routines.SetWidth(msg.Width)
			m.routines.SetHeight(msg.Height - 2)
			m.infoView.SetWidth(msg.Width)
			m.infoView.SetHeight(msg.Height - 2)
			m.setListingContent()
			m.setInfoContent()
		}

	case tea.KeyMsg:
		if m.mode == viewRoutines && m.routines.FilterState() == list.Filtering {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "l":
			m.mode = viewListing
			return m, nil
		case "r":
			m.mode = viewRoutines
			return m, nil
		case "i":
			m.mode = viewInfo
			return m, nil
		case "enter":
			if m.mode == viewRoutines {
				if item, ok := m.routines.SelectedItem().(routineItem); ok {
					m.mode = viewListing
					m.viewport.SetYOffset(item.line)
				}
			}
			return m, nil
		case "tab":
			switch m.mode {
			case viewListing:
				m.mode = viewRoutines
			case viewRoutines:
				m.mode = viewInfo
			case viewInfo:
				m.mode = viewListing
			}
			return m, nil
		}
	}

	switch m.mode {
	case viewRoutines:
		m.routines, cmd = m.routines.Update(msg)
	case viewInfo:
		m.infoView, cmd = m.infoView.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	var content string
	var menu string
	switch m.mode {
	case viewRoutines:
		content = m.routines.View()
		menu = " Enter: jump to routine • L: listing • I: info • Tab: cycle • Q: quit "
	case viewInfo:
		content = m.infoView.View()
		menu = " L: listing • R: routines • Tab: cycle • Q: quit "
	default:
		content = m.viewport.View()
		menu = " R: routines • I: info • Tab: cycle • Q: quit "
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}
