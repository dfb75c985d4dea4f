// Package browser is an interactive terminal viewer for a result log.
package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/taxomap/internal/model"
)

// Browser shows records in a table with a detail pane for the selected one.
type Browser struct {
	Records []model.Record
	Source  string // file the records came from, shown in the title
	Theme   Theme
}

// Run starts the TUI and blocks until the user quits.
func (b *Browser) Run() error {
	m := newModel(b.Records, b.Source, b.Theme)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// browserModel implements tea.Model
type browserModel struct {
	records []model.Record
	visible []int // indices into records that pass the filters
	source  string
	styles  Styles

	table  table.Model
	search textinput.Model

	searching    bool
	unmappedOnly bool

	// dimensions
	width  int
	height int
}

const (
	idWidth     = 5
	statusWidth = 10
	minCategory = 18
	minBlurb    = 20
	detailLines = 9
)

func newModel(records []model.Record, source string, theme Theme) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "search category, tags, blurb..."
	ti.CharLimit = 256
	ti.Width = 40

	st := NewStyles(theme)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Foreground(theme.Primary).BorderForeground(theme.Border).BorderBottom(true).Bold(true)
	ts.Selected = ts.Selected.Foreground(theme.Secondary).Background(theme.BackgroundElem).Bold(true)

	m := &browserModel{
		records: records,
		source:  source,
		styles:  st,
		search:  ti,
		table: table.New(
			table.WithFocused(true),
			table.WithStyles(ts),
		),
		width:  100,
		height: 30,
	}
	m.layout()
	m.applyFilter()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

// columns sizes the table to the terminal width.
func (m *browserModel) columns() []table.Column {
	rest := m.width - idWidth - statusWidth - 8
	category := rest / 3
	if category < minCategory {
		category = minCategory
	}
	blurb := rest - category
	if blurb < minBlurb {
		blurb = minBlurb
	}
	return []table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "Status", Width: statusWidth},
		{Title: "Category", Width: category},
		{Title: "Blurb", Width: blurb},
	}
}

func (m *browserModel) layout() {
	m.table.SetColumns(m.columns())
	h := m.height - detailLines - 4
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
	m.table.SetWidth(m.width)
}

// applyFilter recomputes the visible records and rebuilds the table rows.
func (m *browserModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	m.visible = m.visible[:0]
	for i, r := range m.records {
		if m.unmappedOnly && r.Status != model.StatusUnmapped {
			continue
		}
		if query != "" && !matches(r, query) {
			continue
		}
		m.visible = append(m.visible, i)
	}

	cols := m.columns()
	rows := make([]table.Row, len(m.visible))
	for i, idx := range m.visible {
		r := m.records[idx]
		rows[i] = table.Row{
			fmt.Sprintf("%d", r.ID),
			string(r.Status),
			truncate(r.Category, cols[2].Width),
			truncate(oneLine(r.Blurb), cols[3].Width),
		}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func matches(r model.Record, query string) bool {
	hay := strings.ToLower(strings.Join([]string{r.Category, model.TagsText(r.UserTags), r.Blurb, r.Reasoning}, "\n"))
	return strings.Contains(hay, query)
}

// selected returns the record under the cursor, or nil when nothing is visible.
func (m *browserModel) selected() *model.Record {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.visible) {
		return nil
	}
	return &m.records[m.visible[c]]
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *browserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "u":
		m.unmappedOnly = !m.unmappedOnly
		m.applyFilter()
		return m, nil
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.applyFilter()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *browserModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *browserModel) View() string {
	var b strings.Builder

	mapped := 0
	for _, r := range m.records {
		if r.Status == model.StatusMapped {
			mapped++
		}
	}
	title := m.styles.Title.Render("taxomap")
	if m.source != "" {
		title += m.styles.Dim.Render("  " + m.source)
	}
	counts := fmt.Sprintf("  %d records  %s=%d  %s=%d", len(m.records),
		m.styles.Status(model.StatusMapped), mapped,
		m.styles.Status(model.StatusUnmapped), len(m.records)-mapped)
	b.WriteString(title + counts + "\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.styles.Label.Render("/") + " " + m.search.View() + "\n")
	} else if m.unmappedOnly {
		b.WriteString(m.styles.Unmapped.Render("showing UNMAPPED only") + "\n")
	} else {
		b.WriteString("\n")
	}

	if len(m.visible) == 0 {
		b.WriteString(m.styles.Dim.Render("  no matching records") + "\n")
	} else {
		b.WriteString(m.table.View() + "\n")
	}

	b.WriteString(m.viewDetail())
	b.WriteString("\n" + m.viewHints())
	return b.String()
}

func (m *browserModel) viewDetail() string {
	r := m.selected()
	if r == nil {
		return ""
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	lines := []string{
		m.styles.Label.Render(fmt.Sprintf("#%d", r.ID)) + "  " + m.styles.Status(r.Status) + "  " + m.styles.Text.Render(r.Category),
		m.styles.Dim.Render("tags: ") + model.TagsText(r.UserTags),
	}
	for _, l := range wrapText(oneLine(r.Blurb), width) {
		lines = append(lines, m.styles.Text.Render(l))
	}
	for _, l := range wrapText(r.Reasoning, width) {
		lines = append(lines, m.styles.Dim.Render(l))
	}
	return m.styles.Panel.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *browserModel) viewHints() string {
	hint := func(key, desc string) string {
		return m.styles.HintKey.Render(key) + " " + m.styles.HintDesc.Render(desc)
	}
	filter := "unmapped only"
	if m.unmappedOnly {
		filter = "show all"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		hint("↑/↓", "move"), "  ",
		hint("u", filter), "  ",
		hint("/", "search"), "  ",
		hint("esc", "clear"), "  ",
		hint("q", "quit"),
	)
}

// truncate cuts a string to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText wraps a string into lines of at most maxLen bytes, breaking at spaces.
func wrapText(s string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{s}
	}
	var lines []string
	for len(s) > 0 {
		if len(s) <= maxLen {
			lines = append(lines, s)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(s[:maxLen], " "); idx > 0 {
			cut = idx
		}
		lines = append(lines, s[:cut])
		s = strings.TrimLeft(s[cut:], " ")
	}
	return lines
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
