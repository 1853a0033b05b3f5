package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/chunkdex/internal/document"
	"github.com/Aman-CERP/chunkdex/internal/engine"
	cdxerrors "github.com/Aman-CERP/chunkdex/internal/errors"
	"github.com/Aman-CERP/chunkdex/internal/rank"
)

// Searcher runs queries for the interactive search view.
// *engine.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, q engine.Query) (*engine.SearchResponse, error)
}

// SearchConfig configures the interactive search view.
type SearchConfig struct {
	Searcher Searcher
	Output   io.Writer
	NoColor  bool

	// Limit is the page size per query; 0 uses a sensible default.
	Limit int

	// Fields preselects the field toggle: ["title"] or ["content"]
	// starts narrowed, anything else starts on all fields.
	Fields []string
}

// searchFieldSets are the field combinations the tab key cycles through.
var searchFieldSets = []struct {
	label  string
	fields []string
}{
	{"title+content", nil},
	{"title", []string{"title"}},
	{"content", []string{"content"}},
}

// RunSearch runs the interactive search view until the user quits.
// Queries run as you type against the lexical (bm25) profile.
func RunSearch(ctx context.Context, cfg SearchConfig) error {
	if cfg.Searcher == nil {
		return fmt.Errorf("interactive search requires a searcher")
	}
	if !IsTTY(cfg.Output) {
		return fmt.Errorf("interactive search requires a TTY")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}

	model := newSearchModel(ctx, cfg)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if f, ok := cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	_, err := tea.NewProgram(model, opts...).Run()
	if err != nil && ctx.Err() != nil {
		// Shutdown signal, not a rendering failure
		return nil
	}
	return err
}

// Message types for the search view
type searchDoneMsg struct {
	seq  int
	resp *engine.SearchResponse
}

type searchFailedMsg struct {
	seq int
	err error
}

// searchModel is the bubbletea model for interactive search.
type searchModel struct {
	ctx      context.Context
	searcher Searcher
	limit    int

	input   textinput.Model
	spin    spinner.Model
	detail  viewport.Model
	styles  Styles
	width   int
	height  int
	noColor bool

	fieldsIdx  int
	seq        int // Query sequence, to discard stale responses
	searching  bool
	resp       *engine.SearchResponse
	selected   int
	showDetail bool
	errText    string
	quitting   bool
}

// newSearchModel creates the interactive search model.
func newSearchModel(ctx context.Context, cfg SearchConfig) *searchModel {
	styles := GetStyles(cfg.NoColor || DetectNoColor())

	ti := textinput.New()
	ti.Placeholder = "type to search"
	ti.Prompt = "> "
	ti.PromptStyle = styles.Active
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Active

	vp := viewport.New(76, 16)

	return &searchModel{
		ctx:       ctx,
		searcher:  cfg.Searcher,
		limit:     cfg.Limit,
		input:     ti,
		spin:      sp,
		detail:    vp,
		styles:    styles,
		width:     80,
		height:    24,
		noColor:   cfg.NoColor,
		fieldsIdx: initialFieldSet(cfg.Fields),
	}
}

// initialFieldSet maps a requested field list onto the toggle presets.
func initialFieldSet(fields []string) int {
	if len(fields) != 1 {
		return 0
	}
	for i, set := range searchFieldSets {
		if len(set.fields) == 1 && set.fields[0] == fields[0] {
			return i
		}
	}
	return 0
}

// Init implements tea.Model.
func (m *searchModel) Init() tea.Cmd {
	return textinput.Blink
}

// searchCmd issues the current query. The sequence number lets Update
// drop responses that a newer keystroke has already superseded.
func (m *searchModel) searchCmd() tea.Cmd {
	m.seq++
	m.searching = true

	seq := m.seq
	ctx := m.ctx
	searcher := m.searcher
	q := engine.Query{
		Profile: "bm25",
		Text:    m.input.Value(),
		Fields:  searchFieldSets[m.fieldsIdx].fields,
		Limit:   m.limit,
	}

	return tea.Batch(m.spin.Tick, func() tea.Msg {
		resp, err := searcher.Search(ctx, q)
		if err != nil {
			return searchFailedMsg{seq: seq, err: err}
		}
		return searchDoneMsg{seq: seq, resp: resp}
	})
}

// clearResults drops the current response and selection.
func (m *searchModel) clearResults() {
	m.resp = nil
	m.selected = 0
	m.errText = ""
	m.searching = false
}

func (m *searchModel) resultCount() int {
	if m.resp == nil {
		return 0
	}
	return len(m.resp.Results)
}

// Update implements tea.Model.
func (m *searchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6
		m.detail.Width = msg.Width - 4
		m.detail.Height = msg.Height - 8
		if m.detail.Height < 4 {
			m.detail.Height = 4
		}
		return m, nil

	case searchDoneMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.searching = false
		m.errText = ""
		m.resp = msg.resp
		m.selected = 0
		return m, nil

	case searchFailedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.searching = false
		m.resp = nil
		m.selected = 0
		m.errText = queryErrText(msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// updateKeys routes key presses.
func (m *searchModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEsc:
		if m.showDetail {
			m.showDetail = false
			return m, nil
		}
		if m.input.Value() != "" {
			m.input.SetValue("")
			m.clearResults()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEnter:
		if m.showDetail {
			m.showDetail = false
			return m, nil
		}
		if m.resultCount() > 0 {
			m.openDetail()
		}
		return m, nil

	case tea.KeyTab:
		m.fieldsIdx = (m.fieldsIdx + 1) % len(searchFieldSets)
		if strings.TrimSpace(m.input.Value()) != "" {
			return m, m.searchCmd()
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		if m.showDetail {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
		if n := m.resultCount(); n > 0 {
			if msg.Type == tea.KeyUp && m.selected > 0 {
				m.selected--
			}
			if msg.Type == tea.KeyDown && m.selected < n-1 {
				m.selected++
			}
		}
		return m, nil
	}

	if m.showDetail {
		// Remaining keys scroll the document view
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	// Everything else edits the query
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	if after := m.input.Value(); after != before {
		if strings.TrimSpace(after) == "" {
			m.clearResults()
			return m, cmd
		}
		return m, tea.Batch(cmd, m.searchCmd())
	}

	return m, cmd
}

// openDetail fills the viewport with the selected document.
func (m *searchModel) openDetail() {
	r := m.resp.Results[m.selected]
	m.detail.SetContent(m.detailContent(r))
	m.detail.GotoTop()
	m.showDetail = true
}

// detailContent renders one result's summary for the document view.
func (m *searchModel) detailContent(r engine.Result) string {
	width := m.detail.Width
	if width < 20 {
		width = 20
	}

	var lines []string
	if r.Summary.Title != "" {
		lines = append(lines, m.styles.Header.Render(r.Summary.Title))
	}

	var meta []string
	if r.Summary.URL != "" {
		meta = append(meta, r.Summary.URL)
	}
	if r.Summary.Domain != "" {
		meta = append(meta, r.Summary.Domain)
	}
	if r.Summary.DocDate != "" {
		meta = append(meta, r.Summary.DocDate)
	}
	if len(meta) > 0 {
		lines = append(lines, m.styles.Dim.Render(strings.Join(meta, "   ")))
	}

	if terms := matchedTermsInline(r.Features); terms != "" {
		lines = append(lines, m.styles.Label.Render("matched: "+terms))
	}

	if len(lines) > 0 {
		lines = append(lines, "")
	}

	content := r.Summary.Content
	if content == "" {
		content = m.styles.Dim.Render("(no content)")
	}
	lines = append(lines, lipgloss.NewStyle().Width(width).Render(content))

	return strings.Join(lines, "\n")
}

// View implements tea.Model.
func (m *searchModel) View() string {
	if m.quitting {
		return ""
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderHeader(contentWidth))
	sections = append(sections, m.input.View())
	sections = append(sections, m.styles.Border.Render(strings.Repeat("─", contentWidth)))

	if m.showDetail {
		sections = append(sections, m.renderDetail())
	} else {
		sections = append(sections, m.renderResults(contentWidth))
	}

	sections = append(sections, m.styles.Border.Render(strings.Repeat("─", contentWidth)))
	sections = append(sections, m.renderStatus())

	return strings.Join(sections, "\n")
}

// renderHeader renders the title row with the active field set.
func (m *searchModel) renderHeader(width int) string {
	title := m.styles.Header.Render("chunkdex search")
	fields := m.styles.Label.Render("fields: " + searchFieldSets[m.fieldsIdx].label)

	gap := width - lipgloss.Width(title) - lipgloss.Width(fields)
	if gap < 2 {
		gap = 2
	}
	return title + strings.Repeat(" ", gap) + fields
}

// renderResults renders the selectable result list.
func (m *searchModel) renderResults(width int) string {
	if m.resp == nil || len(m.resp.Results) == 0 {
		if m.errText != "" || m.searching {
			return ""
		}
		if strings.TrimSpace(m.input.Value()) == "" {
			return m.styles.Dim.Render("Type to search the index.")
		}
		return m.styles.Dim.Render("No results.")
	}

	// Two rows per result; keep the selection in the visible window
	maxRows := (m.height - 7) / 2
	if maxRows < 1 {
		maxRows = 1
	}
	start := 0
	if m.selected >= maxRows {
		start = m.selected - maxRows + 1
	}
	end := start + maxRows
	if end > len(m.resp.Results) {
		end = len(m.resp.Results)
	}

	var rows []string
	for i := start; i < end; i++ {
		rows = append(rows, m.renderResultRow(i, width))
	}
	return strings.Join(rows, "\n")
}

// renderResultRow renders one result as a cursor line plus a detail line.
func (m *searchModel) renderResultRow(i, width int) string {
	r := m.resp.Results[i]

	cursor := "  "
	idStyle := m.styles.Stage
	if i == m.selected {
		cursor = m.styles.Active.Render("▸ ")
		idStyle = m.styles.Active
	}

	head := fmt.Sprintf("%s%s %s %s",
		cursor,
		m.styles.Dim.Render(fmt.Sprintf("%2d.", i+1)),
		idStyle.Render(r.DocID),
		m.styles.Label.Render(fmt.Sprintf("%.4f", r.Score)),
	)

	detail := r.Summary.Title
	if detail == "" {
		detail = firstLine(r.Summary.Content)
	}
	detail = truncate(detail, width-10)
	if terms := matchedTermsInline(r.Features); terms != "" {
		detail = truncate(detail, width/2) + m.styles.Dim.Render("  "+terms)
	}

	return head + "\n      " + m.styles.Speed.Render(detail)
}

// renderDetail renders the document viewport with its header line.
func (m *searchModel) renderDetail() string {
	r := m.resp.Results[m.selected]
	head := fmt.Sprintf("%s %s",
		m.styles.Active.Render(r.DocID),
		m.styles.Label.Render(fmt.Sprintf("score %.4f", r.Score)),
	)
	return head + "\n" + m.detail.View()
}

// renderStatus renders the bottom status line.
func (m *searchModel) renderStatus() string {
	var left string
	switch {
	case m.searching:
		left = m.spin.View() + m.styles.Dim.Render("searching…")
	case m.errText != "":
		left = m.styles.Warning.Render(m.errText)
	case m.resp != nil:
		left = m.styles.Label.Render(fmt.Sprintf("%d of %d results (%s, %s)",
			len(m.resp.Results), m.resp.Total, m.resp.Profile,
			m.resp.Elapsed.Round(time.Millisecond)))
	}

	hints := "enter view • tab fields • esc quit"
	if m.showDetail {
		hints = "↑/↓ scroll • esc back"
	}

	if left == "" {
		return m.styles.Dim.Render(hints)
	}
	return left + m.styles.Dim.Render("  •  "+hints)
}

// matchedTermsInline renders per-field matched terms in field order,
// e.g. `title [cat]  content [cat sat]`.
func matchedTermsInline(f *rank.MatchFeatures) string {
	if f == nil || len(f.MatchedTerms) == 0 {
		return ""
	}

	var parts []string
	for _, field := range document.TextFields() {
		terms, ok := f.MatchedTerms[field]
		if !ok || len(terms) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s [%s]", field, strings.Join(terms, " ")))
	}
	return strings.Join(parts, "  ")
}

// queryErrText extracts a display message from a search error.
func queryErrText(err error) string {
	var cdxErr *cdxerrors.ChunkdexError
	if errors.As(err, &cdxErr) {
		return cdxErr.Message
	}
	return err.Error()
}
