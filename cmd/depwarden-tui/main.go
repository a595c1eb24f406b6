package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Config
const (
	defaultDaemonURL = "http://localhost:8091"
	pollRate         = 2 * time.Second
	maxRuns          = 15
	viewportHeight   = 20
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// Layout styles
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	// Row styles
	runTimeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	runDigestStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	findingPkgStyle = lipgloss.NewStyle().Width(35).Bold(true)

	denyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
)

// API types (mirrored from pkg/api and pkg/store to avoid CGO deps)

type Run struct {
	RunID        string    `json:"run_id"`
	Ts           time.Time `json:"ts"`
	Verdict      string    `json:"verdict"`
	GraphDigest  string    `json:"graph_digest"`
	NodeCount    int       `json:"node_count"`
	FindingCount int       `json:"finding_count"`
}

type runsResponse struct {
	Runs []Run `json:"runs"`
}

type Finding struct {
	Package struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"package"`
	Kind    string `json:"kind"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

type report struct {
	Verdict  string    `json:"verdict"`
	Findings []Finding `json:"findings"`
}

type runDetail struct {
	RunID  string          `json:"run_id"`
	Report json.RawMessage `json:"report"`
}

type tickMsg time.Time

type dataMsg struct {
	runs     []Run
	findings []Finding
	err      error
}

type model struct {
	spinner  spinner.Model
	viewport viewport.Model
	runs     []Run
	findings []Finding
	err      error
	ready    bool
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		spinner:  s,
		viewport: vp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.runs = msg.runs
			m.findings = msg.findings
			m.updateViewportContent()
		}

		if !m.ready {
			m.ready = true
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func verdictLabel(verdict string) string {
	switch verdict {
	case "deny":
		return denyStyle.Render("DENY")
	case "warn":
		return warnStyle.Render("WARN")
	default:
		return passStyle.Render("PASS")
	}
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	for _, f := range m.findings {
		if f.Verdict == "pass" {
			continue
		}
		pkg := f.Package.Name
		if f.Package.Version != "" {
			pkg = fmt.Sprintf("%s@%s", f.Package.Name, f.Package.Version)
		}
		line := fmt.Sprintf("%s %s %s\n",
			verdictLabel(f.Verdict),
			findingPkgStyle.Render(pkg),
			subtleStyle.Render(f.Reason),
		)
		sb.WriteString(line)
	}
	if sb.Len() == 0 {
		sb.WriteString(passStyle.Render("Latest run is clean."))
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top pane: run history
	var runList strings.Builder
	runList.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Recent Runs") + "\n\n")

	if len(m.runs) == 0 {
		runList.WriteString(subtleStyle.Render("No runs recorded."))
	} else {
		for _, r := range m.runs {
			runList.WriteString(fmt.Sprintf("%s %s %s\n",
				runTimeStyle.Render(r.Ts.Format("Jan 02 15:04:05")),
				verdictLabel(r.Verdict),
				runDigestStyle.Render(fmt.Sprintf("%d pkgs, %d findings", r.NodeCount, r.FindingCount)),
			))
		}
	}

	topPane := paneStyle.Render(runList.String())

	// Bottom pane: latest run's findings
	header := headerStyle.Render(fmt.Sprintf("%s Latest Findings", m.spinner.View()))
	bottomPane := m.viewport.View()

	// Status footer
	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Runs", len(m.runs)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func daemonURL() string {
	if url := os.Getenv("DEPWARDEN_API_URL"); url != "" {
		return url
	}
	return defaultDaemonURL
}

func fetchData() tea.Cmd {
	return func() tea.Msg {
		runs, err := getRuns()
		if err != nil {
			return dataMsg{err: err}
		}

		var findings []Finding
		if len(runs) > 0 {
			findings, err = getFindings(runs[0].RunID)
			if err != nil {
				return dataMsg{err: err}
			}
		}

		return dataMsg{
			runs:     runs,
			findings: findings,
		}
	}
}

func getRuns() ([]Run, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/runs?limit=%d", daemonURL(), maxRuns))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runs status %d", resp.StatusCode)
	}

	var body runsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Runs, nil
}

func getFindings(runID string) ([]Finding, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/runs/%s", daemonURL(), runID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("run status %d", resp.StatusCode)
	}

	var detail runDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, err
	}

	var rep report
	if err := json.Unmarshal(detail.Report, &rep); err != nil {
		return nil, err
	}
	return rep.Findings, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
