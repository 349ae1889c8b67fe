package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/workflow"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("63"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	onlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

const rowFormat = "%s%-5s %-22s %-20s %-14s %-8s %5s  %-3s %-3s %-8s"

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(" Candidates ") + "\n")
	b.WriteString(dimStyle.Render(m.statusLine()) + "\n\n")

	switch m.mode {
	case modeJobs:
		b.WriteString(m.renderJobs())
	case modeTranscript, modeFilePath:
		b.WriteString(m.renderTranscript())
	case modeDepartments:
		b.WriteString(m.renderDepartments())
	default:
		b.WriteString(m.renderTable())
	}

	if m.mode == modeSearch || m.query.Search != "" {
		b.WriteString("\n" + m.search.View() + "\n")
	}

	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render(m.help()))

	return b.String()
}

func (m Model) statusLine() string {
	page := 0
	if m.proj.Pages > 0 {
		page = m.proj.Page + 1
	}

	statuses := make([]string, 0, len(recruiting.Statuses()))
	for _, s := range recruiting.Statuses() {
		if m.query.Criteria.StatusIncluded(s) {
			statuses = append(statuses, string(s))
		}
	}
	if len(statuses) == 0 {
		statuses = append(statuses, "none")
	}

	departments := "all"
	if m.query.Criteria.HasDepartmentFilter() {
		departments = strings.Join(m.query.Criteria.IncludedDepartments(), ",")
	}

	line := fmt.Sprintf("page %d/%d · %d candidates · %d per page · sort: %s · status: %s · min score: %.0f · departments: %s",
		page, m.proj.Pages, m.proj.Total, m.proj.Size, m.query.Sort,
		strings.Join(statuses, ","), m.query.Criteria.MinScore, departments,
	)
	if m.loading {
		line += " · loading..."
	}
	return line
}

func (m Model) renderTable() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf(rowFormat, "  ", "ID", "Name", "Role", "Department", "Status", "Score", "On", "Tr", "Questions")) + "\n")

	if len(m.proj.Items) == 0 {
		b.WriteString(dimStyle.Render("  no candidates match") + "\n")
		return b.String()
	}

	for i, c := range m.proj.Items {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		online := "○"
		if c.IsOnline {
			online = onlineStyle.Render("●")
		}

		transcript := "-"
		if c.HasTranscript {
			transcript = "✓"
		}

		line := fmt.Sprintf(rowFormat,
			cursor,
			fmt.Sprint(c.ID),
			truncate(c.Name, 22),
			truncate(c.Role, 20),
			truncate(c.Department, 14),
			string(c.Status),
			formatScore(c.Score),
			online,
			transcript,
			m.workflow.Route(c.ID),
		)

		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

func (m Model) renderJobs() string {
	var b strings.Builder

	s, _ := m.workflow.Current()
	b.WriteString(headerStyle.Render(fmt.Sprintf("Choose a job for %s (%s)", m.candidateName(s.CandidateID), s.Kind)) + "\n\n")

	for i, job := range m.workflow.Jobs() {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.picker {
			cursor = "> "
			style = selectedStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%s%d %s / %s", cursor, job.ID, job.Title, job.Department)) + "\n")
	}

	return b.String()
}

func (m Model) renderDepartments() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Departments") + "\n\n")
	for i, d := range m.departments {
		mark := "[ ]"
		if m.query.Criteria.Departments[d] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, d)
		if i == m.picker {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

func (m Model) renderTranscript() string {
	var b strings.Builder

	s, _ := m.workflow.Current()
	b.WriteString(headerStyle.Render(fmt.Sprintf("Transcript for %s, job %d", m.candidateName(s.CandidateID), s.JobID)) + "\n\n")

	if m.attached != "" {
		b.WriteString(fmt.Sprintf("using file %s (%d characters)\n", m.attached, len([]rune(s.Transcript))))
	} else {
		b.WriteString(m.text.View() + "\n")
	}

	if m.mode == modeFilePath {
		b.WriteString("\n" + m.path.View() + "\n")
	}

	return b.String()
}

func (m Model) help() string {
	switch m.mode {
	case modeSearch:
		return "type to search • enter/esc: done"
	case modeJobs:
		return "↑/↓: choose • enter: select • esc: cancel"
	case modeTranscript:
		if m.attached != "" {
			return "ctrl+s: submit • ctrl+o: other file • ctrl+e: type instead • esc: cancel"
		}
		return "ctrl+s: submit (empty scores without transcript) • ctrl+o: load file • esc: cancel"
	case modeFilePath:
		return "enter: load file (≤ 5 MB, txt/md/json/csv) • esc: back"
	case modeDepartments:
		return "↑/↓: move • space: toggle • esc: back"
	}

	help := "↑/↓: move • ←/→: page • +/-: page size • 1-5: sort name/role/department/status/score • 0: no sort\n" +
		"a/p: active/pending • m: min score • d: departments • c: clear • /: search • r: refresh\n" +
		"g: questions • t: transcript score • q: quit"
	if s, ok := m.workflow.Current(); ok && s.State == workflow.StateFailed {
		help += " • R: retry"
	}
	return help
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *score)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
