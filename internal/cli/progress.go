package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/honeytrap/internal/client"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

const pollInterval = time.Second

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Hint    lipgloss.Color
	Header  lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Warning: lipgloss.Color("#FFAF00"), // amber
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Header:  lipgloss.Color("#AF87FF"), // violet
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Header).Bold(true)
}

// verdictStyle colors a probe classification.
func verdictStyle(label string) lipgloss.Style {
	switch label {
	case models.ClassGenuine:
		return defaultTheme.completedStyle()
	case models.ClassSuspicious:
		return defaultTheme.warningStyle()
	default:
		return defaultTheme.errorStyle()
	}
}

// tickMsg triggers polling the job list
type tickMsg time.Time

// campaignUpdateMsg carries the decoy's current jobs
type campaignUpdateMsg struct {
	jobs []client.Job
	err  error
}

// campaign is a snapshot of one decoy's scheduled jobs.
type campaign struct {
	scheduled   bool
	postsLeft   int
	friendRuns  int64
	interactRun int64
}

func summarize(username string, jobs []client.Job) campaign {
	var c campaign
	for _, j := range jobs {
		switch {
		case strings.HasPrefix(j.ID, "post:"+username+":"):
			c.postsLeft++
		case j.ID == "friend:"+username:
			c.scheduled = true
			c.friendRuns = j.Runs
		case j.ID == "interact:"+username:
			c.interactRun = j.Runs
		}
	}
	return c
}

// progressModel is the bubbletea model for a decoy's post campaign.
type progressModel struct {
	client     *client.Client
	username   string
	totalPosts int
	current    campaign
	polled     bool
	progress   progress.Model
	theme      Theme
	done       bool
	quitting   bool
	err        error
}

// newProgressModel creates a new progress model.
func newProgressModel(c *client.Client, username string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		client:   c,
		username: username,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchJobs(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJobs()

	case campaignUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch jobs: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.current = summarize(m.username, msg.jobs)
		m.polled = true
		// Campaign jobs register asynchronously, so the total grows on the
		// first polls.
		if m.current.postsLeft > m.totalPosts {
			m.totalPosts = m.current.postsLeft
		}
		// Interval jobs register after the posts, so a scheduled campaign
		// with nothing left to post is finished.
		if m.current.scheduled && m.current.postsLeft == 0 {
			m.done = true
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if !m.polled || m.totalPosts == 0 {
		return "Waiting for campaign to be scheduled...\n"
	}

	posted := m.totalPosts - m.current.postsLeft
	pct := float64(posted) / float64(m.totalPosts)

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.username))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d posts", posted, m.totalPosts)
	activity := fmt.Sprintf("friend rounds: %d  interaction rounds: %d", m.current.friendRuns, m.current.interactRun)

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop watching")

	return fmt.Sprintf("%s %s %s\n%s\n%s\n", status, progressBar, counts, activity, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nCampaign for %s continues in background.\nUse 'honeytrap jobs' to check status.\n",
			m.username)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	output := m.theme.completedStyle().Render("✓ Post campaign finished") + "\n\n"
	output += fmt.Sprintf("  Posts scheduled:     %d\n", m.totalPosts)
	output += fmt.Sprintf("  Friend rounds:       %d\n", m.current.friendRuns)
	output += fmt.Sprintf("  Interaction rounds:  %d\n", m.current.interactRun)
	return output
}

// fetchJobs fetches the job list from the server.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchJobs() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		jobs, err := m.client.ListJobs(ctx)
		return campaignUpdateMsg{jobs: jobs, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunCampaignProgress follows a decoy's post campaign until every scheduled
// post has been published. Returns nil on success or Ctrl+C.
func RunCampaignProgress(c *client.Client, username string) error {
	model := newProgressModel(c, username)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
