package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/viewgrid/viewgrid/pkg/delta"
)

// watchCommand creates the watch command: an interactive tail of a view's
// live delta stream.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		url  string
		rows int
	)

	cmd := &cobra.Command{
		Use:   "watch [view-id]",
		Short: "Tail a view's live delta stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			viewID := args[0]

			streamURL := fmt.Sprintf("%s/views/%s/stream", strings.TrimSuffix(url, "/"), viewID)
			sub, err := delta.SubscribeWithRetry(cmd.Context(), logger, streamURL, viewID)
			if err != nil {
				return err
			}
			defer sub.Close()

			model := newWatchModel(viewID, rows, sub.C)
			_, err = tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080", "server websocket base URL")
	cmd.Flags().IntVar(&rows, "rows", 20, "number of deltas to keep on screen")

	return cmd
}

// =============================================================================
// Bubbletea model
// =============================================================================

// deltaMsg delivers one streamed delta into the bubbletea loop.
type deltaMsg delta.Delta

// streamClosedMsg signals that the feed ended.
type streamClosedMsg struct{}

// watchModel renders the most recent deltas of a view, newest last.
type watchModel struct {
	viewID string
	feed   <-chan delta.Delta
	deltas []delta.Delta
	rows   int
	closed bool
}

func newWatchModel(viewID string, rows int, feed <-chan delta.Delta) watchModel {
	if rows < 1 {
		rows = 20
	}
	return watchModel{viewID: viewID, feed: feed, rows: rows}
}

// waitForDelta blocks on the feed and converts the next delta to a message.
func waitForDelta(feed <-chan delta.Delta) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-feed
		if !ok {
			return streamClosedMsg{}
		}
		return deltaMsg(d)
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForDelta(m.feed)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case deltaMsg:
		m.deltas = append(m.deltas, delta.Delta(msg))
		if len(m.deltas) > m.rows {
			m.deltas = m.deltas[len(m.deltas)-m.rows:]
		}
		return m, waitForDelta(m.feed)
	case streamClosedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Deltas · %s", m.viewID)))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n\n")

	if len(m.deltas) == 0 && !m.closed {
		b.WriteString(StyleDim.Render("  waiting for deltas..."))
		b.WriteString("\n")
	}

	for _, d := range m.deltas {
		b.WriteString(fmt.Sprintf("  %s %s %s %s\n",
			StyleNumber.Render(fmt.Sprintf("v%-5d", d.Version)),
			opStyle(d.Op).Render(fmt.Sprintf("%-6s", string(d.Op))),
			StyleDim.Render(fmt.Sprintf("%-4s", string(d.Target))),
			StyleValue.Render(d.GUID),
		))
	}

	if m.closed {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render("  stream closed"))
		b.WriteString("\n")
	}
	return b.String()
}

func opStyle(op delta.Op) lipgloss.Style {
	switch op {
	case delta.OpAdd:
		return StyleSuccess
	case delta.OpRemove:
		return styleIconError
	default:
		return StyleHighlight
	}
}
