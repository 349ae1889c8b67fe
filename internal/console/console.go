package console

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the screen until the user quits or ctx is done.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	m := New(ctx, cfg, deps)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err := p.Run()
	return err
}
