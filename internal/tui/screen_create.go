package tui

import (
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/maynagashev/portfolio-backup/internal/coordinator"
)

// updateCreateBackupScreen обрабатывает ввод описания новой копии.
func (m *model) updateCreateBackupScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyEnter:
			m.createError = ""
			slog.Info("Запрошено создание резервной копии")
			// Повторный Enter во время создания отклонит координатор
			return m, tea.Batch(m.createCmd(m.descriptionInput.Value()), m.spinner.Tick)
		case keyEsc:
			// Запрос, если он идет, продолжится, результат придет в список
			m.descriptionInput.Blur()
			m.state = backupListScreen
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.descriptionInput, cmd = m.descriptionInput.Update(msg)
	return m, cmd
}

// viewCreateBackupScreen отрисовывает форму создания копии.
func (m *model) viewCreateBackupScreen() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Новая резервная копия"))
	b.WriteString("\n\n")
	b.WriteString(m.descriptionInput.View())
	b.WriteString("\n\n")
	if m.ops.State(coordinator.OpCreate).IsPending() {
		b.WriteString(m.spinner.View() + " Creating backup...\n")
	}
	if m.createError != "" {
		b.WriteString(errorStyle.Render(m.createError))
		b.WriteString("\n")
	}
	return b.String()
}
