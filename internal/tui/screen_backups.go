package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/maynagashev/portfolio-backup/internal/coordinator"
)

// updateBackupListScreen обрабатывает сообщения для экрана списка копий.
func (m *model) updateBackupListScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)
	if isKey && m.prompt != promptNone {
		return m.updatePrompt(keyMsg)
	}

	// Во время ввода фильтра все клавиши принадлежат списку
	if isKey && m.backupList.FilterState() != list.Filtering {
		switch keyMsg.String() {
		case keyQuit:
			return m, tea.Quit
		case keyRefresh:
			return m, m.startRefresh()
		case keyNew:
			m.state = createBackupScreen
			m.createError = ""
			slog.Info("Переход к созданию резервной копии")
			return m, m.descriptionInput.Focus()
		case keyRestore:
			if id, ok := m.selectedBackupID(); ok {
				m.gate.OpenRestore(id)
				m.prompt = promptRestore
				m.promptError = ""
			}
			return m, nil
		case keyDelete:
			if id, ok := m.selectedBackupID(); ok {
				m.gate.OpenDelete(id)
				m.prompt = promptDelete
				m.promptError = ""
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.backupList, cmd = m.backupList.Update(msg)
	return m, cmd
}

// updatePrompt обрабатывает клавиши в запросе подтверждения.
func (m *model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyEnter, keyYes:
		m.promptError = ""
		if m.prompt == promptRestore {
			return m, tea.Batch(m.confirmRestoreCmd(), m.spinner.Tick)
		}
		return m, tea.Batch(m.confirmDeleteCmd(), m.spinner.Tick)
	case keyEsc, keyBack, keyNew:
		if m.prompt == promptRestore {
			m.gate.CancelRestore()
		} else {
			m.gate.CancelDelete()
		}
		m.prompt = promptNone
		m.promptError = ""
	}
	return m, nil
}

// selectedBackupID возвращает ID выбранной в списке копии.
func (m *model) selectedBackupID() (string, bool) {
	item, ok := m.backupList.SelectedItem().(backupItem)
	if !ok {
		return "", false
	}
	return item.backup.ID, true
}

// viewBackupListScreen отрисовывает экран списка копий.
func (m *model) viewBackupListScreen() string {
	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	if line := m.viewPendingLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if msg, failed := m.ops.State(coordinator.OpRefresh).Err(); failed {
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n")
	}
	if m.prompt != promptNone {
		b.WriteString(m.viewPrompt())
		return b.String()
	}
	if m.catalog.Snapshot().Len() == 0 && !m.ops.State(coordinator.OpRefresh).IsPending() {
		b.WriteString(mutedStyle.Render("Резервных копий пока нет. Нажмите n, чтобы создать."))
		b.WriteString("\n")
	}
	b.WriteString(m.backupList.View())
	return b.String()
}

func (m *model) viewHeader() string {
	snapshot := m.catalog.Snapshot()
	updated := "not loaded yet"
	if fetched := snapshot.FetchedAt(); !fetched.IsZero() {
		updated = "updated " + humanize.RelTime(fetched, m.now(), "ago", "from now")
	}
	return headerStyle.Render("Server: "+m.serverURL) +
		mutedStyle.Render(fmt.Sprintf("  %d backups, %s", snapshot.Len(), updated))
}

// viewPendingLine перечисляет выполняющиеся операции.
func (m *model) viewPendingLine() string {
	labels := []struct {
		op    coordinator.Op
		label string
	}{
		{coordinator.OpRefresh, "Refreshing..."},
		{coordinator.OpCreate, "Creating backup..."},
		{coordinator.OpRestore, "Restoring..."},
		{coordinator.OpDelete, "Deleting..."},
	}
	var active []string
	for _, l := range labels {
		if m.ops.State(l.op).IsPending() {
			active = append(active, l.label)
		}
	}
	if len(active) == 0 {
		return ""
	}
	return m.spinner.View() + " " + strings.Join(active, " ")
}

// viewPrompt отрисовывает запрос подтверждения restore/delete.
func (m *model) viewPrompt() string {
	var (
		id, question string
		open         bool
		op           coordinator.Op
	)
	if m.prompt == promptRestore {
		id, open = m.gate.RestoreTarget()
		op = coordinator.OpRestore
		question = "Restore from backup %s? Current data will be overwritten."
	} else {
		id, open = m.gate.DeleteTarget()
		op = coordinator.OpDelete
		question = "Delete backup %s? This cannot be undone."
	}
	if !open {
		return ""
	}

	name := id
	if backup, ok := m.catalog.Snapshot().Get(id); ok && backup.Filename != "" {
		name = fmt.Sprintf("%s (%s)", backup.Filename, id)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf(question, name))
	b.WriteString("\n\n")
	if m.ops.State(op).IsPending() {
		b.WriteString(m.spinner.View() + " в процессе...\n")
	}
	if m.promptError != "" {
		b.WriteString(errorStyle.Render(m.promptError))
		b.WriteString("\n")
	}
	b.WriteString("[y/Enter] подтвердить  [Esc/b/n] отмена")
	return promptStyle.Render(b.String())
}
