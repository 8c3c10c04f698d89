package tui

import (
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/maynagashev/portfolio-backup/internal/api"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
)

// Update обрабатывает входящие сообщения.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := m.docStyle.GetFrameSize()
		m.backupList.SetSize(msg.Width-h, msg.Height-v-helpStatusHeightOffset)
		return m, nil
	case spinner.TickMsg:
		// Крутим спиннер, только пока есть выполняющиеся операции
		if !m.anyPending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case clearStatusMsg:
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil
	case refreshDoneMsg:
		return m.handleRefreshDone(msg.out)
	case createDoneMsg:
		return m.handleCreateDone(msg.out)
	case restoreDoneMsg:
		return m.handleRestoreDone(msg.out)
	case deleteDoneMsg:
		return m.handleDeleteDone(msg.out)
	case tea.KeyMsg:
		if msg.String() == keyCtrlC {
			return m, tea.Quit
		}
	}

	switch m.state {
	case createBackupScreen:
		return m.updateCreateBackupScreen(msg)
	case backupListScreen:
		return m.updateBackupListScreen(msg)
	default:
		return m, nil
	}
}

// startRefresh запускает загрузку каталога.
func (m *model) startRefresh() tea.Cmd {
	slog.Debug("Запрошено обновление списка резервных копий")
	return tea.Batch(m.refreshCmd(), m.spinner.Tick)
}

// syncList перестраивает элементы списка по текущему снимку каталога.
func (m *model) syncList() tea.Cmd {
	records := m.catalog.Snapshot().Records()
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = backupItem{backup: r}
	}
	return m.backupList.SetItems(items)
}

func (m *model) handleRefreshDone(out coordinator.Outcome) (tea.Model, tea.Cmd) {
	if errors.Is(out.Err, coordinator.ErrClosed) {
		return m, nil
	}
	listCmd := m.syncList()
	if !out.OK() {
		return m, tea.Batch(listCmd, m.setStatusMessage(out.Message, true))
	}
	return m, listCmd
}

func (m *model) handleCreateDone(out coordinator.Outcome) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(out.Err, coordinator.ErrClosed):
		return m, nil
	case errors.Is(out.Err, coordinator.ErrBusy):
		// Первый запрос еще идет, форму не трогаем
		return m, m.setStatusMessage(out.Message, true)
	case !out.OK():
		m.createError = out.Message
		return m, m.setStatusMessage(out.Message, true)
	}

	listCmd := m.syncList()
	m.createError = ""
	m.descriptionInput.Reset()
	if m.state == createBackupScreen {
		m.descriptionInput.Blur()
		m.state = backupListScreen
	}
	return m, tea.Batch(listCmd, m.setStatusMessage(successText(out), false))
}

func (m *model) handleRestoreDone(out coordinator.Outcome) (tea.Model, tea.Cmd) {
	if errors.Is(out.Err, coordinator.ErrClosed) {
		return m, nil
	}
	if !out.OK() {
		if m.prompt == promptRestore {
			m.promptError = out.Message
		}
		return m, m.setStatusMessage(out.Message, true)
	}
	if _, open := m.gate.RestoreTarget(); !open && m.prompt == promptRestore {
		m.prompt = promptNone
		m.promptError = ""
	}
	return m, m.setStatusMessage(successText(out), false)
}

func (m *model) handleDeleteDone(out coordinator.Outcome) (tea.Model, tea.Cmd) {
	if errors.Is(out.Err, coordinator.ErrClosed) {
		return m, nil
	}
	if !out.OK() {
		if m.prompt == promptDelete {
			m.promptError = out.Message
		}
		return m, m.setStatusMessage(out.Message, true)
	}
	listCmd := m.syncList()
	if _, open := m.gate.DeleteTarget(); !open && m.prompt == promptDelete {
		m.prompt = promptNone
		m.promptError = ""
	}
	return m, tea.Batch(listCmd, m.setStatusMessage(successText(out), false))
}

// successText дополняет сообщение об успехе предупреждением, если каталог не обновился.
func successText(out coordinator.Outcome) string {
	if out.RefreshErr == nil {
		return out.Message
	}
	return out.Message + " (list not refreshed: " + api.Message(out.RefreshErr, "Failed to fetch backups") + ")"
}

// anyPending сообщает, выполняется ли хотя бы одна операция.
func (m *model) anyPending() bool {
	for _, op := range []coordinator.Op{
		coordinator.OpRefresh, coordinator.OpCreate, coordinator.OpRestore, coordinator.OpDelete,
	} {
		if m.ops.State(op).IsPending() {
			return true
		}
	}
	return false
}
