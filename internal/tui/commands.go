package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// refreshCmd загружает каталог через координатор.
func (m *model) refreshCmd() tea.Cmd {
	ctx, ops := m.ctx, m.ops
	return func() tea.Msg {
		return refreshDoneMsg{out: ops.Refresh(ctx)}
	}
}

// createCmd создает резервную копию с описанием.
func (m *model) createCmd(description string) tea.Cmd {
	ctx, ops := m.ctx, m.ops
	return func() tea.Msg {
		return createDoneMsg{out: ops.Create(ctx, description)}
	}
}

// confirmRestoreCmd выполняет подтвержденное восстановление.
func (m *model) confirmRestoreCmd() tea.Cmd {
	ctx, gate := m.ctx, m.gate
	return func() tea.Msg {
		return restoreDoneMsg{out: gate.ConfirmRestore(ctx)}
	}
}

// confirmDeleteCmd выполняет подтвержденное удаление.
func (m *model) confirmDeleteCmd() tea.Cmd {
	ctx, gate := m.ctx, m.gate
	return func() tea.Msg {
		return deleteDoneMsg{out: gate.ConfirmDelete(ctx)}
	}
}

// clearStatusCmd возвращает команду, которая отправит clearStatusMsg через delay.
func clearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
