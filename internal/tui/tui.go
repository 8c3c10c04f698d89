package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/maynagashev/portfolio-backup/internal/catalog"
	"github.com/maynagashev/portfolio-backup/internal/confirm"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
)

// Deps - зависимости экрана резервных копий.
type Deps struct {
	Catalog     *catalog.Store
	Coordinator *coordinator.Coordinator
	Gate        *confirm.Gate
	ServerURL   string
	DebugMode   bool
}

// Init загружает список сразу после открытия экрана.
func (m *model) Init() tea.Cmd {
	return m.startRefresh()
}

// setStatusMessage устанавливает статусное сообщение и запускает таймер для его очистки.
func (m *model) setStatusMessage(status string, isError bool) tea.Cmd {
	m.statusMessage = status
	m.statusIsError = isError
	return clearStatusCmd(m.statusTimeout)
}

// helpText возвращает подсказку по клавишам для текущего состояния.
func (m *model) helpText() string {
	switch {
	case m.state == createBackupScreen:
		return "(Enter - создать, Esc - назад)"
	case m.prompt != promptNone:
		return "(y/Enter - подтвердить, Esc/b/n - отмена)"
	default:
		return "(r - обновить, n - новая копия, o - восстановить, d - удалить, / - фильтр, q - выход)"
	}
}

func (m *model) getMainContentView() string {
	switch m.state {
	case backupListScreen:
		return m.viewBackupListScreen()
	case createBackupScreen:
		return m.viewCreateBackupScreen()
	default:
		return "Неизвестное состояние!"
	}
}

// getDebugInfoString формирует отладочную информацию.
func (m *model) getDebugInfoString() string {
	var debugInfo strings.Builder
	debugInfo.WriteString(fmt.Sprintf(" [State: %s]\n", m.state.String()))
	debugInfo.WriteString(fmt.Sprintf(" [URL: %s]\n", m.serverURL))
	debugInfo.WriteString(fmt.Sprintf(" [Backups: %d]\n", m.catalog.Snapshot().Len()))
	for _, op := range []coordinator.Op{
		coordinator.OpRefresh, coordinator.OpCreate, coordinator.OpRestore, coordinator.OpDelete,
	} {
		debugInfo.WriteString(fmt.Sprintf(" [%s: %s]\n", op.String(), m.ops.State(op).String()))
	}
	return debugInfo.String()
}

// View отрисовывает пользовательский интерфейс.
func (m *model) View() string {
	var footer strings.Builder
	if m.statusMessage != "" {
		footer.WriteString("\n")
		if m.statusIsError {
			footer.WriteString(errorStyle.Render(m.statusMessage))
		} else {
			footer.WriteString(successStyle.Render(m.statusMessage))
		}
	}
	if m.debugMode {
		footer.WriteString("\n\n---\nОтладка:\n")
		footer.WriteString(m.getDebugInfoString())
	}

	styledContent := m.docStyle.Render(m.getMainContentView())
	return fmt.Sprintf("%s\n%s%s", styledContent, m.helpText(), footer.String())
}

// Start запускает TUI и блокируется до выхода пользователя.
// После выхода координатор закрывается: ответы на еще идущие запросы игнорируются.
func Start(ctx context.Context, deps Deps) error {
	m := initModel(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	slog.Info("Запуск TUI", "server_url", deps.ServerURL)
	_, err := p.Run()
	deps.Coordinator.Close()
	if err != nil {
		slog.Error("Ошибка при запуске TUI", "error", err)
		return fmt.Errorf("ошибка TUI: %w", err)
	}
	slog.Info("TUI завершен")
	return nil
}
