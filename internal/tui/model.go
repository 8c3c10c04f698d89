package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/maynagashev/portfolio-backup/internal/catalog"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
	"github.com/maynagashev/portfolio-backup/models"
)

// Состояния (экраны) приложения.
type screenState int

const (
	backupListScreen   screenState = iota // Экран списка резервных копий
	createBackupScreen                    // Экран создания копии
)

func (s screenState) String() string {
	switch s {
	case backupListScreen:
		return "backupListScreen"
	case createBackupScreen:
		return "createBackupScreen"
	default:
		return fmt.Sprintf("screenState(%d)", int(s))
	}
}

// promptKind - какой запрос подтверждения сейчас показан поверх списка.
type promptKind int

const (
	promptNone promptKind = iota
	promptRestore
	promptDelete
)

// Константы для TUI.
const (
	defaultListWidth  = 80 // Стандартная ширина терминала для списка
	defaultListHeight = 24 // Стандартная высота терминала для списка
	descriptionWidth  = 60
	descriptionLimit  = 200

	keyEnter   = "enter"
	keyQuit    = "q"
	keyCtrlC   = "ctrl+c"
	keyBack    = "b"
	keyEsc     = "esc"
	keyRefresh = "r"
	keyNew     = "n"
	keyRestore = "o"
	keyDelete  = "d"
	keyYes     = "y"
)

// Стили для статусной строки и подтверждений.
//
//nolint:gochecknoglobals // Стили lipgloss неизменяемы
var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	promptStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// backupItem представляет резервную копию в списке.
// Реализует интерфейс list.Item.
type backupItem struct {
	backup models.Backup
}

func (i backupItem) Title() string {
	if i.backup.Filename != "" {
		return i.backup.Filename
	}
	return i.backup.ID
}

func (i backupItem) Description() string {
	parts := []string{
		"ID: " + i.backup.ID,
		humanize.Comma(int64(i.backup.FilesCount)) + " files",
		fmt.Sprintf("%.2f MB", i.backup.SizeMB),
	}
	if created, ok := i.backup.CreatedAt(); ok {
		parts = append(parts, humanize.Time(created))
	} else if i.backup.Timestamp != "" {
		parts = append(parts, i.backup.Timestamp)
	}
	if d := i.backup.DescriptionText(); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " | ")
}

func (i backupItem) FilterValue() string {
	return i.Title() + " " + i.backup.DescriptionText()
}

// Сообщения о завершении операций координатора.
type (
	refreshDoneMsg struct{ out coordinator.Outcome }
	createDoneMsg  struct{ out coordinator.Outcome }
	restoreDoneMsg struct{ out coordinator.Outcome }
	deleteDoneMsg  struct{ out coordinator.Outcome }
	clearStatusMsg struct{}
)

// catalogView - источник текущего снимка каталога. catalog.Store ему удовлетворяет.
type catalogView interface {
	Snapshot() *catalog.Catalog
}

// operations - операции, которые экран запускает через координатор.
type operations interface {
	Refresh(ctx context.Context) coordinator.Outcome
	Create(ctx context.Context, description string) coordinator.Outcome
	State(op coordinator.Op) coordinator.State
	Close()
}

// confirmations - запросы подтверждения restore/delete. confirm.Gate ему удовлетворяет.
type confirmations interface {
	OpenRestore(id string)
	OpenDelete(id string)
	CancelRestore()
	CancelDelete()
	RestoreTarget() (string, bool)
	DeleteTarget() (string, bool)
	ConfirmRestore(ctx context.Context) coordinator.Outcome
	ConfirmDelete(ctx context.Context) coordinator.Outcome
}

// model - модель экрана резервных копий.
type model struct {
	ctx       context.Context //nolint:containedctx // Контекст жизни программы для команд
	state     screenState
	serverURL string
	debugMode bool

	catalog catalogView
	ops     operations
	gate    confirmations

	backupList       list.Model
	descriptionInput textinput.Model
	spinner          spinner.Model
	docStyle         lipgloss.Style

	prompt      promptKind
	promptError string // Ошибка последней попытки подтвержденной операции
	createError string

	statusMessage string
	statusIsError bool
	statusTimeout time.Duration
	now           func() time.Time
}
