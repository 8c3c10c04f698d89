package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

const (
	statusMessageTimeout     = 3 * time.Second // Время отображения статусных сообщений
	docStyleMarginVertical   = 1
	docStyleMarginHorizontal = 2
	helpStatusHeightOffset   = 4 // Заголовок, помощь и статус
)

// initBackupList инициализирует компонент списка резервных копий.
func initBackupList() list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), defaultListWidth, defaultListHeight)
	l.Title = "Резервные копии портфеля"
	l.SetStatusBarItemName("backup", "backups")
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

// initDescriptionInput инициализирует поле описания новой копии.
func initDescriptionInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "Описание (необязательно)"
	ti.CharLimit = descriptionLimit
	ti.Width = descriptionWidth
	return ti
}

func initSpinner() spinner.Model {
	return spinner.New(spinner.WithSpinner(spinner.Dot))
}

func initDocStyle() lipgloss.Style {
	return lipgloss.NewStyle().Margin(docStyleMarginVertical, docStyleMarginHorizontal)
}

// initModel создает начальную модель.
func initModel(ctx context.Context, deps Deps) *model {
	return &model{
		ctx:              ctx,
		state:            backupListScreen,
		serverURL:        deps.ServerURL,
		debugMode:        deps.DebugMode,
		catalog:          deps.Catalog,
		ops:              deps.Coordinator,
		gate:             deps.Gate,
		backupList:       initBackupList(),
		descriptionInput: initDescriptionInput(),
		spinner:          initSpinner(),
		docStyle:         initDocStyle(),
		statusTimeout:    statusMessageTimeout,
		now:              time.Now,
	}
}
