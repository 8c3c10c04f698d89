//nolint:testpackage // Тестируем неэкспортируемую модель
package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/mock"

	"github.com/maynagashev/portfolio-backup/internal/catalog"
	"github.com/maynagashev/portfolio-backup/internal/confirm"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
	"github.com/maynagashev/portfolio-backup/models"
)

// MockAPIClient - мок для API клиента.
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) ListBackups(ctx context.Context) ([]models.Backup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Backup), args.Error(1) //nolint:errcheck // Тип задан в тесте
}

func (m *MockAPIClient) CreateBackup(ctx context.Context, description string) (*models.CreateBackupResponse, error) {
	args := m.Called(ctx, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateBackupResponse), args.Error(1) //nolint:errcheck // Тип задан в тесте
}

func (m *MockAPIClient) RestoreBackup(
	ctx context.Context,
	backupID string,
	overwrite bool,
) (*models.RestoreBackupResponse, error) {
	args := m.Called(ctx, backupID, overwrite)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RestoreBackupResponse), args.Error(1) //nolint:errcheck // Тип задан в тесте
}

func (m *MockAPIClient) DeleteBackup(ctx context.Context, backupID string) error {
	args := m.Called(ctx, backupID)
	return args.Error(0)
}

// newTestModel собирает модель на настоящих каталоге, координаторе и гейте поверх мока.
func newTestModel(t *testing.T, client *MockAPIClient) *model {
	t.Helper()
	store := catalog.NewStore(client)
	coord := coordinator.New(client, store)
	gate := confirm.NewGate(coord)
	m := initModel(context.Background(), Deps{
		Catalog:     store,
		Coordinator: coord,
		Gate:        gate,
		ServerURL:   "http://backup.test",
	})
	m.statusTimeout = time.Millisecond
	return m
}

// runCmd выполняет команду и передает модели сообщения о завершении операций.
// Тики спиннера и таймеры статуса не передаются.
func runCmd(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			runCmd(t, m, c)
		}
	case refreshDoneMsg, createDoneMsg, restoreDoneMsg, deleteDoneMsg:
		_, next := m.Update(msg)
		runCmd(t, m, next)
	}
}

// pressKey отправляет нажатие клавиши и выполняет получившиеся команды.
func pressKey(t *testing.T, m *model, key string) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case keyEnter:
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case keyEsc:
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := m.Update(msg)
	runCmd(t, m, cmd)
}

func testBackups() []models.Backup {
	desc := "перед релизом"
	return []models.Backup{
		{
			ID:          "bk-2",
			Filename:    "portfolio_2024-05-02.zip",
			Timestamp:   "2024-05-02T10:00:00Z",
			Description: &desc,
			FilesCount:  7,
			SizeMB:      1.25,
			SizeBytes:   1_310_720,
		},
		{
			ID:         "bk-1",
			Filename:   "portfolio_2024-05-01.zip",
			Timestamp:  "2024-05-01T10:00:00Z",
			FilesCount: 3,
			SizeMB:     0.5,
			SizeBytes:  524_288,
		},
	}
}
