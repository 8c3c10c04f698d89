package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/maynagashev/portfolio-backup/internal/api"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
	"github.com/maynagashev/portfolio-backup/internal/kdbx"
	"github.com/maynagashev/portfolio-backup/internal/session"
	"github.com/maynagashev/portfolio-backup/models"
)

var (
	// ErrCancelled - пользователь не подтвердил операцию.
	ErrCancelled = errors.New("операция отменена пользователем")

	errVaultRequired = errors.New("не указано хранилище: --vault или " + envVault)
)

// OperationError - операция завершилась ошибкой. Текст - сообщение для пользователя.
type OperationError struct {
	Outcome coordinator.Outcome
}

func (e *OperationError) Error() string { return e.Outcome.Message }

func (e *OperationError) Unwrap() error { return e.Outcome.Err }

func outcomeError(out coordinator.Outcome) error {
	if out.OK() {
		return nil
	}
	return &OperationError{Outcome: out}
}

// report печатает итог операции и предупреждение, если каталог не обновился.
func (a *App) report(out coordinator.Outcome) {
	if !out.OK() {
		return
	}
	fmt.Fprintln(a.stdout, out.Message)
	if out.RefreshErr != nil {
		fmt.Fprintln(a.stdout, "Warning: backup list not refreshed: "+api.Message(out.RefreshErr, "Failed to fetch backups"))
	}
}

func (a *App) runList(ctx context.Context, svc *services) error {
	out := svc.coord.Refresh(ctx)
	if err := outcomeError(out); err != nil {
		return err
	}
	records := svc.store.Snapshot().Records()
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No backups yet.")
		return nil
	}
	fmt.Fprintln(a.stdout, renderBackups(records))
	return nil
}

// renderBackups строит таблицу в порядке ответа сервера.
func renderBackups(records []models.Backup) string {
	rows := make([][]string, 0, len(records))
	for _, b := range records {
		created := b.Timestamp
		if t, ok := b.CreatedAt(); ok {
			created = humanize.Time(t)
		}
		rows = append(rows, []string{
			b.ID,
			b.Filename,
			created,
			humanize.Comma(int64(b.FilesCount)),
			fmt.Sprintf("%.2f MB", b.SizeMB),
			b.DescriptionText(),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "FILENAME", "CREATED", "FILES", "SIZE", "DESCRIPTION").
		Rows(rows...).
		Render()
}

func (a *App) runCreate(ctx context.Context, svc *services) error {
	out := svc.coord.Create(ctx, a.description)
	if err := outcomeError(out); err != nil {
		return err
	}
	a.report(out)
	return nil
}

func (a *App) runRestore(ctx context.Context, svc *services) error {
	svc.gate.OpenRestore(a.restoreID)
	question := fmt.Sprintf("Restore from backup %s? Current data will be overwritten.", a.restoreID)
	if !a.confirmed(question) {
		svc.gate.CancelRestore()
		fmt.Fprintln(a.stdout, "Cancelled.")
		return ErrCancelled
	}
	out := svc.gate.ConfirmRestore(ctx)
	if err := outcomeError(out); err != nil {
		return err
	}
	a.report(out)
	return nil
}

func (a *App) runDelete(ctx context.Context, svc *services) error {
	svc.gate.OpenDelete(a.deleteID)
	question := fmt.Sprintf("Delete backup %s? This cannot be undone.", a.deleteID)
	if !a.confirmed(question) {
		svc.gate.CancelDelete()
		fmt.Fprintln(a.stdout, "Cancelled.")
		return ErrCancelled
	}
	out := svc.gate.ConfirmDelete(ctx)
	if err := outcomeError(out); err != nil {
		return err
	}
	a.report(out)
	return nil
}

// confirmed спрашивает y/N, если не передан --yes. Пустой ответ - отказ.
func (a *App) confirmed(question string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(a.stdout, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// runSessionSave сохраняет URL сервиса и токен в хранилище KDBX.
func (a *App) runSessionSave(ctx context.Context) error {
	if a.cfg.VaultPath == "" {
		return errVaultRequired
	}
	if a.cfg.Token == "" {
		return errNoCredentials
	}
	serverURL := a.cfg.ServerURL
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	session.WarnIfExpired(a.cfg.Token, a.now())
	vault := session.NewVault(a.cfg.VaultPath, a.cfg.VaultPassword)
	if err := vault.Save(ctx, kdbx.Session{ServerURL: serverURL, Token: a.cfg.Token}); err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	fmt.Fprintf(a.stdout, "Session saved to %s\n", a.cfg.VaultPath)
	return nil
}
