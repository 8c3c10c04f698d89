// Package cli - командная строка клиента: разбор флагов, настройка логов
// и запуск TUI или неинтерактивных команд.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/maynagashev/portfolio-backup/internal/api"
	"github.com/maynagashev/portfolio-backup/internal/catalog"
	"github.com/maynagashev/portfolio-backup/internal/confirm"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
	"github.com/maynagashev/portfolio-backup/internal/tui"
)

// App - приложение командной строки.
type App struct {
	app    *kingpin.Application
	cfg    Config
	stdout io.Writer
	stdin  io.Reader
	now    func() time.Time

	runTUI       func(ctx context.Context, deps tui.Deps) error
	setupLogging func(path string, debug bool) (io.Closer, error)

	tuiCmd         *kingpin.CmdClause
	listCmd        *kingpin.CmdClause
	createCmd      *kingpin.CmdClause
	restoreCmd     *kingpin.CmdClause
	deleteCmd      *kingpin.CmdClause
	sessionSaveCmd *kingpin.CmdClause

	description string
	restoreID   string
	deleteID    string
	assumeYes   bool
}

// New создает приложение. version показывается по --version.
func New(version string, stdout io.Writer, stdin io.Reader) *App {
	a := &App{
		app:          kingpin.New("portfolio-backup", "Управление резервными копиями портфеля."),
		stdout:       stdout,
		stdin:        stdin,
		now:          time.Now,
		runTUI:       tui.Start,
		setupLogging: SetupLogging,
	}
	a.app.Version(version)
	a.app.Writer(stdout)
	a.app.HelpFlag.Short('h')
	a.setupFlags()
	a.setupCommands()
	return a
}

func (a *App) setupFlags() {
	a.app.Flag("server-url", "URL сервиса резервного копирования.").
		Envar(envServerURL).StringVar(&a.cfg.ServerURL)
	a.app.Flag("token", "Bearer-токен доступа.").
		Envar(envToken).StringVar(&a.cfg.Token)
	a.app.Flag("vault", "Путь к хранилищу KDBX с сохраненной сессией.").
		Envar(envVault).StringVar(&a.cfg.VaultPath)
	a.app.Flag("vault-password", "Пароль хранилища KDBX.").
		Envar(envVaultPassword).StringVar(&a.cfg.VaultPassword)
	a.app.Flag("timeout", "Таймаут HTTP запросов (0 - без таймаута).").
		Default("0s").DurationVar(&a.cfg.Timeout)
	a.app.Flag("log-file", "Файл журнала.").
		Default(defaultLogFile).StringVar(&a.cfg.LogFile)
	a.app.Flag("debug", "Подробный журнал и отладочная панель TUI.").
		BoolVar(&a.cfg.Debug)
}

func (a *App) setupCommands() {
	a.tuiCmd = a.app.Command("tui", "Интерактивный режим.").Default()
	a.listCmd = a.app.Command("list", "Показать резервные копии.").Alias("ls")

	a.createCmd = a.app.Command("create", "Создать резервную копию.")
	a.createCmd.Flag("description", "Описание копии.").Short('d').StringVar(&a.description)

	a.restoreCmd = a.app.Command("restore", "Восстановить данные из копии (текущие данные перезаписываются).")
	a.restoreCmd.Arg("id", "ID резервной копии.").Required().StringVar(&a.restoreID)
	a.restoreCmd.Flag("yes", "Не спрашивать подтверждение.").Short('y').BoolVar(&a.assumeYes)

	a.deleteCmd = a.app.Command("delete", "Удалить резервную копию.").Alias("rm")
	a.deleteCmd.Arg("id", "ID резервной копии.").Required().StringVar(&a.deleteID)
	a.deleteCmd.Flag("yes", "Не спрашивать подтверждение.").Short('y').BoolVar(&a.assumeYes)

	sessionCmd := a.app.Command("session", "Сессия в хранилище KDBX.")
	a.sessionSaveCmd = sessionCmd.Command("save", "Сохранить --server-url и --token в хранилище --vault.")
}

// Run разбирает аргументы и выполняет выбранную команду.
func (a *App) Run(ctx context.Context, args []string) error {
	command, err := a.app.Parse(args)
	if err != nil {
		return fmt.Errorf("ошибка разбора аргументов: %w", err)
	}

	logCloser, err := a.setupLogging(a.cfg.LogFile, a.cfg.Debug)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	slog.Info("Запуск команды", "command", command, "debug", a.cfg.Debug)

	switch command {
	case a.sessionSaveCmd.FullCommand():
		return a.runSessionSave(ctx)
	case a.listCmd.FullCommand():
		return a.withServices(ctx, a.runList)
	case a.createCmd.FullCommand():
		return a.withServices(ctx, a.runCreate)
	case a.restoreCmd.FullCommand():
		return a.withServices(ctx, a.runRestore)
	case a.deleteCmd.FullCommand():
		return a.withServices(ctx, a.runDelete)
	case a.tuiCmd.FullCommand():
		return a.withServices(ctx, a.runInteractive)
	default:
		return fmt.Errorf("неизвестная команда %q", command)
	}
}

// services - собранные компоненты клиента для одной команды.
type services struct {
	serverURL string
	store     *catalog.Store
	coord     *coordinator.Coordinator
	gate      *confirm.Gate
}

// withServices собирает клиент, каталог, координатор и гейт и выполняет fn.
func (a *App) withServices(ctx context.Context, fn func(ctx context.Context, svc *services) error) error {
	conn, err := a.cfg.resolve(ctx, a.now())
	if err != nil {
		return err
	}

	client := api.NewHTTPClient(conn.serverURL, conn.tokens, api.WithTimeout(a.cfg.Timeout))
	store := catalog.NewStore(client)
	coord := coordinator.New(client, store)
	svc := &services{
		serverURL: conn.serverURL,
		store:     store,
		coord:     coord,
		gate:      confirm.NewGate(coord),
	}
	return fn(ctx, svc)
}

func (a *App) runInteractive(ctx context.Context, svc *services) error {
	return a.runTUI(ctx, tui.Deps{
		Catalog:     svc.store,
		Coordinator: svc.coord,
		Gate:        svc.gate,
		ServerURL:   svc.serverURL,
		DebugMode:   a.cfg.Debug,
	})
}
