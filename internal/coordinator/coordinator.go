package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maynagashev/portfolio-backup/internal/api"
	"github.com/maynagashev/portfolio-backup/models"
)

var (
	// ErrBusy - операция этого типа уже выполняется, запрос не отправлялся.
	ErrBusy = errors.New("операция уже выполняется")
	// ErrClosed - координатор закрыт (экран, который его использовал, уничтожен).
	ErrClosed = errors.New("координатор закрыт")
)

// Backend выполняет изменяющие запросы к сервису. api.Client ему удовлетворяет.
type Backend interface {
	CreateBackup(ctx context.Context, description string) (*models.CreateBackupResponse, error)
	RestoreBackup(ctx context.Context, backupID string, overwrite bool) (*models.RestoreBackupResponse, error)
	DeleteBackup(ctx context.Context, backupID string) error
}

// Refresher перезагружает каталог целиком. catalog.Store ему удовлетворяет.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Hooks - внешние обработчики завершения операций. Любой может быть nil.
type Hooks struct {
	OnCreated         func(backupID string)
	OnRestoreComplete func(restoredCount int)
	OnDeleted         func(backupID string)
}

// Notifier показывает результат операции пользователю (тосты, статусная строка).
type Notifier interface {
	Notify(out Outcome)
}

// Outcome - результат одного вызова операции.
// Ошибки дальше координатора не пробрасываются: Message всегда готов для показа.
type Outcome struct {
	Op            Op
	Message       string
	Err           error  // nil при успехе
	BackupID      string // ID созданной или удаленной копии
	RestoredCount int    // Количество восстановленных элементов
	RefreshErr    error  // Ошибка обновления каталога после успешной операции
}

// OK сообщает об успехе операции.
func (o Outcome) OK() bool { return o.Err == nil }

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithHooks задает обработчики завершения.
func WithHooks(h Hooks) Option {
	return func(c *Coordinator) { c.hooks = h }
}

// WithNotifier задает получателя уведомлений.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// Coordinator выполняет create/restore/delete, не допуская двух запросов
// одного типа одновременно, и обновляет каталог после успешных изменений.
// Операции разных типов друг друга не блокируют.
type Coordinator struct {
	backend  Backend
	catalog  Refresher
	hooks    Hooks
	notifier Notifier

	mu       sync.Mutex
	inflight [numOps]int   // Количество выполняющихся запросов по типам
	last     [numOps]State // Итог последнего завершенного запроса (Idle или Failed)
	closed   bool
}

// New создает координатор.
func New(backend Backend, catalog Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{backend: backend, catalog: catalog}
	for i := range c.last {
		c.last[i] = Idle()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State возвращает текущее состояние операции.
func (c *Coordinator) State(op Op) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[op] > 0 {
		return Pending()
	}
	return c.last[op]
}

// Close помечает координатор закрытым. Запросы, которые уже отправлены,
// не отменяются, но их результаты больше не меняют состояние и не вызывают hooks.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		slog.Debug("Координатор резервных копий закрыт")
	}
}

// Closed сообщает, закрыт ли координатор.
func (c *Coordinator) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Refresh перезагружает каталог по запросу пользователя.
// Не защищен от повторов: обновление идемпотентно, побеждает последний ответ.
func (c *Coordinator) Refresh(ctx context.Context) Outcome {
	if err := c.begin(OpRefresh, false); err != nil {
		return c.rejected(OpRefresh, err)
	}
	err := c.catalog.Refresh(ctx)
	if !c.finish(OpRefresh, err) {
		return closedOutcome(OpRefresh)
	}
	out := Outcome{Op: OpRefresh, Message: "Backup list refreshed"}
	if err != nil {
		out.Err = err
		out.Message = api.Message(err, OpRefresh.fallbackMessage())
	}
	c.notify(out)
	return out
}

// Create создает резервную копию. Пока предыдущее создание не завершилось,
// новый вызов отклоняется с ErrBusy без сетевого запроса.
func (c *Coordinator) Create(ctx context.Context, description string) Outcome {
	if err := c.begin(OpCreate, true); err != nil {
		return c.rejected(OpCreate, err)
	}

	resp, err := c.backend.CreateBackup(ctx, description)
	if err != nil {
		return c.failed(OpCreate, err)
	}
	if c.Closed() {
		return closedOutcome(OpCreate)
	}

	// Копия появится в каталоге только после обновления
	refreshErr := c.refreshAfterMutation(ctx)
	if !c.finish(OpCreate, nil) {
		return closedOutcome(OpCreate)
	}
	slog.Info("Резервная копия создана", "backup_id", resp.BackupID)

	out := Outcome{
		Op:         OpCreate,
		Message:    fmt.Sprintf("Backup created successfully (ID: %s)", resp.BackupID),
		BackupID:   resp.BackupID,
		RefreshErr: refreshErr,
	}
	if c.hooks.OnCreated != nil {
		c.hooks.OnCreated(resp.BackupID)
	}
	c.notify(out)
	return out
}

// Restore восстанавливает данные из копии. Каталог не меняется.
// overwrite передается серверу как есть.
func (c *Coordinator) Restore(ctx context.Context, backupID string, overwrite bool) Outcome {
	if err := c.begin(OpRestore, true); err != nil {
		return c.rejected(OpRestore, err)
	}

	resp, err := c.backend.RestoreBackup(ctx, backupID, overwrite)
	if err != nil {
		return c.failed(OpRestore, err)
	}
	if !c.finish(OpRestore, nil) {
		return closedOutcome(OpRestore)
	}
	slog.Info("Восстановление из резервной копии завершено",
		"backup_id", backupID, "overwrite", overwrite, "restored_count", resp.RestoredCount)

	out := Outcome{
		Op:            OpRestore,
		Message:       fmt.Sprintf("Backup restored: %d items restored", resp.RestoredCount),
		BackupID:      backupID,
		RestoredCount: resp.RestoredCount,
	}
	if c.hooks.OnRestoreComplete != nil {
		c.hooks.OnRestoreComplete(resp.RestoredCount)
	}
	c.notify(out)
	return out
}

// Delete удаляет копию и обновляет каталог.
func (c *Coordinator) Delete(ctx context.Context, backupID string) Outcome {
	if err := c.begin(OpDelete, true); err != nil {
		return c.rejected(OpDelete, err)
	}

	if err := c.backend.DeleteBackup(ctx, backupID); err != nil {
		return c.failed(OpDelete, err)
	}
	if c.Closed() {
		return closedOutcome(OpDelete)
	}

	refreshErr := c.refreshAfterMutation(ctx)
	if !c.finish(OpDelete, nil) {
		return closedOutcome(OpDelete)
	}
	slog.Info("Резервная копия удалена", "backup_id", backupID)

	out := Outcome{
		Op:         OpDelete,
		Message:    "Backup deleted successfully",
		BackupID:   backupID,
		RefreshErr: refreshErr,
	}
	if c.hooks.OnDeleted != nil {
		c.hooks.OnDeleted(backupID)
	}
	c.notify(out)
	return out
}

// refreshAfterMutation обновляет каталог после успешного изменения.
// Ошибка обновления не превращает саму операцию в неудачную.
func (c *Coordinator) refreshAfterMutation(ctx context.Context) error {
	if err := c.begin(OpRefresh, false); err != nil {
		return err
	}
	err := c.catalog.Refresh(ctx)
	c.finish(OpRefresh, err)
	if err != nil {
		slog.Warn("Каталог не обновлен после изменения", "error", err)
	}
	return err
}

// begin переводит операцию в Pending. guarded запрещает второй запрос того же типа.
func (c *Coordinator) begin(op Op, guarded bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if guarded && c.inflight[op] > 0 {
		return ErrBusy
	}
	c.inflight[op]++
	return nil
}

// finish фиксирует итог запроса. Возвращает false, если координатор уже закрыт:
// тогда состояние не трогаем.
func (c *Coordinator) finish(op Op, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.inflight[op]--
	if err != nil {
		c.last[op] = Failed(api.Message(err, op.fallbackMessage()))
	} else {
		c.last[op] = Idle()
	}
	return true
}

// failed завершает операцию с ошибкой сервера или сети.
func (c *Coordinator) failed(op Op, err error) Outcome {
	if !c.finish(op, err) {
		return closedOutcome(op)
	}
	slog.Error("Операция с резервной копией завершилась ошибкой", "op", op.String(), "error", err)
	out := Outcome{Op: op, Err: err, Message: api.Message(err, op.fallbackMessage())}
	c.notify(out)
	return out
}

// rejected - запрос не отправлялся (ErrBusy или ErrClosed), состояние не меняется.
func (c *Coordinator) rejected(op Op, err error) Outcome {
	if errors.Is(err, ErrClosed) {
		return closedOutcome(op)
	}
	slog.Debug("Повторный запуск операции отклонен", "op", op.String())
	return Outcome{Op: op, Err: err, Message: op.busyMessage()}
}

func (c *Coordinator) notify(out Outcome) {
	if c.notifier != nil {
		c.notifier.Notify(out)
	}
}

func closedOutcome(op Op) Outcome {
	return Outcome{Op: op, Err: ErrClosed, Message: ErrClosed.Error()}
}
