package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/maynagashev/portfolio-backup/models"
)

// Lister загружает полный список резервных копий с сервера.
// api.Client удовлетворяет этому интерфейсу.
type Lister interface {
	ListBackups(ctx context.Context) ([]models.Backup, error)
}

// Store хранит текущий каталог. Единственный способ изменить каталог - Refresh,
// который целиком заменяет снимок. Читатели всегда видят целый снимок.
type Store struct {
	lister     Lister
	current    atomic.Pointer[Catalog]
	generation atomic.Uint64
	now        func() time.Time
}

// NewStore создает хранилище с пустым каталогом.
func NewStore(lister Lister) *Store {
	s := &Store{lister: lister, now: time.Now}
	s.current.Store(Empty())
	return s
}

// Refresh загружает каталог с сервера и атомарно заменяет текущий.
// При ошибке текущий каталог не меняется, ошибка возвращается вызывающему.
// Параллельные обновления разрешаются по принципу "последний ответ побеждает".
func (s *Store) Refresh(ctx context.Context) error {
	records, err := s.lister.ListBackups(ctx)
	if err != nil {
		slog.Warn("Не удалось обновить каталог, оставляем прежний", "error", err)
		return fmt.Errorf("ошибка загрузки списка резервных копий: %w", err)
	}

	next, err := New(records, s.now())
	if err != nil {
		slog.Error("Сервер вернул некорректный каталог", "error", err)
		return err
	}

	s.current.Store(next)
	gen := s.generation.Add(1)
	slog.Info("Каталог резервных копий обновлен", "count", next.Len(), "generation", gen)
	return nil
}

// Snapshot возвращает текущий снимок каталога.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Generation возвращает количество успешных замен каталога.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}
