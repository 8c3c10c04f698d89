package confirm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/maynagashev/portfolio-backup/internal/coordinator"
)

// restoreOverwrite - восстановление всегда перезаписывает текущие данные.
// Режим без перезаписи сервер поддерживает, но пользователю он не предлагается.
const restoreOverwrite = true

// ErrNoTarget - подтверждение без выбранной копии.
var ErrNoTarget = errors.New("резервная копия для подтверждения не выбрана")

// Mutator выполняет разрушающие операции. coordinator.Coordinator ему удовлетворяет.
type Mutator interface {
	Restore(ctx context.Context, backupID string, overwrite bool) coordinator.Outcome
	Delete(ctx context.Context, backupID string) coordinator.Outcome
}

// slot хранит ID копии, ожидающей подтверждения, или ничего.
type slot struct {
	target *string
}

func (s *slot) open(id string) { s.target = &id }

func (s *slot) clear() { s.target = nil }

func (s *slot) get() (string, bool) {
	if s.target == nil {
		return "", false
	}
	return *s.target, true
}

// Gate держит два независимых запроса подтверждения: на восстановление и на удаление.
// Открытие одного не трогает другой. Слот закрывается только после успеха операции,
// чтобы после ошибки можно было сразу повторить без повторного выбора копии.
type Gate struct {
	mutator Mutator

	mu          sync.Mutex
	restoreSlot slot
	deleteSlot  slot
}

// NewGate создает Gate поверх координатора.
func NewGate(m Mutator) *Gate {
	return &Gate{mutator: m}
}

// OpenRestore запрашивает подтверждение восстановления из копии id.
func (g *Gate) OpenRestore(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restoreSlot.open(id)
}

// OpenDelete запрашивает подтверждение удаления копии id.
func (g *Gate) OpenDelete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteSlot.open(id)
}

// CancelRestore отменяет запрос восстановления. Сетевых запросов нет.
func (g *Gate) CancelRestore() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restoreSlot.clear()
}

// CancelDelete отменяет запрос удаления. Сетевых запросов нет.
func (g *Gate) CancelDelete() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteSlot.clear()
}

// RestoreTarget возвращает копию, ожидающую подтверждения восстановления.
func (g *Gate) RestoreTarget() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.restoreSlot.get()
}

// DeleteTarget возвращает копию, ожидающую подтверждения удаления.
func (g *Gate) DeleteTarget() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleteSlot.get()
}

// ConfirmRestore запускает восстановление из выбранной копии с overwrite=true.
func (g *Gate) ConfirmRestore(ctx context.Context) coordinator.Outcome {
	id, ok := g.RestoreTarget()
	if !ok {
		return noTarget(coordinator.OpRestore)
	}
	slog.Info("Подтверждено восстановление", "backup_id", id)
	out := g.mutator.Restore(ctx, id, restoreOverwrite)
	if out.OK() {
		g.closeIfSame(&g.restoreSlot, id)
	}
	return out
}

// ConfirmDelete запускает удаление выбранной копии.
func (g *Gate) ConfirmDelete(ctx context.Context) coordinator.Outcome {
	id, ok := g.DeleteTarget()
	if !ok {
		return noTarget(coordinator.OpDelete)
	}
	slog.Info("Подтверждено удаление", "backup_id", id)
	out := g.mutator.Delete(ctx, id)
	if out.OK() {
		g.closeIfSame(&g.deleteSlot, id)
	}
	return out
}

// closeIfSame закрывает слот, только если пока шел запрос пользователь не выбрал другую копию.
func (g *Gate) closeIfSame(s *slot, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := s.get(); ok && current == id {
		s.clear()
	}
}

func noTarget(op coordinator.Op) coordinator.Outcome {
	return coordinator.Outcome{Op: op, Err: ErrNoTarget, Message: "No backup selected"}
}
