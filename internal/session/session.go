// Package session выдает bearer-токен для запросов к сервису.
// Сам токен получает внешняя система входа; здесь он только читается
// из флага/окружения или из хранилища KDBX.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/maynagashev/portfolio-backup/internal/kdbx"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrNoToken - токен не задан.
var ErrNoToken = errors.New("токен не задан")

// Static - токен, переданный напрямую (флаг или переменная окружения).
type Static string

// Token возвращает токен.
func (s Static) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Vault читает сессию из файла KDBX. Файл блокируется через <path>.lock,
// чтобы не читать его во время записи другим процессом.
type Vault struct {
	Path     string
	Password string

	mu     sync.Mutex
	cached *kdbx.Session
}

// NewVault создает источник токена из KDBX.
func NewVault(path, password string) *Vault {
	return &Vault{Path: path, Password: password}
}

// Token возвращает токен из хранилища. Хранилище читается один раз.
func (v *Vault) Token(ctx context.Context) (string, error) {
	s, err := v.Session(ctx)
	if err != nil {
		return "", err
	}
	if s.Token == "" {
		return "", fmt.Errorf("%w в хранилище %s", ErrNoToken, v.Path)
	}
	return s.Token, nil
}

// Session возвращает URL сервиса и токен из хранилища.
func (v *Vault) Session(ctx context.Context) (kdbx.Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cached != nil {
		return *v.cached, nil
	}

	lock := flock.New(v.Path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return kdbx.Session{}, fmt.Errorf("ошибка блокировки хранилища %s: %w", v.Path, err)
	}
	if !locked {
		return kdbx.Session{}, fmt.Errorf("хранилище %s заблокировано другим процессом", v.Path)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("Ошибка при снятии блокировки хранилища", "path", v.Path, "error", unlockErr)
		}
	}()

	db, err := kdbx.OpenFile(v.Path, v.Password)
	if err != nil {
		return kdbx.Session{}, err
	}
	s, err := kdbx.LoadSession(db)
	if err != nil {
		return kdbx.Session{}, err
	}
	v.cached = &s
	slog.Info("Сессия загружена из хранилища", "path", v.Path, "has_token", s.Token != "")
	return s, nil
}

// Save записывает сессию в хранилище под эксклюзивной блокировкой.
// Если файла нет, создается новая база с паролем v.Password.
func (v *Vault) Save(ctx context.Context, s kdbx.Session) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	lock := flock.New(v.Path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("ошибка блокировки хранилища %s: %w", v.Path, err)
	}
	if !locked {
		return fmt.Errorf("хранилище %s заблокировано другим процессом", v.Path)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("Ошибка при снятии блокировки хранилища", "path", v.Path, "error", unlockErr)
		}
	}()

	db, err := kdbx.OpenFile(v.Path, v.Password)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("Хранилище не найдено, создаем новое", "path", v.Path)
		db, err = kdbx.NewDatabase(v.Password)
	}
	if err != nil {
		return err
	}
	if err = kdbx.SaveSession(db, s); err != nil {
		return err
	}
	if err = kdbx.SaveFile(db, v.Path, v.Password); err != nil {
		return err
	}
	v.cached = &s
	return nil
}

// Expiry читает время истечения токена из claim exp без проверки подписи.
// Используется только для предупреждения при запуске.
func Expiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// WarnIfExpired пишет в лог предупреждение, если токен уже истек.
// Возвращает true для истекшего токена.
func WarnIfExpired(token string, now time.Time) bool {
	exp, ok := Expiry(token)
	if !ok || exp.After(now) {
		return false
	}
	slog.Warn("Срок действия токена истек, сервис ответит 401. Обновите токен.", "expired_at", exp)
	return true
}
