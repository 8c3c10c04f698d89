package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maynagashev/portfolio-backup/internal/api"
	"github.com/maynagashev/portfolio-backup/internal/session"
)

// Переменные окружения.
const (
	envServerURL     = "PORTFOLIO_SERVER_URL"
	envToken         = "PORTFOLIO_TOKEN" //nolint:gosec // Имя переменной, а не токен
	envVault         = "PORTFOLIO_VAULT"
	envVaultPassword = "PORTFOLIO_VAULT_PASSWORD" //nolint:gosec // Имя переменной, а не пароль
)

const (
	defaultServerURL = "http://localhost:8000"
	defaultLogFile   = "logs/client.log"
)

// errNoCredentials - токен не передан ни флагом, ни окружением, ни хранилищем.
var errNoCredentials = errors.New(
	"не задан токен: укажите --token, " + envToken + " или хранилище --vault (" + envVault + ")",
)

// Config - глобальные настройки клиента.
type Config struct {
	ServerURL     string
	Token         string
	VaultPath     string
	VaultPassword string
	Timeout       time.Duration
	LogFile       string
	Debug         bool
}

// resolved - итоговые параметры подключения.
type resolved struct {
	serverURL string
	tokens    api.TokenSource
	source    string
}

// resolve определяет URL сервиса и источник токена.
// Приоритет: флаг, затем переменная окружения (обе обрабатывает kingpin), затем хранилище, затем значение по умолчанию.
func (c Config) resolve(ctx context.Context, now time.Time) (resolved, error) {
	r := resolved{serverURL: c.ServerURL}

	var vault *session.Vault
	if c.VaultPath != "" {
		vault = session.NewVault(c.VaultPath, c.VaultPassword)
	}

	switch {
	case c.Token != "":
		r.tokens = session.Static(c.Token)
		r.source = "flag/env"
	case vault != nil:
		r.tokens = vault
		r.source = "vault"
	default:
		return resolved{}, errNoCredentials
	}

	if r.serverURL == "" && vault != nil {
		s, err := vault.Session(ctx)
		if err != nil {
			// URL из хранилища не обязателен, если токен задан явно
			if r.tokens == vault {
				return resolved{}, err
			}
			slog.Warn("Не удалось прочитать URL сервиса из хранилища", "error", err)
		} else {
			r.serverURL = s.ServerURL
		}
	}
	if r.serverURL == "" {
		r.serverURL = defaultServerURL
	}

	if token, err := r.tokens.Token(ctx); err == nil {
		session.WarnIfExpired(token, now)
	}
	slog.Info("Параметры подключения определены", "server_url", r.serverURL, "token_source", r.source)
	return r, nil
}
