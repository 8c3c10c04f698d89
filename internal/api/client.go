package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/portfolio-backup/models"
)

// Пути эндпоинтов сервиса резервного копирования.
const (
	pathList    = "/backup/list"
	pathCreate  = "/backup/create"
	pathRestore = "/backup/restore"
	pathDelete  = "/backup/delete"

	// HeaderRequestID - заголовок с ID запроса для сопоставления логов клиента и сервера.
	HeaderRequestID = "X-Request-Id"

	maxErrorBodySize = 64 << 10
)

// ErrNoToken сигнализирует, что токен аутентификации недоступен.
var ErrNoToken = errors.New("токен аутентификации отсутствует")

// TokenSource выдает bearer-токен для запросов.
// Получение и хранение токена - забота внешней сессии, клиент только спрашивает.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client определяет интерфейс для взаимодействия с сервисом резервных копий.
type Client interface {
	// ListBackups получает полный список резервных копий.
	ListBackups(ctx context.Context) ([]models.Backup, error)
	// CreateBackup создает копию. Пустое описание не передается.
	CreateBackup(ctx context.Context, description string) (*models.CreateBackupResponse, error)
	// RestoreBackup восстанавливает данные из копии.
	RestoreBackup(ctx context.Context, backupID string, overwrite bool) (*models.RestoreBackupResponse, error)
	// DeleteBackup удаляет копию.
	DeleteBackup(ctx context.Context, backupID string) error
}

// Option настраивает httpClient.
type Option func(*httpClient)

// WithHTTPClient подменяет HTTP клиент (например, в тестах).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout задает общий таймаут HTTP запросов. 0 - без таймаута.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.httpClient.Timeout = d
	}
}

// httpClient реализует интерфейс Client по HTTP.
type httpClient struct {
	baseURL    string       // Базовый URL сервера, например "http://localhost:8000"
	httpClient *http.Client // HTTP клиент для выполнения запросов
	tokens     TokenSource  // Источник bearer-токена
}

// NewHTTPClient создает новый экземпляр API клиента.
func NewHTTPClient(baseURL string, tokens TokenSource, opts ...Option) Client {
	c := &httpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListBackups получает список резервных копий.
func (c *httpClient) ListBackups(ctx context.Context) ([]models.Backup, error) {
	var backups []models.Backup
	if err := c.do(ctx, http.MethodGet, pathList, nil, &backups); err != nil {
		return nil, err
	}
	if backups == nil {
		// null и [] для нас одинаковы - пустой каталог
		backups = []models.Backup{}
	}
	return backups, nil
}

// CreateBackup отправляет запрос на создание копии.
// Чувствительные данные в копию никогда не включаются.
func (c *httpClient) CreateBackup(ctx context.Context, description string) (*models.CreateBackupResponse, error) {
	requestBody := models.CreateBackupRequest{IncludeSensitive: false}
	if d := strings.TrimSpace(description); d != "" {
		requestBody.Description = &d
	}

	var created models.CreateBackupResponse
	if err := c.do(ctx, http.MethodPost, pathCreate, requestBody, &created); err != nil {
		return nil, err
	}
	if created.BackupID == "" {
		return nil, errors.New("сервер вернул пустой backup_id")
	}
	return &created, nil
}

// RestoreBackup отправляет запрос на восстановление из копии.
func (c *httpClient) RestoreBackup(
	ctx context.Context,
	backupID string,
	overwrite bool,
) (*models.RestoreBackupResponse, error) {
	if backupID == "" {
		return nil, errors.New("не указан ID резервной копии")
	}
	requestBody := models.RestoreBackupRequest{BackupID: backupID, Overwrite: overwrite}

	var restored models.RestoreBackupResponse
	if err := c.do(ctx, http.MethodPost, pathRestore, requestBody, &restored); err != nil {
		return nil, err
	}
	return &restored, nil
}

// DeleteBackup отправляет запрос на удаление копии. Тело ответа игнорируется.
func (c *httpClient) DeleteBackup(ctx context.Context, backupID string) error {
	if backupID == "" {
		return errors.New("не указан ID резервной копии")
	}
	return c.do(ctx, http.MethodDelete, pathDelete+"/"+url.PathEscape(backupID), nil, nil)
}

// setAuthHeader добавляет заголовок авторизации.
func (c *httpClient) setAuthHeader(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return ErrNoToken
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	if token == "" {
		return ErrNoToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// do выполняет запрос и разбирает ответ.
// body кодируется в JSON, если не nil; out заполняется из тела успешного ответа, если не nil.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	// path уже экранирован, JoinPath его не трогает
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("ошибка формирования URL %s: %w", path, err)
	}

	var reader io.Reader
	if body != nil {
		jsonData, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("ошибка кодирования запроса %s: %w", path, marshalErr)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)

	if err = c.setAuthHeader(ctx, req); err != nil {
		return err
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("Запрос не выполнен", "request_id", requestID, "method", method, "path", path, "error", err)
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("Ответ сервера",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newServerError(resp)
	}

	if out == nil {
		// Дочитываем тело, чтобы соединение можно было переиспользовать
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка декодирования ответа %s: %w", path, err)
	}
	return nil
}

// newServerError читает тело ответа с ошибкой и извлекает detail, если он есть.
func newServerError(resp *http.Response) *ServerError {
	serverErr := &ServerError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return serverErr
	}
	var errBody models.ErrorResponse
	if err = json.Unmarshal(data, &errBody); err != nil {
		// Тело не JSON (например, страница прокси) - detail нет
		return serverErr
	}
	if detail, ok := errBody.DetailText(); ok {
		serverErr.Detail = detail
	}
	return serverErr
}
