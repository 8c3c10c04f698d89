package models

import (
	"strings"
	"time"
)

// Backup представляет одну резервную копию (снимок данных портфеля) на сервере.
// Все поля назначаются сервером, клиент их не изменяет.
type Backup struct {
	ID          string  `json:"backup_id"`             // Уникальный ID копии, никогда не переиспользуется
	Filename    string  `json:"backup_filename"`       // Имя файла для отображения
	Timestamp   string  `json:"timestamp"`             // Время создания в ISO 8601 (как пришло с сервера)
	Description *string `json:"description,omitempty"` // Описание пользователя, может отсутствовать
	FilesCount  int     `json:"files_count"`           // Количество элементов в снимке
	SizeMB      float64 `json:"backup_size_mb"`        // Размер в МБ, считается сервером
	SizeBytes   int64   `json:"backup_size_bytes"`     // Размер в байтах
}

// Форматы времени, которые встречаются в поле timestamp.
// Сервер может отдавать время как с зоной, так и без нее.
//
//nolint:gochecknoglobals // Неизменяемый список форматов
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// CreatedAt разбирает Timestamp. Используется только для отображения,
// второй результат false, если формат не распознан.
func (b Backup) CreatedAt() (time.Time, bool) {
	ts := strings.TrimSpace(b.Timestamp)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DescriptionText возвращает описание или пустую строку, если его нет.
func (b Backup) DescriptionText() string {
	if b.Description == nil {
		return ""
	}
	return *b.Description
}

// CreateBackupRequest представляет тело запроса на создание копии.
type CreateBackupRequest struct {
	Description      *string `json:"description,omitempty"`
	IncludeSensitive bool    `json:"include_sensitive"`
}

// CreateBackupResponse представляет ответ на создание копии.
// Сервер может вернуть и другие поля, нам нужен только ID.
type CreateBackupResponse struct {
	BackupID string `json:"backup_id"`
	Message  string `json:"message,omitempty"`
}

// RestoreBackupRequest представляет тело запроса на восстановление.
type RestoreBackupRequest struct {
	BackupID  string `json:"backup_id"`
	Overwrite bool   `json:"overwrite"`
}

// RestoreBackupResponse представляет ответ на восстановление.
type RestoreBackupResponse struct {
	RestoredCount int `json:"restored_count"`
}

// ErrorResponse - тело ответа сервера с ошибкой (не 2xx).
// Detail может быть не строкой (например, список ошибок валидации),
// поэтому храним его как есть и разбираем отдельно.
type ErrorResponse struct {
	Detail any `json:"detail"`
}

// DetailText возвращает текст ошибки, если detail - непустая строка.
func (e ErrorResponse) DetailText() (string, bool) {
	s, ok := e.Detail.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
