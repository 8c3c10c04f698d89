package kdbx

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tobischo/gokeepasslib/v3"
	"github.com/tobischo/gokeepasslib/v3/wrappers"
)

const (
	// CustomDataKeyServerURL - ключ для хранения URL сервиса в KDBX.
	CustomDataKeyServerURL = "PortfolioServerURL"
	// CustomDataKeyAuthToken - ключ для хранения bearer-токена в KDBX.
	CustomDataKeyAuthToken = "PortfolioAuthToken" //nolint:gosec // Это имя ключа, а не сам токен
)

// Session - данные сессии, которые хранятся в метаданных KDBX.
type Session struct {
	ServerURL string
	Token     string
}

// setCustomDataValue обновляет или добавляет значение в слайс CustomData.
func setCustomDataValue(customData []gokeepasslib.CustomData, key, value string) []gokeepasslib.CustomData {
	for i := range customData {
		if customData[i].Key == key {
			customData[i].Value = value
			return customData
		}
	}
	return append(customData, gokeepasslib.CustomData{Key: key, Value: value})
}

// removeCustomDataValue удаляет значение из слайса CustomData по ключу.
func removeCustomDataValue(customData []gokeepasslib.CustomData, key string) []gokeepasslib.CustomData {
	out := make([]gokeepasslib.CustomData, 0, len(customData))
	for _, item := range customData {
		if item.Key != key {
			out = append(out, item)
		}
	}
	return out
}

// SaveSession сохраняет URL сервиса и токен в CustomData метаданных базы.
// Пустые значения удаляют соответствующий ключ.
func SaveSession(db *gokeepasslib.Database, s Session) error {
	if db == nil || db.Content == nil || db.Content.Meta == nil {
		return errors.New("база данных, ее содержимое или метаданные не инициализированы")
	}
	meta := db.Content.Meta

	if s.ServerURL != "" {
		meta.CustomData = setCustomDataValue(meta.CustomData, CustomDataKeyServerURL, s.ServerURL)
	} else {
		meta.CustomData = removeCustomDataValue(meta.CustomData, CustomDataKeyServerURL)
	}
	if s.Token != "" {
		meta.CustomData = setCustomDataValue(meta.CustomData, CustomDataKeyAuthToken, s.Token)
	} else {
		meta.CustomData = removeCustomDataValue(meta.CustomData, CustomDataKeyAuthToken)
	}

	// Отмечаем изменение во времени модификации корневой группы
	if db.Content.Root != nil && len(db.Content.Root.Groups) > 0 {
		modTime := wrappers.TimeWrapper{Time: time.Now().UTC()}
		db.Content.Root.Groups[0].Times.LastModificationTime = &modTime
	}
	slog.Debug("Сессия сохранена в KDBX", "has_url", s.ServerURL != "", "has_token", s.Token != "")
	return nil
}

// LoadSession извлекает URL сервиса и токен из CustomData метаданных базы.
// Отсутствующие ключи дают пустые строки.
func LoadSession(db *gokeepasslib.Database) (Session, error) {
	if db == nil || db.Content == nil || db.Content.Meta == nil {
		return Session{}, errors.New("база данных, ее содержимое или метаданные не инициализированы")
	}
	var s Session
	for _, item := range db.Content.Meta.CustomData {
		switch item.Key {
		case CustomDataKeyServerURL:
			s.ServerURL = item.Value
		case CustomDataKeyAuthToken:
			s.Token = item.Value
		}
	}
	if s.Token == "" {
		slog.Debug("Токен не найден в CustomData KDBX")
	}
	return s, nil
}
