package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/maynagashev/portfolio-backup/models"
)

// ErrInvalidCatalog - сервер прислал список, который нельзя принять как каталог.
var ErrInvalidCatalog = errors.New("некорректный список резервных копий")

// Catalog - неизменяемый снимок списка резервных копий.
// Порядок записей совпадает с порядком ответа сервера, ID уникальны.
type Catalog struct {
	records   []models.Backup
	index     map[string]int
	fetchedAt time.Time
}

// New проверяет записи и строит каталог. Срез копируется.
func New(records []models.Backup, fetchedAt time.Time) (*Catalog, error) {
	c := &Catalog{
		records:   make([]models.Backup, len(records)),
		index:     make(map[string]int, len(records)),
		fetchedAt: fetchedAt,
	}
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: запись #%d без backup_id", ErrInvalidCatalog, i)
		}
		if _, dup := c.index[r.ID]; dup {
			return nil, fmt.Errorf("%w: повторяющийся backup_id %q", ErrInvalidCatalog, r.ID)
		}
		if r.FilesCount < 0 || r.SizeBytes < 0 {
			return nil, fmt.Errorf("%w: отрицательный размер у %q", ErrInvalidCatalog, r.ID)
		}
		c.index[r.ID] = i
		c.records[i] = cloneBackup(r)
	}
	return c, nil
}

// Empty возвращает пустой каталог (до первой загрузки).
func Empty() *Catalog {
	return &Catalog{index: map[string]int{}}
}

// Len возвращает количество записей.
func (c *Catalog) Len() int { return len(c.records) }

// Records возвращает копию записей в исходном порядке.
func (c *Catalog) Records() []models.Backup {
	out := make([]models.Backup, len(c.records))
	for i, r := range c.records {
		out[i] = cloneBackup(r)
	}
	return out
}

// Get ищет запись по ID.
func (c *Catalog) Get(id string) (models.Backup, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.Backup{}, false
	}
	return cloneBackup(c.records[i]), true
}

// Contains сообщает, есть ли запись с таким ID.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// IDs возвращает ID записей в исходном порядке.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.records))
	for i, r := range c.records {
		ids[i] = r.ID
	}
	return ids
}

// FetchedAt - момент получения ответа сервера. Нулевое время для пустого каталога.
func (c *Catalog) FetchedAt() time.Time { return c.fetchedAt }

// cloneBackup копирует запись вместе с описанием, чтобы снимок нельзя было изменить снаружи.
func cloneBackup(b models.Backup) models.Backup {
	if b.Description != nil {
		d := *b.Description
		b.Description = &d
	}
	return b
}
