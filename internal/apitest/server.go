// Package apitest содержит in-memory реализацию сервиса резервных копий
// для тестов клиента. Поведение повторяет контракт /backup/*: bearer JWT,
// ответы с detail при ошибках.
package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/maynagashev/portfolio-backup/models"
)

// Op - операция сервиса.
type Op string

const (
	OpList    Op = "list"
	OpCreate  Op = "create"
	OpRestore Op = "restore"
	OpDelete  Op = "delete"
)

const (
	testSecret        = "apitest-secret-key"
	defaultFilesCount = 42
	defaultSizeBytes  = 1_500_000
	bytesInMB         = 1e6
	tokenTTL          = time.Hour
)

// Failure описывает ответ с ошибкой, который сервер вернет вместо обычного.
type Failure struct {
	Status int
	Detail string // Пусто - тело без detail
	Body   string // Если задано, отдается как есть (например, не-JSON)
}

// Request - запись о принятом запросе.
type Request struct {
	Op        Op
	Method    string
	Path      string
	RequestID string
	Create    *models.CreateBackupRequest
	Restore   *models.RestoreBackupRequest
}

// Gate блокирует обработчик операции до вызова Release.
type Gate struct {
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
	releaseOnce sync.Once
}

// Entered закрывается, когда заблокированный запрос дошел до обработчика.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release отпускает заблокированный запрос.
func (g *Gate) Release() { g.releaseOnce.Do(func() { close(g.release) }) }

// Server - фейковый сервис резервных копий поверх httptest.Server.
type Server struct {
	srv *httptest.Server

	mu         sync.Mutex
	backups    []models.Backup // Новые копии в начале списка
	nextID     int
	filesCount int
	failures   map[Op][]Failure
	gates      map[Op]*Gate
	requests   []Request
	now        func() time.Time
}

// New запускает сервер. Вызывающая сторона должна вызвать Close.
func New() *Server {
	s := &Server{
		filesCount: defaultFilesCount,
		failures:   make(map[Op][]Failure),
		gates:      make(map[Op]*Gate),
		now:        time.Now,
	}
	s.srv = httptest.NewServer(s.routes())
	return s
}

// NewServer запускает сервер и регистрирует его закрытие в t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := New()
	t.Cleanup(s.Close)
	return s
}

// Close останавливает сервер и отпускает все заблокированные запросы.
func (s *Server) Close() {
	s.mu.Lock()
	for _, g := range s.gates {
		g.Release()
	}
	s.mu.Unlock()
	s.srv.Close()
}

// URL возвращает базовый URL сервера.
func (s *Server) URL() string { return s.srv.URL }

// Token выдает валидный токен доступа.
func (s *Server) Token() string {
	return IssueToken(time.Now().Add(tokenTTL))
}

// IssueToken подписывает JWT тем же ключом, которым сервер проверяет запросы.
func IssueToken(expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   "apitest-user",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		panic(fmt.Sprintf("apitest: не удалось подписать токен: %v", err))
	}
	return token
}

// Seed заменяет содержимое сервера указанными копиями (порядок сохраняется).
func (s *Server) Seed(backups ...models.Backup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backups = append([]models.Backup(nil), backups...)
}

// SetFilesCount задает files_count для новых копий.
func (s *Server) SetFilesCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesCount = n
}

// Backups возвращает копию текущего списка на сервере.
func (s *Server) Backups() []models.Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Backup(nil), s.backups...)
}

// FailNext ставит в очередь ответ с ошибкой для следующего запроса операции.
func (s *Server) FailNext(op Op, status int, detail string) {
	s.FailNextWith(op, Failure{Status: status, Detail: detail})
}

// FailNextWith ставит в очередь произвольный ответ с ошибкой.
func (s *Server) FailNextWith(op Op, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], f)
}

// Block блокирует следующие запросы операции до Release.
func (s *Server) Block(op Op) *Gate {
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[op] = g
	return g
}

// Requests возвращает принятые запросы операции.
func (s *Server) Requests(op Op) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Count возвращает количество принятых запросов операции.
func (s *Server) Count(op Op) int {
	return len(s.Requests(op))
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(authenticator)
	r.Get("/backup/list", s.handleList)
	r.Post("/backup/create", s.handleCreate)
	r.Post("/backup/restore", s.handleRestore)
	r.Delete("/backup/delete/{backupID}", s.handleDelete)
	return r
}

// authenticator проверяет bearer JWT, как это делает настоящий сервис.
func authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(headerParts[1], claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
			}
			return []byte(testSecret), nil
		})
		if err != nil || !token.Valid {
			slog.Debug("apitest: невалидный токен", "error", err)
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// enter регистрирует запрос, ждет на Gate и возвращает ошибку из очереди, если есть.
func (s *Server) enter(r *http.Request, rec Request) (Failure, bool) {
	rec.Method = r.Method
	rec.Path = r.URL.EscapedPath()
	rec.RequestID = r.Header.Get("X-Request-Id")

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	g := s.gates[rec.Op]
	s.mu.Unlock()

	if g != nil {
		g.enteredOnce.Do(func() { close(g.entered) })
		<-g.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failures[rec.Op]
	if len(queue) == 0 {
		return Failure{}, false
	}
	s.failures[rec.Op] = queue[1:]
	return queue[0], true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if f, failed := s.enter(r, Request{Op: OpList}); failed {
		writeFailure(w, f)
		return
	}
	writeJSON(w, http.StatusOK, s.Backups())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBackupRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if f, failed := s.enter(r, Request{Op: OpCreate, Create: &req}); failed {
		writeFailure(w, f)
		return
	}

	s.mu.Lock()
	s.nextID++
	created := s.now().UTC()
	backup := models.Backup{
		ID:          fmt.Sprintf("bk-%04d", s.nextID),
		Filename:    fmt.Sprintf("portfolio_backup_%s_%04d.json.gz", created.Format("20060102_150405"), s.nextID),
		Timestamp:   created.Format(time.RFC3339),
		Description: req.Description,
		FilesCount:  s.filesCount,
		SizeBytes:   defaultSizeBytes,
		SizeMB:      defaultSizeBytes / bytesInMB,
	}
	s.backups = append([]models.Backup{backup}, s.backups...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"backup_id":       backup.ID,
		"backup_filename": backup.Filename,
		"message":         "Backup created successfully",
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req models.RestoreBackupRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if f, failed := s.enter(r, Request{Op: OpRestore, Restore: &req}); failed {
		writeFailure(w, f)
		return
	}

	backup, ok := s.find(req.BackupID)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Backup not found")
		return
	}
	writeJSON(w, http.StatusOK, models.RestoreBackupResponse{RestoredCount: backup.FilesCount})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	// chi отдает параметр в экранированном виде
	backupID, err := url.PathUnescape(chi.URLParam(r, "backupID"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid backup id")
		return
	}
	if f, failed := s.enter(r, Request{Op: OpDelete}); failed {
		writeFailure(w, f)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.backups {
		if b.ID == backupID {
			s.backups = append(s.backups[:i:i], s.backups[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Backup deleted"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Backup not found")
}

func (s *Server) find(id string) (models.Backup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.backups {
		if b.ID == id {
			return b, true
		}
	}
	return models.Backup{}, false
}

func decodeBody(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeFailure(w http.ResponseWriter, f Failure) {
	if f.Body != "" {
		w.WriteHeader(f.Status)
		_, _ = io.WriteString(w, f.Body)
		return
	}
	if f.Detail == "" {
		writeJSON(w, f.Status, map[string]string{"error": http.StatusText(f.Status)})
		return
	}
	writeDetail(w, f.Status, f.Detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("apitest: ошибка кодирования ответа", "error", err)
	}
}
