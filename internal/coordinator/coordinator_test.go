package coordinator_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/portfolio-backup/internal/api"
	"github.com/maynagashev/portfolio-backup/internal/apitest"
	"github.com/maynagashev/portfolio-backup/internal/catalog"
	"github.com/maynagashev/portfolio-backup/internal/coordinator"
	"github.com/maynagashev/portfolio-backup/internal/session"
	"github.com/maynagashev/portfolio-backup/models"
)

const waitTimeout = 5 * time.Second

// recorder собирает вызовы hooks и уведомления.
type recorder struct {
	mu       sync.Mutex
	created  []string
	deleted  []string
	restored []int
	notified []coordinator.Outcome
}

func (r *recorder) hooks() coordinator.Hooks {
	return coordinator.Hooks{
		OnCreated: func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.created = append(r.created, id)
		},
		OnRestoreComplete: func(n int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.restored = append(r.restored, n)
		},
		OnDeleted: func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.deleted = append(r.deleted, id)
		},
	}
}

func (r *recorder) Notify(out coordinator.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, out)
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created) + len(r.deleted) + len(r.restored)
}

type setup struct {
	srv   *apitest.Server
	store *catalog.Store
	coord *coordinator.Coordinator
	rec   *recorder
}

func newSetup(t *testing.T, seed ...models.Backup) *setup {
	t.Helper()
	srv := apitest.NewServer(t)
	srv.Seed(seed...)
	client := api.NewHTTPClient(srv.URL(), session.Static(srv.Token()))
	store := catalog.NewStore(client)
	rec := &recorder{}
	coord := coordinator.New(client, store,
		coordinator.WithHooks(rec.hooks()),
		coordinator.WithNotifier(rec),
	)
	return &setup{srv: srv, store: store, coord: coord, rec: rec}
}

func waitEntered(t *testing.T, g *apitest.Gate) {
	t.Helper()
	select {
	case <-g.Entered():
	case <-time.After(waitTimeout):
		t.Fatal("запрос не дошел до сервера")
	}
}

func TestInitialState(t *testing.T) {
	s := newSetup(t)
	for _, op := range []coordinator.Op{
		coordinator.OpRefresh, coordinator.OpCreate, coordinator.OpRestore, coordinator.OpDelete,
	} {
		assert.Equal(t, coordinator.PhaseIdle, s.coord.State(op).Phase(), op.String())
	}
}

func TestRefresh(t *testing.T) {
	s := newSetup(t, models.Backup{ID: "bk-a"}, models.Backup{ID: "bk-b"})

	out := s.coord.Refresh(context.Background())

	require.True(t, out.OK())
	assert.Equal(t, "Backup list refreshed", out.Message)
	assert.Equal(t, []string{"bk-a", "bk-b"}, s.store.Snapshot().IDs())
	assert.Equal(t, coordinator.Idle(), s.coord.State(coordinator.OpRefresh))
}

func TestRefreshFailure(t *testing.T) {
	s := newSetup(t, models.Backup{ID: "bk-a"})
	require.True(t, s.coord.Refresh(context.Background()).OK())
	s.srv.FailNext(apitest.OpList, http.StatusInternalServerError, "")

	out := s.coord.Refresh(context.Background())

	require.False(t, out.OK())
	assert.Equal(t, "Failed to fetch backups", out.Message)
	msg, failed := s.coord.State(coordinator.OpRefresh).Err()
	require.True(t, failed)
	assert.Equal(t, "Failed to fetch backups", msg)
	assert.Equal(t, []string{"bk-a"}, s.store.Snapshot().IDs(), "Каталог не меняется")
}

func TestConcurrentRefreshNotGuarded(t *testing.T) {
	s := newSetup(t, models.Backup{ID: "bk-a"})
	gate := s.srv.Block(apitest.OpList)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, s.coord.Refresh(context.Background()).OK())
		}()
	}
	require.Eventually(t, func() bool { return s.srv.Count(apitest.OpList) == 2 }, waitTimeout, 10*time.Millisecond)
	assert.True(t, s.coord.State(coordinator.OpRefresh).IsPending())

	gate.Release()
	wg.Wait()
	assert.Equal(t, coordinator.Idle(), s.coord.State(coordinator.OpRefresh))
}

func TestCreate(t *testing.T) {
	t.Run("Новая копия видна после обновления", func(t *testing.T) {
		s := newSetup(t, models.Backup{ID: "bk-old"})

		out := s.coord.Create(context.Background(), "Q1 snapshot")

		require.True(t, out.OK())
		assert.Equal(t, "bk-0001", out.BackupID)
		require.Equal(t, 2, s.store.Snapshot().Len())
		created, ok := s.store.Snapshot().Get(out.BackupID)
		require.True(t, ok)
		assert.Equal(t, "Q1 snapshot", created.DescriptionText())
		assert.Equal(t, "Backup created successfully (ID: bk-0001)", out.Message)
		assert.NoError(t, out.RefreshErr)
		assert.True(t, s.store.Snapshot().Contains("bk-0001"))
		assert.Equal(t, 1, s.srv.Count(apitest.OpList))
		assert.Equal(t, []string{"bk-0001"}, s.rec.created)
		require.Len(t, s.rec.notified, 1)
		assert.Equal(t, coordinator.OpCreate, s.rec.notified[0].Op)
		assert.Equal(t, coordinator.Idle(), s.coord.State(coordinator.OpCreate))
	})

	t.Run("disk full: без вставки и без обновления", func(t *testing.T) {
		s := newSetup(t, models.Backup{ID: "bk-old"})
		require.True(t, s.coord.Refresh(context.Background()).OK())
		s.srv.FailNext(apitest.OpCreate, http.StatusInternalServerError, "disk full")

		out := s.coord.Create(context.Background(), "")

		require.False(t, out.OK())
		assert.Equal(t, "disk full", out.Message)
		assert.Equal(t, coordinator.Failed("disk full"), s.coord.State(coordinator.OpCreate))
		assert.Equal(t, []string{"bk-old"}, s.store.Snapshot().IDs())
		assert.Equal(t, 1, s.srv.Count(apitest.OpList), "Обновления после ошибки нет")
		assert.Empty(t, s.rec.created)
		require.Len(t, s.rec.notified, 2)
		assert.Equal(t, "disk full", s.rec.notified[1].Message)
	})

	t.Run("Повтор после ошибки сбрасывает Failed", func(t *testing.T) {
		s := newSetup(t)
		s.srv.FailNext(apitest.OpCreate, http.StatusInternalServerError, "")

		first := s.coord.Create(context.Background(), "")
		assert.Equal(t, "Failed to create backup", first.Message)

		second := s.coord.Create(context.Background(), "")
		require.True(t, second.OK())
		assert.Equal(t, coordinator.Idle(), s.coord.State(coordinator.OpCreate))
	})

	t.Run("Ошибка обновления после создания не делает создание неудачным", func(t *testing.T) {
		s := newSetup(t)
		s.srv.FailNext(apitest.OpList, http.StatusServiceUnavailable, "List unavailable")

		out := s.coord.Create(context.Background(), "")

		require.True(t, out.OK())
		require.Error(t, out.RefreshErr)
		assert.Equal(t, "List unavailable", api.Message(out.RefreshErr, "Failed to fetch backups"))
		assert.Equal(t, coordinator.Idle(), s.coord.State(coordinator.OpCreate))
		assert.Equal(t, coordinator.Failed("List unavailable"), s.coord.State(coordinator.OpRefresh))
		assert.Equal(t, 0, s.store.Snapshot().Len())
	})
}

func TestDuplicateSubmissionGuard(t *testing.T) {
	s := newSetup(t)
	gate := s.srv.Block(apitest.OpCreate)

	done := make(chan coordinator.Outcome, 1)
	go func() { done <- s.coord.Create(context.Background(), "first") }()
	waitEntered(t, gate)

	assert.True(t, s.coord.State(coordinator.OpCreate).IsPending())
	second := s.coord.Create(context.Background(), "second")

	require.ErrorIs(t, second.Err, coordinator.ErrBusy)
	assert.Equal(t, "Backup creation is already in progress", second.Message)
	assert.Equal(t, 1, s.srv.Count(apitest.OpCreate), "Второй запрос не отправлялся")

	gate.Release()
	first := <-done
	require.True(t, first.OK())
	assert.Len(t, s.srv.Backups(), 1)
	assert.Len(t, s.rec.notified, 1, "Отклоненный вызов не уведомляет")
}

func TestIndependentOperationsRunConcurrently(t *testing.T) {
	s := newSetup(t, models.Backup{ID: "bk-a", FilesCount: 4}, models.Backup{ID: "bk-b"})
	gate := s.srv.Block(apitest.OpCreate)

	done := make(chan coordinator.Outcome, 1)
	go func() { done <- s.coord.Create(context.Background(), "") }()
	waitEntered(t, gate)

	restored := s.coord.Restore(context.Background(), "bk-a", true)
	require.True(t, restored.OK())
	deleted := s.coord.Delete(context.Background(), "bk-b")
	require.True(t, deleted.OK())
	assert.True(t, s.coord.State(coordinator.OpCreate).IsPending())

	gate.Release()
	require.True(t, (<-done).OK())
	assert.False(t, s.store.Snapshot().Contains("bk-b"))
}

func TestRestore(t *testing.T) {
	t.Run("Успех без обновления каталога", func(t *testing.T) {
		s := newSetup(t, models.Backup{ID: "bk-a", FilesCount: 12})

		out := s.coord.Restore(context.Background(), "bk-a", true)

		require.True(t, out.OK())
		assert.Equal(t, 12, out.RestoredCount)
		assert.Equal(t, "Backup restored: 12 items restored", out.Message)
		assert.Equal(t, 0, s.srv.Count(apitest.OpList))
		assert.Equal(t, []int{12}, s.rec.restored)
		reqs := s.srv.Requests(apitest.OpRestore)
		require.Len(t, reqs, 1)
		assert.True(t, reqs[0].Restore.Overwrite)
	})

	t.Run("Ошибка с detail", func(t *testing.T) {
		s := newSetup(t)

		out := s.coord.Restore(context.Background(), "missing", true)

		assert.Equal(t, "Backup not found", out.Message)
		assert.Equal(t, coordinator.Failed("Backup not found"), s.coord.State(coordinator.OpRestore))
		assert.Empty(t, s.rec.restored)
	})
}

func TestDelete(t *testing.T) {
	t.Run("Удаленная копия исчезает из каталога", func(t *testing.T) {
		s := newSetup(t, models.Backup{ID: "bk-a"}, models.Backup{ID: "bk-b"})
		require.True(t, s.coord.Refresh(context.Background()).OK())

		out := s.coord.Delete(context.Background(), "bk-a")

		require.True(t, out.OK())
		assert.Equal(t, "Backup deleted successfully", out.Message)
		assert.Equal(t, []string{"bk-b"}, s.store.Snapshot().IDs())
		assert.Equal(t, []string{"bk-a"}, s.rec.deleted)
	})

	t.Run("Ошибка без detail", func(t *testing.T) {
		s := newSetup(t, models.Backup{ID: "bk-a"})
		s.srv.FailNextWith(apitest.OpDelete, apitest.Failure{Status: http.StatusInternalServerError, Body: "oops"})

		out := s.coord.Delete(context.Background(), "bk-a")

		assert.Equal(t, "Failed to delete backup", out.Message)
		assert.Equal(t, 0, s.srv.Count(apitest.OpList))
	})
}

func TestCloseDropsCompletion(t *testing.T) {
	s := newSetup(t)
	gate := s.srv.Block(apitest.OpCreate)

	done := make(chan coordinator.Outcome, 1)
	go func() { done <- s.coord.Create(context.Background(), "") }()
	waitEntered(t, gate)

	s.coord.Close()
	gate.Release()
	out := <-done

	require.ErrorIs(t, out.Err, coordinator.ErrClosed)
	assert.Equal(t, 0, s.rec.calls(), "Hooks не вызываются")
	assert.Empty(t, s.rec.notified)
	assert.Equal(t, 0, s.srv.Count(apitest.OpList), "Обновления после закрытия нет")
	assert.True(t, s.coord.Closed())

	again := s.coord.Delete(context.Background(), "bk-0001")
	require.ErrorIs(t, again.Err, coordinator.ErrClosed)
	assert.Equal(t, 0, s.srv.Count(apitest.OpDelete))
}

// mockBackend - мок для Backend.
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateBackup(ctx context.Context, description string) (*models.CreateBackupResponse, error) {
	args := m.Called(ctx, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateBackupResponse), args.Error(1) //nolint:errcheck // Тип задан в тесте
}

func (m *mockBackend) RestoreBackup(
	ctx context.Context,
	backupID string,
	overwrite bool,
) (*models.RestoreBackupResponse, error) {
	args := m.Called(ctx, backupID, overwrite)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RestoreBackupResponse), args.Error(1) //nolint:errcheck // Тип задан в тесте
}

func (m *mockBackend) DeleteBackup(ctx context.Context, backupID string) error {
	return m.Called(ctx, backupID).Error(0)
}

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestTransportErrorUsesFallback(t *testing.T) {
	backend := new(mockBackend)
	refresher := new(mockRefresher)
	backend.On("DeleteBackup", mock.Anything, "bk-a").
		Return(&api.TransportError{Err: context.DeadlineExceeded}).Once()
	coord := coordinator.New(backend, refresher)

	out := coord.Delete(context.Background(), "bk-a")

	assert.Equal(t, "Failed to delete backup", out.Message)
	require.ErrorIs(t, out.Err, context.DeadlineExceeded)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything)
	backend.AssertExpectations(t)
}

func TestRestorePassesOverwriteThrough(t *testing.T) {
	backend := new(mockBackend)
	backend.On("RestoreBackup", mock.Anything, "bk-a", false).
		Return(&models.RestoreBackupResponse{RestoredCount: 0}, nil).Once()
	coord := coordinator.New(backend, new(mockRefresher))

	out := coord.Restore(context.Background(), "bk-a", false)

	require.True(t, out.OK())
	assert.Equal(t, "Backup restored: 0 items restored", out.Message)
	backend.AssertExpectations(t)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", coordinator.Idle().String())
	assert.Equal(t, "pending", coordinator.Pending().String())
	assert.Equal(t, "failed(Disk full)", coordinator.Failed("Disk full").String())
	_, failed := coordinator.Pending().Err()
	assert.False(t, failed)
}
