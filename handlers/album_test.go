package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eliabeart/gallerybackend/cache"
	"github.com/eliabeart/gallerybackend/media"
	"github.com/eliabeart/gallerybackend/models"
	"github.com/eliabeart/gallerybackend/repository"
	"github.com/eliabeart/gallerybackend/workers"
)

// missClient is a cache transport where every read misses and every write is
// accepted and discarded, so handlers always hit the authoritative store
type missClient struct{}

func (missClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult("", redis.Nil)
}
func (missClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}
func (missClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	return redis.NewMapStringStringResult(map[string]string{}, nil)
}
func (missClient) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	return redis.NewIntResult(1, nil)
}
func (missClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}
func (missClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(keys)), nil)
}

var _ cache.Client = missClient{}

type recordingTaskClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *recordingTaskClient) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(c.tasks)), Type: task.Type()}, nil
}

func (c *recordingTaskClient) payloads(t *testing.T) []workers.IngestImagePayload {
	t.Helper()
	out := make([]workers.IngestImagePayload, 0, len(c.tasks))
	for _, task := range c.tasks {
		var p workers.IngestImagePayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		out = append(out, p)
	}
	return out
}

type stubInspector struct {
	inFlight []uint
}

func (s *stubInspector) ListActiveTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	infos := make([]*asynq.TaskInfo, 0, len(s.inFlight))
	for _, id := range s.inFlight {
		payload, _ := json.Marshal(workers.IngestImagePayload{AlbumID: id})
		infos = append(infos, &asynq.TaskInfo{Type: workers.TaskTypeIngestImage, Payload: payload})
	}
	return infos, nil
}

func (s *stubInspector) ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

type testEnv struct {
	albums  *repository.AlbumRepository
	images  *repository.ImageRepository
	users   *repository.UserRepository
	storage *media.LocalStorage
	tasks   *recordingTaskClient
	insp    *stubInspector
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Album{}, &models.Image{}, &models.User{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM images")
		db.Exec("DELETE FROM albums")
		db.Exec("DELETE FROM users")
	})

	storage, err := media.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		albums:  repository.NewAlbumRepository(db),
		images:  repository.NewImageRepository(db),
		users:   repository.NewUserRepository(db),
		storage: storage,
		tasks:   &recordingTaskClient{},
		insp:    &stubInspector{},
	}

	cacheStore := cache.NewStore(missClient{}, env.albums, env.images, time.Minute)
	enqueuer := workers.NewEnqueuer(env.tasks, "ingest")
	status := workers.NewStatusTracker(env.insp, "ingest")

	albumHandler := &AlbumHandler{
		AlbumRepo: env.albums,
		ImageRepo: env.images,
		Cache:     cacheStore,
		Enqueuer:  enqueuer,
		Status:    status,
		Storage:   storage,
	}
	imageHandler := &ImageHandler{
		AlbumRepo: env.albums,
		ImageRepo: env.images,
		Cache:     cacheStore,
		Enqueuer:  enqueuer,
		Storage:   storage,
	}

	r := chi.NewRouter()
	r.Route("/api/albums", func(r chi.Router) {
		r.Get("/", albumHandler.ListPublicAlbums)
		r.Post("/", albumHandler.CreateAlbum)
		r.Get("/{album_id}", albumHandler.GetAlbum)
		r.Delete("/{album_id}", albumHandler.DeleteAlbum)
		r.Patch("/{album_id}/cover/{image_name}", albumHandler.SetCoverImage)
		r.Post("/{album_id}/resync", albumHandler.ResyncAlbum)
		r.Post("/{album_id}/images", imageHandler.UploadImage)
	})
	r.Route("/api/images", func(r chi.Router) {
		r.Get("/random", imageHandler.GetRandomImage)
		r.Get("/{album_id}", imageHandler.ListAlbumImages)
		r.Get("/{album_id}/{image_name}", imageHandler.GetImageFile)
		r.Delete("/{album_id}/{image_name}", imageHandler.DeleteImage)
	})
	env.router = r
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (env *testEnv) seedAlbum(t *testing.T, name string, public bool) *models.Album {
	t.Helper()
	album := &models.Album{Name: name, IsPublic: public}
	require.NoError(t, env.albums.Create(album))
	return album
}

func (env *testEnv) seedImage(t *testing.T, albumID uint, name string) *models.Image {
	t.Helper()
	img := &models.Image{Name: name, AlbumID: albumID, PerceptualHash: "abcd", Width: 10, Height: 10}
	require.NoError(t, env.images.Create(img))
	return img
}

func TestCreateAlbum(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/albums", map[string]interface{}{
		"name": "trip", "description": "holiday", "is_public": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	album, err := env.albums.GetByName("trip")
	require.NoError(t, err)
	assert.True(t, album.IsPublic)
	assert.DirExists(t, mustDir(t, env.storage, "trip"))
	assert.Empty(t, env.tasks.tasks, "empty directory queues nothing")
}

func mustDir(t *testing.T, storage *media.LocalStorage, album string) string {
	t.Helper()
	path, err := storage.FullPath(album, "")
	require.NoError(t, err)
	return path
}

func TestCreateAlbumScansExistingDirectory(t *testing.T) {
	env := newTestEnv(t)

	// files already on disk before the album row exists
	for _, name := range []string{"IMG_10.jpg", "IMG_2.jpg", "notes.txt"} {
		_, err := env.storage.Save("trip", name, bytes.NewReader([]byte("x")))
		require.NoError(t, err)
	}

	rec := env.do(t, http.MethodPost, "/api/albums", map[string]interface{}{"name": "trip"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	payloads := env.tasks.payloads(t)
	require.Len(t, payloads, 2, "non-raster files are skipped")
	assert.Equal(t, "IMG_2", payloads[0].ImageName, "natural order, not lexicographic")
	assert.Equal(t, "IMG_10", payloads[1].ImageName)
	assert.NotEmpty(t, payloads[0].SourcePath)
	assert.Empty(t, payloads[0].Data, "directory scans reference files, not bytes")

	album, err := env.albums.GetByName("trip")
	require.NoError(t, err)
	require.NotNil(t, album.CoverImageName)
	assert.Equal(t, "IMG_2", *album.CoverImageName)
}

func TestCreateAlbumValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/albums", map[string]interface{}{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/albums", map[string]interface{}{"name": "a/b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/albums", map[string]interface{}{"name": ".."})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAlbumDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.seedAlbum(t, "trip", true)

	rec := env.do(t, http.MethodPost, "/api/albums", map[string]interface{}{"name": "trip"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAlbum(t *testing.T) {
	env := newTestEnv(t)
	album := env.seedAlbum(t, "trip", true)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/albums/%d", album.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "trip", body["name"])
	assert.Equal(t, true, body["is_public"])

	rec = env.do(t, http.MethodGet, "/api/albums/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/albums/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPublicAlbumsHidesConvergingAlbums(t *testing.T) {
	env := newTestEnv(t)
	ready := env.seedAlbum(t, "ready", true)
	converging := env.seedAlbum(t, "converging", true)
	env.seedAlbum(t, "private", false)
	env.insp.inFlight = []uint{converging.ID}

	rec := env.do(t, http.MethodGet, "/api/albums", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Albums []models.Album `json:"albums"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Albums, 1)
	assert.Equal(t, ready.ID, body.Albums[0].ID)
}

func TestDeleteAlbum(t *testing.T) {
	env := newTestEnv(t)
	album := env.seedAlbum(t, "trip", true)
	env.seedImage(t, album.ID, "a")

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/albums/%d", album.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.albums.GetByID(album.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = env.images.GetByNameAndAlbumID("a", album.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/albums/%d", album.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetCoverImage(t *testing.T) {
	env := newTestEnv(t)
	album := env.seedAlbum(t, "trip", true)
	env.seedImage(t, album.ID, "sunset")

	rec := env.do(t, http.MethodPatch, fmt.Sprintf("/api/albums/%d/cover/sunset", album.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.albums.GetByID(album.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CoverImageName)
	assert.Equal(t, "sunset", *got.CoverImageName)
}

func TestSetCoverImageRejectsUnknownImage(t *testing.T) {
	env := newTestEnv(t)
	album := env.seedAlbum(t, "trip", true)

	rec := env.do(t, http.MethodPatch, fmt.Sprintf("/api/albums/%d/cover/ghost", album.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	got, err := env.albums.GetByID(album.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CoverImageName, "cover reference never points at a missing image")
}

func TestResyncAlbum(t *testing.T) {
	env := newTestEnv(t)
	album := env.seedAlbum(t, "trip", true)
	env.seedImage(t, album.ID, "recorded")
	env.seedImage(t, album.ID, "orphan")

	// on disk: recorded (has a row), fresh (no row); orphan has no file
	for _, name := range []string{"recorded.jpg", "fresh.jpg"} {
		_, err := env.storage.Save("trip", name, bytes.NewReader([]byte("x")))
		require.NoError(t, err)
	}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/albums/%d/resync", album.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["removed_rows"])

	payloads := env.tasks.payloads(t)
	require.Len(t, payloads, 1, "only the unrecorded file is enqueued")
	assert.Equal(t, "fresh", payloads[0].ImageName)

	_, err := env.images.GetByNameAndAlbumID("orphan", album.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "rows without files are purged")
	_, err = env.images.GetByNameAndAlbumID("recorded", album.ID)
	assert.NoError(t, err)
}

func TestResyncAlbumNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/albums/424242/resync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
