package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

// CREATE - SUCCESS
func TestImageService_Create_OK(t *testing.T) {
	ctx := context.Background()

	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			require.Equal(t, "http://minio/images/fileupload/abc.jpg", img.URL)
			require.Equal(t, "fileupload/abc.jpg", img.AssetID)
			img.ID = uuid.New()
			return nil
		},
	}

	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			require.Equal(t, "fileupload", folder)
			require.Equal(t, ".jpg", ext)
			return model.Asset{ID: "fileupload/abc.jpg", URL: "http://minio/images/fileupload/abc.jpg"}, nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	img, err := svc.Create(ctx, validCreateData())
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Equal(t, "fileupload/abc.jpg", img.AssetID)
	require.NotEmpty(t, img.ID)
}

// CREATE - VALIDATION FAIL - никаких удаленных вызовов
func TestImageService_Create_InvalidInput(t *testing.T) {
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			t.Fatal("storage must not be called on invalid input")
			return model.Asset{}, nil
		},
	}

	svc := newTestService(&mockRepo{}, &mockPublisher{}, storage)

	_, err := svc.Create(context.Background(), &model.ImageCreateData{})
	require.ErrorIs(t, err, model.ErrEmptySource)

	data := validCreateData()
	data.ContentType = "text/plain"
	_, err = svc.Create(context.Background(), data)
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

// CREATE - STORAGE UPLOAD FAIL - записи нет
func TestImageService_Create_StorageError(t *testing.T) {
	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			t.Fatal("repo must not be called when upload failed")
			return nil
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			return model.Asset{}, errors.New("storage is down")
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	_, err := svc.Create(context.Background(), validCreateData())
	require.ErrorIs(t, err, model.ErrCommon500)
}

// CREATE - DB FAIL AFTER UPLOAD - отдельная ошибка + событие аудита
func TestImageService_Create_UploadedUnrecorded(t *testing.T) {
	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			return errors.New("db is down")
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			return model.Asset{ID: "fileupload/orphan.jpg", URL: "http://minio/images/fileupload/orphan.jpg"}, nil
		},
	}

	var published model.AuditEvent
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NoError(t, json.Unmarshal(v, &published))
			return nil
		},
	}

	svc := newTestService(repo, pub, storage)

	_, err := svc.Create(context.Background(), validCreateData())
	require.ErrorIs(t, err, model.ErrUploadedUnrecorded)
	require.Equal(t, model.KindOrphanedAsset, published.Kind)
	require.Equal(t, "create", published.Operation)
	require.Equal(t, "fileupload/orphan.jpg", published.AssetID)
}

// CREATE - настоящая картинка получает размеры
func TestImageService_Create_ProbesDimensions(t *testing.T) {
	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			require.NotNil(t, img.Width)
			require.NotNil(t, img.Height)
			require.Equal(t, 3, *img.Width)
			require.Equal(t, 2, *img.Height)
			return nil
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			// файл отмотан обратно после пробы - тело должно читаться целиком
			raw, err := io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, size, int64(len(raw)))
			return model.Asset{ID: "a", URL: "u"}, nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	pngBytes := encodeTestPNG(t, 3, 2)
	data := &model.ImageCreateData{
		File:        newFakeFile(string(pngBytes)),
		ContentType: model.PNG,
		Size:        int64(len(pngBytes)),
	}

	_, err := svc.Create(context.Background(), data)
	require.NoError(t, err)
}

// GET - SUCCESS
func TestImageService_Get_OK(t *testing.T) {
	id := uuid.New().String()

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Image, error) {
			return &model.Image{ID: uuid.MustParse(uid)}, nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, &mockStorage{})

	img, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, img.ID.String())
}

// GET - FAIL - BAD ID
func TestImageService_Get_InvalidID(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockPublisher{}, &mockStorage{})
	_, err := svc.Get(context.Background(), "bad-id")
	require.ErrorIs(t, err, model.ErrIncorrectID)
}

// GET - FAIL - NOT FOUND
func TestImageService_Get_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return nil, model.ErrImageNotFound
		},
	}

	svc := newTestService(repo, &mockPublisher{}, &mockStorage{})
	_, err := svc.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// GETLIST - SUCCESS
func TestImageService_GetList_OK(t *testing.T) {
	repo := &mockRepo{
		getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Image, error) {
			require.Equal(t, 1, req.Page)
			require.Equal(t, 30, req.Limit)
			require.Equal(t, "created_at", req.Sort)
			require.Equal(t, "DESC", req.Order)
			return []model.Image{{ID: uuid.New()}}, nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, &mockStorage{})

	res, err := svc.GetList(context.Background(), &model.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res, 1)
}

// REPLACE - SUCCESS - порядок шагов: get -> upload -> destroy(старый) -> update
func TestImageService_Replace_OK(t *testing.T) {
	id := uuid.New().String()
	var steps []string

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Image, error) {
			steps = append(steps, "get")
			return &model.Image{ID: uuid.MustParse(uid), URL: "http://minio/images/old.jpg", AssetID: "fileupload/old.jpg"}, nil
		},
		updateAssetFn: func(ctx context.Context, uid string, url string, assetID string, width, height *int) (*model.Image, error) {
			steps = append(steps, "update")
			require.Equal(t, "fileupload/new.jpg", assetID)
			require.Equal(t, "http://minio/images/new.jpg", url)
			return &model.Image{ID: uuid.MustParse(uid), URL: url, AssetID: assetID}, nil
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			steps = append(steps, "upload")
			return model.Asset{ID: "fileupload/new.jpg", URL: "http://minio/images/new.jpg"}, nil
		},
		destroyFn: func(ctx context.Context, assetID string) error {
			steps = append(steps, "destroy")
			require.Equal(t, "fileupload/old.jpg", assetID)
			return nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	res, err := svc.Replace(context.Background(), id, validCreateData())
	require.NoError(t, err)
	require.Equal(t, "fileupload/new.jpg", res.AssetID)
	require.Equal(t, []string{"get", "upload", "destroy", "update"}, steps)
}

// REPLACE - NOT FOUND - ни одного обращения к хранилищу
func TestImageService_Replace_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return nil, model.ErrImageNotFound
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			t.Fatal("storage must not be called for missing record")
			return model.Asset{}, nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	_, err := svc.Replace(context.Background(), uuid.New().String(), validCreateData())
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// REPLACE - UPLOAD FAIL - старая пара нетронута, операция повторяема
func TestImageService_Replace_UploadFail(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return &model.Image{ID: uuid.MustParse(id), AssetID: "fileupload/old.jpg"}, nil
		},
		updateAssetFn: func(ctx context.Context, id string, url string, assetID string, width, height *int) (*model.Image, error) {
			t.Fatal("record must not be updated when upload failed")
			return nil, nil
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			return model.Asset{}, errors.New("storage is down")
		},
		destroyFn: func(ctx context.Context, assetID string) error {
			t.Fatal("old asset must survive a failed upload")
			return nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	_, err := svc.Replace(context.Background(), uuid.New().String(), validCreateData())
	require.ErrorIs(t, err, model.ErrCommon500)
}

// REPLACE - DESTROY FAIL - операция доезжает до конца, утекший объект уходит в аудит
func TestImageService_Replace_DestroyFailContinues(t *testing.T) {
	updated := false
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return &model.Image{ID: uuid.MustParse(id), AssetID: "fileupload/old.jpg"}, nil
		},
		updateAssetFn: func(ctx context.Context, id string, url string, assetID string, width, height *int) (*model.Image, error) {
			updated = true
			return &model.Image{ID: uuid.MustParse(id), URL: url, AssetID: assetID}, nil
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			return model.Asset{ID: "fileupload/new.jpg", URL: "http://minio/images/new.jpg"}, nil
		},
		destroyFn: func(ctx context.Context, assetID string) error {
			return errors.New("minio hiccup")
		},
	}

	var published model.AuditEvent
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NoError(t, json.Unmarshal(v, &published))
			return nil
		},
	}

	svc := newTestService(repo, pub, storage)

	res, err := svc.Replace(context.Background(), uuid.New().String(), validCreateData())
	require.NoError(t, err)
	require.True(t, updated)
	require.Equal(t, "fileupload/new.jpg", res.AssetID)
	require.Equal(t, model.KindOrphanedAsset, published.Kind)
	require.Equal(t, "fileupload/old.jpg", published.AssetID)
}

// REPLACE - UPDATE FAIL - новый объект остался сиротой
func TestImageService_Replace_UpdateFail(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return &model.Image{ID: uuid.MustParse(id), AssetID: "fileupload/old.jpg"}, nil
		},
		updateAssetFn: func(ctx context.Context, id string, url string, assetID string, width, height *int) (*model.Image, error) {
			return nil, errors.New("db is down")
		},
	}
	storage := &mockStorage{
		uploadFn: func(ctx context.Context, folder, ext string, size int64, ct string, r io.Reader) (model.Asset, error) {
			return model.Asset{ID: "fileupload/new.jpg", URL: "http://minio/images/new.jpg"}, nil
		},
		destroyFn: func(ctx context.Context, assetID string) error {
			return nil
		},
	}

	var published model.AuditEvent
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NoError(t, json.Unmarshal(v, &published))
			return nil
		},
	}

	svc := newTestService(repo, pub, storage)

	_, err := svc.Replace(context.Background(), uuid.New().String(), validCreateData())
	require.ErrorIs(t, err, model.ErrUploadedUnrecorded)
	require.Equal(t, model.KindOrphanedAsset, published.Kind)
	require.Equal(t, "fileupload/new.jpg", published.AssetID)
}

// DELETE - SUCCESS - сначала объект, потом запись
func TestImageService_Delete_OK(t *testing.T) {
	id := uuid.New().String()
	var steps []string

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Image, error) {
			steps = append(steps, "get")
			return &model.Image{ID: uuid.MustParse(uid), AssetID: "fileupload/gone.jpg"}, nil
		},
		deleteFn: func(ctx context.Context, uid string) error {
			steps = append(steps, "delete")
			return nil
		},
	}
	storage := &mockStorage{
		destroyFn: func(ctx context.Context, assetID string) error {
			steps = append(steps, "destroy")
			require.Equal(t, "fileupload/gone.jpg", assetID)
			return nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)

	res, err := svc.Delete(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "fileupload/gone.jpg", res.AssetID)
	require.Equal(t, []string{"get", "destroy", "delete"}, steps)
}

// DELETE - NOT FOUND
func TestImageService_Delete_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return nil, model.ErrImageNotFound
		},
	}
	storage := &mockStorage{
		destroyFn: func(ctx context.Context, assetID string) error {
			t.Fatal("storage must not be called for missing record")
			return nil
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)
	_, err := svc.Delete(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// DELETE - DESTROY FAIL - запись не трогаем
func TestImageService_Delete_DestroyFail(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return &model.Image{ID: uuid.MustParse(id), AssetID: "fileupload/stuck.jpg"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			t.Fatal("record must not be deleted when asset destroy failed")
			return nil
		},
	}
	storage := &mockStorage{
		destroyFn: func(ctx context.Context, assetID string) error {
			return errors.New("minio down")
		},
	}

	svc := newTestService(repo, &mockPublisher{}, storage)
	_, err := svc.Delete(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrCommon500)
}

// DELETE - DB FAIL AFTER DESTROY - повисшая запись уходит в аудит
func TestImageService_Delete_DanglingRecord(t *testing.T) {
	id := uuid.New().String()

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Image, error) {
			return &model.Image{ID: uuid.MustParse(uid), AssetID: "fileupload/gone.jpg"}, nil
		},
		deleteFn: func(ctx context.Context, uid string) error {
			return errors.New("db is down")
		},
	}
	storage := &mockStorage{
		destroyFn: func(ctx context.Context, assetID string) error {
			return nil
		},
	}

	var published model.AuditEvent
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NoError(t, json.Unmarshal(v, &published))
			return nil
		},
	}

	svc := newTestService(repo, pub, storage)

	_, err := svc.Delete(context.Background(), id)
	require.ErrorIs(t, err, model.ErrCommon500)
	require.Equal(t, model.KindDanglingRecord, published.Kind)
	require.Equal(t, id, published.RecordID)
}

// LOCKRECORD - вторая мутация той же записи ждет первую
func TestImageService_LockRecord_Serializes(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockPublisher{}, &mockStorage{})
	id := uuid.New().String()

	unlock := svc.lockRecord(id)

	acquired := make(chan struct{})
	go func() {
		second := svc.lockRecord(id)
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after unlock")
	}
}

// хелпер для сборки сервиса с тестовыми зависимостями
func newTestService(repo *mockRepo, pub *mockPublisher, strg *mockStorage) ImageService {
	return ImageService{
		repo:      repo,
		publisher: pub,
		storage:   strg,
		folder:    "fileupload",
		opTimeout: time.Second,
		locks:     cmap.New[*sync.Mutex](),
	}
}

// хелпер для создания файла
func newFakeFile(content string) multipart.File {
	return &fakeMultipartFile{
		Reader: bytes.NewReader([]byte(content)),
	}
}

// хелпер для генерации корректного ImageCreateData
func validCreateData() *model.ImageCreateData {
	return &model.ImageCreateData{
		File:        newFakeFile("image-bytes"),
		ContentType: model.JPEG,
		Size:        int64(len("image-bytes")),
	}
}

// хелпер: настоящий PNG заданных размеров
func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}
