// Package service provides business-logic for the app
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/UnendingLoop/ImageHosting/internal/mwlogger"
	"github.com/UnendingLoop/ImageHosting/internal/repository"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

// ImageService держит порядок побочных эффектов между медиа-хранилищем и базой:
// сначала новый объект, потом удаление старого, потом запись в базу.
// Одновременные Replace/Delete по одному id сериализуются помьютексно.
type ImageService struct {
	repo      repository.ImageRepo
	publisher AuditPublisher
	storage   ImageStorage
	folder    string
	opTimeout time.Duration
	locks     cmap.ConcurrentMap[string, *sync.Mutex]
}

func NewImageService(cfg *config.Config, imageRep repository.ImageRepo, pub AuditPublisher, strg ImageStorage) *ImageService {
	folder := cfg.GetString("UPLOAD_FOLDER")
	if folder == "" {
		folder = "fileupload"
	}

	opTimeout := 15 * time.Second
	if raw := cfg.GetString("OP_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			opTimeout = parsed
		}
	}

	return &ImageService{
		repo:      imageRep,
		publisher: pub,
		storage:   strg,
		folder:    folder,
		opTimeout: opTimeout,
		locks:     cmap.New[*sync.Mutex](),
	}
}

// AuditPublisher - контракт для отправки событий о рассинхронизации хранилищ
type AuditPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - контракт для работы с медиа-хранилищем
type ImageStorage interface {
	Upload(ctx context.Context, folder, ext string, size int64, contentType string, r io.Reader) (model.Asset, error)
	Destroy(ctx context.Context, assetID string) error
}

// Стратегия ретрая отправки аудита - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c ImageService) Create(ctx context.Context, imageData *model.ImageCreateData) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// валидация на границе: до первого удаленного вызова
	if err := validateSource(imageData); err != nil {
		return nil, err
	}

	newImage := &model.Image{}
	width, height, err := probeDimensions(imageData.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to rewind upload after probing dimensions")
		return nil, model.ErrCommon500
	}
	newImage.Width = width
	newImage.Height = height

	opCtx, cancel := c.remoteCtx(ctx)
	defer cancel()

	// шаг 1: объект в хранилище
	asset, err := c.storage.Upload(opCtx, c.folder, model.GetImageFileExt[imageData.ContentType], imageData.Size, imageData.ContentType, imageData.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save image in Storage")
		return nil, model.ErrCommon500
	}
	newImage.URL = asset.URL
	newImage.AssetID = asset.ID

	// шаг 2: запись в базу; если он провалился - объект остался сиротой,
	// сообщаем об этом отдельной ошибкой и событием аудита
	if err := c.repo.Create(opCtx, newImage); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Asset %q uploaded but failed to record in DB", asset.ID))
		c.publishAudit(ctx, model.AuditEvent{
			Kind:      model.KindOrphanedAsset,
			Operation: "create",
			AssetID:   asset.ID,
		})
		return nil, model.ErrUploadedUnrecorded
	}

	return newImage, nil
}

func (c ImageService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	opCtx, cancel := c.remoteCtx(ctx)
	defer cancel()

	res, err := c.repo.GetList(opCtx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch all images list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c ImageService) Get(ctx context.Context, id string) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	opCtx, cancel := c.remoteCtx(ctx)
	defer cancel()

	res, err := c.repo.Get(opCtx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return nil, model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch image %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	return res, nil
}

// Replace - меняет объект у существующей записи. Порядок жесткий: новый объект
// загружен -> старый удален -> запись перезаписана. Провал на загрузке оставляет
// старую пару нетронутой, операцию можно спокойно повторять.
func (c ImageService) Replace(ctx context.Context, id string, imageData *model.ImageCreateData) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}
	if err := validateSource(imageData); err != nil {
		return nil, err
	}

	width, height, err := probeDimensions(imageData.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to rewind upload after probing dimensions")
		return nil, model.ErrCommon500
	}

	unlock := c.lockRecord(id)
	defer unlock()

	opCtx, cancel := c.remoteCtx(ctx)
	defer cancel()

	// шаг 1: запись должна существовать
	old, err := c.repo.Get(opCtx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return nil, model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch image %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	// шаг 2: новый объект в хранилище
	asset, err := c.storage.Upload(opCtx, c.folder, model.GetImageFileExt[imageData.ContentType], imageData.Size, imageData.ContentType, imageData.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save new image in Storage")
		return nil, model.ErrCommon500
	}

	// шаг 3: старый объект больше никому не нужен. Провал удаления не ломает
	// инвариант записи - объект просто утек, отдаем его аудиту и едем дальше
	if err := c.storage.Destroy(opCtx, old.AssetID); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to destroy old asset %q during replace", old.AssetID))
		c.publishAudit(ctx, model.AuditEvent{
			Kind:      model.KindOrphanedAsset,
			Operation: "replace",
			RecordID:  id,
			AssetID:   old.AssetID,
		})
	}

	// шаг 4: перезаписываем пару url/asset_id в базе
	updated, err := c.repo.UpdateAsset(opCtx, id, asset.URL, asset.ID, width, height)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("New asset %q uploaded but failed to record in DB", asset.ID))
		c.publishAudit(ctx, model.AuditEvent{
			Kind:      model.KindOrphanedAsset,
			Operation: "replace",
			RecordID:  id,
			AssetID:   asset.ID,
		})
		return nil, model.ErrUploadedUnrecorded
	}

	return updated, nil
}

// Delete - удаляет объект и запись, в этом порядке. Если объект удалить не
// вышло - запись не трогаем, вызов можно повторить. Если после удаления объекта
// не удалилась запись - она повисла, отдаем аудиту и тоже даем повторить:
// повторное Destroy по отсутствующему ключу у минио проходит без ошибки.
func (c ImageService) Delete(ctx context.Context, id string) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	unlock := c.lockRecord(id)
	defer unlock()

	opCtx, cancel := c.remoteCtx(ctx)
	defer cancel()

	res, err := c.repo.Get(opCtx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return nil, model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch image %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	if err := c.storage.Destroy(opCtx, res.AssetID); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to destroy asset %q, record kept", res.AssetID))
		return nil, model.ErrCommon500
	}

	if err := c.repo.Delete(opCtx, id); err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return nil, model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Asset %q destroyed but record %q remains in DB", res.AssetID, id))
			c.publishAudit(ctx, model.AuditEvent{
				Kind:      model.KindDanglingRecord,
				Operation: "delete",
				RecordID:  id,
				AssetID:   res.AssetID,
			})
			return nil, model.ErrCommon500
		}
	}

	c.locks.Remove(id)
	return res, nil
}

// lockRecord - помьютексная сериализация мутаций одной записи
func (c ImageService) lockRecord(id string) func() {
	mu := c.locks.Upsert(id, nil, func(exist bool, valueInMap, _ *sync.Mutex) *sync.Mutex {
		if exist {
			return valueInMap
		}
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}

// remoteCtx - дедлайн на удаленные вызовы одной операции
func (c ImageService) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

// publishAudit - события аудита шлем на свежем контексте: они нужны как раз
// тогда, когда контекст запроса уже мог истечь
func (c ImageService) publishAudit(ctx context.Context, ev model.AuditEvent) {
	logger := mwlogger.LoggerFromContext(ctx)

	ev.At = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}

	if err := c.publisher.SendWithRetry(context.Background(), retryStrategy, []byte(ev.AssetID), payload); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish audit event %q for asset %q", ev.Kind, ev.AssetID))
	}
}
