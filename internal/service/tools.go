package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/disintegration/imaging"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}
	if req.Sort == "" {
		req.Sort = model.ByCreated
	}
	if req.Order == "" {
		req.Order = model.OrderDESC
	}

	// Валидируем непустое поле типа сортировки
	req.Sort = strings.ToLower(strings.TrimSpace(req.Sort))
	switch {
	case strings.Contains(req.Sort, model.ByCreated):
		req.Sort = "created_at"
	case strings.Contains(req.Sort, model.ByID):
		req.Sort = "id"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валидируем непустой порядок
	req.Order = strings.ToLower(strings.TrimSpace(req.Order))
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	case strings.Contains(req.Order, model.OrderDESC):
		req.Order = "DESC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

// validateSource - граница сервиса: непустой файл с заявленным картиночным
// content-type. Глубже содержимое не проверяем - так делал и оригинал
func validateSource(raw *model.ImageCreateData) error {
	if raw.File == nil || raw.Size <= 0 {
		return model.ErrEmptySource
	}
	if !model.InImageTypeMap[raw.ContentType] {
		return model.ErrUnsupportedFormat
	}
	return nil
}

// probeDimensions - пытается снять ширину/высоту с загружаемого файла.
// Недекодируемый файл - не ошибка, просто размеры не записываем.
// Ошибка возможна только если файл не отмотался назад после чтения.
func probeDimensions(f multipart.File) (*int, *int, error) {
	img, decErr := imaging.Decode(f)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("failed to rewind multipart file: %w", err)
	}

	if decErr != nil {
		return nil, nil, nil
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	return &width, &height, nil
}
