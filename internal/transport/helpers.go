package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/wb-go/wbf/ginext"
)

// parseImageForm - достает обязательное мультипарт-поле image; без файла
// запрос отклоняется здесь же, до единого вызова сервиса
func parseImageForm(ctx *ginext.Context) (*model.ImageCreateData, bool) {
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return nil, false
	}

	return &model.ImageCreateData{
		File:        imageFile,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
	}, true
}

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrUploadedUnrecorded):
		return 500
	case errors.Is(err, model.ErrImageNotFound):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrUnsupportedFormat):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
