// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type ImageHandler struct {
	service ImageService
}

type ImageService interface {
	Create(ctx context.Context, newImage *model.ImageCreateData) (*model.Image, error)
	Get(ctx context.Context, id string) (*model.Image, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error)
	Replace(ctx context.Context, id string, newImage *model.ImageCreateData) (*model.Image, error) // заменить объект у существующей записи
	Delete(ctx context.Context, id string) (*model.Image, error)                                   // удалить как в базе, так и в minio
}

func NewImageHandler(svc ImageService) *ImageHandler {
	return &ImageHandler{
		service: svc,
	}
}

func (h ImageHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h ImageHandler) Create(ctx *ginext.Context) {
	imageData, ok := parseImageForm(ctx)
	if !ok {
		return
	}
	defer closeFileFlow(imageData.File)

	if _, err := h.service.Create(ctx.Request.Context(), imageData); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, map[string]string{"message": "Image uploaded successfully"})
}

func (h ImageHandler) GetAllImages(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) GetOneImage(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.Get(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) Replace(ctx *ginext.Context) {
	id := ctx.Param("id")

	imageData, ok := parseImageForm(ctx)
	if !ok {
		return
	}
	defer closeFileFlow(imageData.File)

	res, err := h.service.Replace(ctx.Request.Context(), id, imageData)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string]any{"message": "Image updated successfully", "image": res})
}

func (h ImageHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.Delete(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string]any{"message": "Image deleted successfully", "image": res})
}
