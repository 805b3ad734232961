package main

import (
	"context"

	"github.com/UnendingLoop/ImageHosting/internal/model"
)

type ImageAPIService interface {
	Create(ctx context.Context, newImage *model.ImageCreateData) (*model.Image, error)
	Get(ctx context.Context, id string) (*model.Image, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error)
	Replace(ctx context.Context, id string, newImage *model.ImageCreateData) (*model.Image, error)
	Delete(ctx context.Context, id string) (*model.Image, error)
}
