package transport

import (
	"context"

	"github.com/UnendingLoop/ImageHosting/internal/model"
)

type mockImageService struct {
	createFn  func(ctx context.Context, data *model.ImageCreateData) (*model.Image, error)
	getFn     func(ctx context.Context, id string) (*model.Image, error)
	getListFn func(ctx context.Context, req *model.ListRequest) ([]model.Image, error)
	replaceFn func(ctx context.Context, id string, data *model.ImageCreateData) (*model.Image, error)
	deleteFn  func(ctx context.Context, id string) (*model.Image, error)
}

func (m *mockImageService) Create(ctx context.Context, data *model.ImageCreateData) (*model.Image, error) {
	return m.createFn(ctx, data)
}

func (m *mockImageService) Get(ctx context.Context, id string) (*model.Image, error) {
	return m.getFn(ctx, id)
}

func (m *mockImageService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error) {
	return m.getListFn(ctx, req)
}

func (m *mockImageService) Replace(ctx context.Context, id string, data *model.ImageCreateData) (*model.Image, error) {
	return m.replaceFn(ctx, id, data)
}

func (m *mockImageService) Delete(ctx context.Context, id string) (*model.Image, error) {
	return m.deleteFn(ctx, id)
}
