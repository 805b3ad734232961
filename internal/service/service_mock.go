package service

import (
	"bytes"
	"context"
	"io"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK REPOSITORY

type mockRepo struct {
	createFn      func(ctx context.Context, img *model.Image) error
	getFn         func(ctx context.Context, id string) (*model.Image, error)
	getListFn     func(ctx context.Context, req *model.ListRequest) ([]model.Image, error)
	updateAssetFn func(ctx context.Context, id string, url string, assetID string, width, height *int) (*model.Image, error)
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockRepo) Create(ctx context.Context, img *model.Image) error {
	return m.createFn(ctx, img)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.Image, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error) {
	return m.getListFn(ctx, req)
}

func (m *mockRepo) UpdateAsset(ctx context.Context, id string, url string, assetID string, width, height *int) (*model.Image, error) {
	return m.updateAssetFn(ctx, id, url, assetID, width, height)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// MOCK STORAGE

type mockStorage struct {
	uploadFn  func(ctx context.Context, folder, ext string, size int64, contentType string, r io.Reader) (model.Asset, error)
	destroyFn func(ctx context.Context, assetID string) error
}

func (m *mockStorage) Upload(ctx context.Context, folder, ext string, size int64, contentType string, r io.Reader) (model.Asset, error) {
	return m.uploadFn(ctx, folder, ext, size, contentType, r)
}

func (m *mockStorage) Destroy(ctx context.Context, assetID string) error {
	return m.destroyFn(ctx, assetID)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}
