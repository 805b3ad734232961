// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
)

// Image - метаданные одной загруженной картинки. URL и AssetID всегда
// указывают на один и тот же живой объект в медиа-хранилище.
type Image struct {
	ID        uuid.UUID  `json:"id"`
	URL       string     `json:"image_url"`
	AssetID   string     `json:"asset_id"`
	Width     *int       `json:"width,omitempty"`
	Height    *int       `json:"height,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Asset - ответ медиа-хранилища на загрузку
type Asset struct {
	ID  string
	URL string
}

//---------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByID      = "id"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

type ImageCreateData struct {
	File        multipart.File
	ContentType string
	Size        int64
}

//-------------------

// AuditEvent - публикуется в кафку, когда между хранилищем и базой
// образуется расхождение, которое сервис сам не чинит
type AuditEvent struct {
	Kind      string    `json:"kind"`
	Operation string    `json:"operation"`
	RecordID  string    `json:"record_id,omitempty"`
	AssetID   string    `json:"asset_id"`
	At        time.Time `json:"at"`
}

const (
	KindOrphanedAsset  = "orphaned_asset"  // объект в хранилище есть, записи в базе нет
	KindDanglingRecord = "dangling_record" // запись в базе есть, объекта в хранилище нет
)

// ------------------

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later")                  // 500
	ErrIncorrectQuery     error = errors.New("incorrect query parameters")                             // 400
	ErrIncorrectID        error = errors.New("incorrect image ID")                                     // 400
	ErrImageNotFound      error = errors.New("specified image ID doesn't exist")                       // 404
	ErrEmptySource        error = errors.New("empty/incorrect image provided")                         // 400
	ErrUnsupportedFormat  error = errors.New("unsupported image format")                               // 400
	ErrUploadedUnrecorded error = errors.New("image uploaded but not recorded - retry or contact ops") // 500
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
}
