// Package imgpostgres implements image-metadata CRUD over Postgres
package imgpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

// Create - база сама назначает id и created_at, возвращаем их в запись
func (p PostgresRepo) Create(ctx context.Context, n *model.Image) error {
	query := `INSERT INTO images (image_url, asset_id, width, height)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at, updated_at`

	return p.DB.QueryRowContext(ctx, query, n.URL, n.AssetID, n.Width, n.Height).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Image, error) {
	query := `SELECT id, image_url, asset_id, width, height, created_at, updated_at
	FROM images
	WHERE id = $1`
	var image model.Image

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&image.ID,
		&image.URL,
		&image.AssetID,
		&image.Width,
		&image.Height,
		&image.CreatedAt,
		&image.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrImageNotFound
		default:
			return nil, err // 500
		}
	}
	return &image, nil
}

func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error) {
	query := fmt.Sprintf(`SELECT id, image_url, asset_id, width, height, created_at, updated_at
	FROM images
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	images := make([]model.Image, 0, req.Limit)
	for rows.Next() {
		var image model.Image
		if err := rows.Scan(&image.ID,
			&image.URL,
			&image.AssetID,
			&image.Width,
			&image.Height,
			&image.CreatedAt,
			&image.UpdatedAt); err != nil {
			return nil, err
		}
		images = append(images, image)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return images, nil
}

// UpdateAsset - перезаписывает ссылку и asset_id одной парой, возвращает обновленную запись
func (p PostgresRepo) UpdateAsset(ctx context.Context, id string, url string, assetID string, width, height *int) (*model.Image, error) {
	query := `UPDATE images
	SET image_url = $1, asset_id = $2, width = $3, height = $4, updated_at = now()
	WHERE id = $5
	RETURNING id, image_url, asset_id, width, height, created_at, updated_at`

	var image model.Image
	err := p.DB.QueryRowContext(ctx, query, url, assetID, width, height, id).Scan(&image.ID,
		&image.URL,
		&image.AssetID,
		&image.Width,
		&image.Height,
		&image.CreatedAt,
		&image.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrImageNotFound // 404
		default:
			return nil, err // 500
		}
	}
	return &image, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images
	WHERE id = $1
	RETURNING id`

	var deleted string
	if err := p.DB.QueryRowContext(ctx, query, id).Scan(&deleted); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.ErrImageNotFound // 404
		default:
			return err // 500
		}
	}
	return nil
}
