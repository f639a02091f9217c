package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrImageNotFound = errors.New("image not found")

// Image is one processed source with the URLs of its stored variants.
type Image struct {
	ID              int64   `json:"id"`
	SourceName      string  `json:"sourceName"`
	Color           string  `json:"color"`
	ContentType     string  `json:"contentType"`
	ThumbnailURL    string  `json:"thumbnailUrl"`
	MediumURL       string  `json:"mediumUrl"`
	OriginalURL     string  `json:"originalUrl"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	OriginalBytes   int64   `json:"originalBytes"`
	ThumbnailBytes  int64   `json:"thumbnailBytes"`
	MediumBytes     int64   `json:"mediumBytes"`
	OptimizedBytes  int64   `json:"optimizedBytes"`
	SavedPercentage int32   `json:"savedPercentage"`
	Ratio           float64 `json:"ratio"`
	CreatedAt       string  `json:"createdAt"`
}

const imageColumns = `id, source_name, color, content_type, thumbnail_url, medium_url, original_url,
	width, height, original_bytes, thumbnail_bytes, medium_bytes, optimized_bytes,
	saved_percentage, ratio, created_at`

// Add stores img and returns it as persisted (with ID and CreatedAt).
func (c *Catalog) Add(ctx context.Context, img Image) (Image, error) {
	if strings.TrimSpace(img.SourceName) == "" {
		return Image{}, errors.New("source name is required")
	}
	if strings.TrimSpace(img.Color) == "" {
		return Image{}, errors.New("color is required")
	}

	result, err := c.db.ExecContext(
		ctx,
		`INSERT INTO images(source_name, color, content_type, thumbnail_url, medium_url, original_url,
			width, height, original_bytes, thumbnail_bytes, medium_bytes, optimized_bytes,
			saved_percentage, ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.SourceName, img.Color, img.ContentType, img.ThumbnailURL, img.MediumURL, img.OriginalURL,
		img.Width, img.Height, img.OriginalBytes, img.ThumbnailBytes, img.MediumBytes, img.OptimizedBytes,
		img.SavedPercentage, img.Ratio,
	)
	if err != nil {
		return Image{}, fmt.Errorf("insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Image{}, fmt.Errorf("read image id: %w", err)
	}

	return c.Get(ctx, id)
}

// Get loads a single image by ID.
func (c *Catalog) Get(ctx context.Context, id int64) (Image, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)

	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Image{}, ErrImageNotFound
		}
		return Image{}, fmt.Errorf("get image %d: %w", id, err)
	}

	return img, nil
}

// Has reports whether a source with this name and original size was already
// cataloged.
func (c *Catalog) Has(ctx context.Context, sourceName string, originalBytes int64) (bool, error) {
	var found int
	err := c.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM images WHERE source_name = ? AND original_bytes = ?",
		sourceName, originalBytes,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", sourceName, err)
	}
	return found > 0, nil
}

// List returns the newest images first, optionally only those of one color.
// A limit of zero or less returns everything.
func (c *Catalog) List(ctx context.Context, color string, limit int) ([]Image, error) {
	query := "SELECT " + imageColumns + " FROM images"
	args := []any{}

	color = strings.ToLower(strings.TrimSpace(color))
	if color != "" {
		query += " WHERE color = ?"
		args = append(args, color)
	}

	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}

	return images, nil
}

// CountByColor reports how many images are filed under each color.
func (c *Catalog) CountByColor(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT color, COUNT(1) FROM images GROUP BY color")
	if err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var color string
		var count int
		if err := rows.Scan(&color, &count); err != nil {
			return nil, fmt.Errorf("scan color count: %w", err)
		}
		counts[color] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate color counts: %w", err)
	}

	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (Image, error) {
	var img Image
	err := s.Scan(
		&img.ID, &img.SourceName, &img.Color, &img.ContentType,
		&img.ThumbnailURL, &img.MediumURL, &img.OriginalURL,
		&img.Width, &img.Height,
		&img.OriginalBytes, &img.ThumbnailBytes, &img.MediumBytes, &img.OptimizedBytes,
		&img.SavedPercentage, &img.Ratio, &img.CreatedAt,
	)
	return img, err
}
