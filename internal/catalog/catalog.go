// Package catalog reconciles pipeline output with the relational catalog:
// one post row per upload, one video row per post carrying the media code.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vodvault/internal/chunker"
)

type Post struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"index"`
	PostType  string `gorm:"size:16"`
	CreatedAt time.Time
}

type PostVideo struct {
	PostID     int64 `gorm:"primaryKey"`
	MediaCode  string
	Definition bool
	UploadedAt time.Time
}

type MediaCollectionItem struct {
	CollectionID int64 `gorm:"primaryKey"`
	PostID       int64 `gorm:"primaryKey"`
	SortOrder    int
}

// systemCollection marks uploads that belong to no user collection.
const systemCollection = "0000"

type Catalog struct {
	db *gorm.DB
}

// Open connects to the sqlite catalog at dsn and migrates the schema.
func Open(dsn string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.AutoMigrate(&Post{}, &PostVideo{}, &MediaCollectionItem{}); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Upsert records a processed asset. It creates the owning post row if
// absent, replaces the per-post video row, and links a collection item when
// the collection code names a real collection. Safe to call repeatedly; a
// re-transcode simply supersedes the stored media code.
func (c *Catalog) Upsert(ctx context.Context, ids chunker.SourceIDs, mediaCode string, highDefinition bool) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		err := tx.First(&post, "id = ?", ids.PostID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			post = Post{ID: ids.PostID, UserID: ids.UserID, PostType: "video", CreatedAt: ids.CreatedAt}
			if err := tx.Create(&post).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		video := PostVideo{
			PostID:     ids.PostID,
			MediaCode:  mediaCode,
			Definition: highDefinition,
			UploadedAt: ids.CreatedAt,
		}
		if err := tx.Save(&video).Error; err != nil {
			return err
		}

		if ids.CollectionCode != systemCollection {
			var collectionID int64
			if _, err := fmt.Sscanf(ids.CollectionCode, "%d", &collectionID); err != nil {
				return fmt.Errorf("collection code %q: %w", ids.CollectionCode, err)
			}
			item := MediaCollectionItem{CollectionID: collectionID, PostID: ids.PostID}
			if err := tx.FirstOrCreate(&item, item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MediaCode returns the stored media code for a post, for tooling and tests.
func (c *Catalog) MediaCode(ctx context.Context, postID int64) (string, error) {
	var video PostVideo
	if err := c.db.WithContext(ctx).First(&video, "post_id = ?", postID).Error; err != nil {
		return "", err
	}
	return video.MediaCode, nil
}
