package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eliabeart/gallerybackend/models"
	"github.com/eliabeart/gallerybackend/repository"
)

// Client abstracts the redis operations used by the read-through cache so
// tests can substitute a fake transport.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

// PublicAlbumsKey caches the public album listing as a JSON blob
const PublicAlbumsKey = "public_albums"

// AlbumKey is the redis hash holding a single album's cached view
func AlbumKey(albumID uint) string {
	return fmt.Sprintf("album_%d", albumID)
}

// AlbumImagesKey caches an album's image listing as a JSON blob
func AlbumImagesKey(albumID uint) string {
	return fmt.Sprintf("album_%d_images", albumID)
}

// AlbumView is the cached projection of an album used on hot read paths
type AlbumView struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
}

// ImageView is the cached projection of an image within an album listing
type ImageView struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	PerceptualHash string `json:"perceptual_hash"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	AlbumID        uint   `json:"album_id"`
}

// Store is a look-aside cache fronting the album and image repositories.
// The repositories stay authoritative: a cache failure of any kind degrades
// to a direct store read, never to a request failure.
type Store struct {
	client Client
	albums repository.AlbumRepositoryInterface
	images repository.ImageRepositoryInterface
	ttl    time.Duration
}

// NewStore creates a read-through cache with a fixed expiration
func NewStore(client Client, albums repository.AlbumRepositoryInterface, images repository.ImageRepositoryInterface, ttl time.Duration) *Store {
	return &Store{client: client, albums: albums, images: images, ttl: ttl}
}

// GetAlbum returns the cached album view, falling back to the store on a
// miss. A hash entry missing any expected field, or holding an empty value,
// is treated as a full miss; a previous interrupted write must never be
// served as a partial hit.
func (s *Store) GetAlbum(ctx context.Context, albumID uint) (*AlbumView, error) {
	key := AlbumKey(albumID)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		log.Printf("cache: HGETALL %s failed, reading store directly: %v", key, err)
		fields = nil
	}

	if view, ok := albumViewFromHash(fields); ok {
		return view, nil
	}

	album, err := s.albums.GetByID(albumID)
	if err != nil {
		return nil, err
	}

	view := &AlbumView{ID: album.ID, Name: album.Name, IsPublic: album.IsPublic}
	if err := s.client.HSet(ctx, key,
		"id", strconv.FormatUint(uint64(view.ID), 10),
		"name", view.Name,
		"is_public", strconv.FormatBool(view.IsPublic),
	).Err(); err != nil {
		log.Printf("cache: HSET %s failed: %v", key, err)
	} else if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		log.Printf("cache: EXPIRE %s failed: %v", key, err)
	}
	return view, nil
}

func albumViewFromHash(fields map[string]string) (*AlbumView, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	for _, field := range []string{"id", "name", "is_public"} {
		if fields[field] == "" {
			return nil, false
		}
	}
	id, err := strconv.ParseUint(fields["id"], 10, 64)
	if err != nil {
		return nil, false
	}
	return &AlbumView{
		ID:       uint(id),
		Name:     fields["name"],
		IsPublic: fields["is_public"] == "true",
	}, true
}

// GetAlbumImages returns the cached image listing for an album, reading
// through to the store on a miss
func (s *Store) GetAlbumImages(ctx context.Context, albumID uint) ([]ImageView, error) {
	key := AlbumImagesKey(albumID)

	if cached, err := s.client.Get(ctx, key).Result(); err == nil && cached != "" {
		var views []ImageView
		if err := json.Unmarshal([]byte(cached), &views); err == nil {
			return views, nil
		}
		log.Printf("cache: corrupt entry at %s, treating as miss", key)
	} else if err != nil && err != redis.Nil {
		log.Printf("cache: GET %s failed, reading store directly: %v", key, err)
	}

	images, err := s.images.ListByAlbumID(albumID)
	if err != nil {
		return nil, err
	}

	views := make([]ImageView, 0, len(images))
	for _, img := range images {
		views = append(views, ImageView{
			Name:           img.Name,
			Description:    img.Description,
			PerceptualHash: img.PerceptualHash,
			Width:          img.Width,
			Height:         img.Height,
			AlbumID:        img.AlbumID,
		})
	}

	s.setJSON(ctx, key, views)
	return views, nil
}

// GetPublicAlbums returns the cached public album listing, reading through
// to the store on a miss
func (s *Store) GetPublicAlbums(ctx context.Context) ([]models.Album, error) {
	if cached, err := s.client.Get(ctx, PublicAlbumsKey).Result(); err == nil && cached != "" {
		var albums []models.Album
		if err := json.Unmarshal([]byte(cached), &albums); err == nil {
			return albums, nil
		}
		log.Printf("cache: corrupt entry at %s, treating as miss", PublicAlbumsKey)
	} else if err != nil && err != redis.Nil {
		log.Printf("cache: GET %s failed, reading store directly: %v", PublicAlbumsKey, err)
	}

	albums, err := s.albums.ListPublic()
	if err != nil {
		return nil, err
	}

	s.setJSON(ctx, PublicAlbumsKey, albums)
	return albums, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache: failed to marshal value for %s: %v", key, err)
		return
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		log.Printf("cache: SET %s failed: %v", key, err)
	}
}

// Invalidate drops the given cache keys. Writers call this synchronously in
// the same request, before returning success. Transport failures are logged
// and absorbed; the entry will age out within the TTL regardless.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache: DEL %v failed: %v", keys, err)
	}
}
