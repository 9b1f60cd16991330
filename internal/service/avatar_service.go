package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"strings"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	AvatarSize             = 256
	AvatarWebPQuality      = 80
	DefaultAvatarMaxSizeMB = 5
	avatarURLExpiry        = time.Hour
)

// AvatarService normalises uploaded profile pictures into square WebP images.
type AvatarService struct {
	profiles repository.ProfileRepository
	store    storage.Store
	maxBytes int64
}

func NewAvatarService(profiles repository.ProfileRepository, store storage.Store, maxSizeMB int) *AvatarService {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultAvatarMaxSizeMB
	}
	return &AvatarService{
		profiles: profiles,
		store:    store,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
	}
}

// AvatarKey is the object key holding userID's avatar.
func AvatarKey(userID uint) string {
	return fmt.Sprintf("avatars/%d.webp", userID)
}

// AvatarPath is the API path that serves userID's avatar.
func AvatarPath(userID uint) string {
	return fmt.Sprintf("/api/profiles/%d/avatar", userID)
}

// Upload validates content, converts it and stores it as userID's avatar.
func (s *AvatarService) Upload(ctx context.Context, userID uint, content []byte) (*models.Profile, error) {
	if s.store == nil {
		return nil, models.NewUnavailableError("File storage is not configured", storage.ErrNotConfigured)
	}
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	encoded, err := encodeWebP(squareThumbnail(decoded, AvatarSize), AvatarWebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := s.store.Put(ctx, AvatarKey(userID), encoded, "image/webp"); err != nil {
		return nil, models.NewInternalError(err)
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.AvatarURL = AvatarPath(userID)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// URL returns a short-lived download URL for userID's avatar.
func (s *AvatarService) URL(ctx context.Context, userID uint) (string, error) {
	if s.store == nil {
		return "", models.NewNotFoundError("Avatar", userID)
	}
	url, err := s.store.PresignGet(ctx, AvatarKey(userID), avatarURLExpiry)
	if err != nil {
		return "", models.NewNotFoundError("Avatar", userID)
	}
	return url, nil
}

// squareThumbnail centre-crops src to a square and scales it to size.
func squareThumbnail(src image.Image, size int) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2

	cropped := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(cropped, cropped.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)

	if side <= size {
		return cropped
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
