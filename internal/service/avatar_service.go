package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"breaksphere/internal/config"
	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/repository"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAvatarUploadDir       = "/tmp/breaksphere/avatars"
	DefaultAvatarMaxUploadSizeMB = 5
	AvatarURLPrefix              = "/media/avatars/"
	AvatarSize                   = 256
	WebPQuality                  = 80
)

// FileStore persists encoded avatar files and returns their public URL.
type FileStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, name string) error
}

// DiskStore keeps files in a local directory served under AvatarURLPrefix.
type DiskStore struct {
	Dir string
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{Dir: dir}
}

func (d *DiskStore) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(d.Dir, filepath.Base(name)), data, 0o600); err != nil {
		return "", err
	}
	return AvatarURLPrefix + name, nil
}

func (d *DiskStore) Remove(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(d.Dir, filepath.Base(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type UploadAvatarInput struct {
	UserID      string
	ContentType string
	Content     []byte
}

// AvatarService crops, scales and transcodes profile images to square WebP.
type AvatarService struct {
	users              repository.UserRepository
	store              FileStore
	maxUploadSizeBytes int64
	hints              Invalidator
}

func NewAvatarService(users repository.UserRepository, store FileStore, cfg *config.Config, hints Invalidator) *AvatarService {
	maxUploadSizeMB := DefaultAvatarMaxUploadSizeMB
	if cfg != nil && cfg.AvatarMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.AvatarMaxUploadSizeMB
	}
	return &AvatarService{
		users:              users,
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		hints:              orNop(hints),
	}
}

// Upload stores a new avatar for the user and returns its URL. The previous
// avatar file is removed on a best-effort basis.
func (s *AvatarService) Upload(ctx context.Context, in UploadAvatarInput) (string, error) {
	if err := requireUser(in.UserID); err != nil {
		return "", err
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detectedType) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	square := resizeToFit(cropSquare(decoded), AvatarSize, AvatarSize)
	encoded, err := encodeWebP(square, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	name := avatarName(in.UserID, encoded)
	url, err := s.store.Put(ctx, name, encoded)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	previous, err := s.users.SetImage(ctx, in.UserID, url)
	if err != nil {
		_ = s.store.Remove(ctx, name)
		return "", err
	}
	if old, ok := strings.CutPrefix(previous, AvatarURLPrefix); ok && old != name {
		if err := s.store.Remove(ctx, old); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to remove old avatar", "name", old, "error", err)
		}
	}

	s.hints.Invalidate(ctx, models.NewStaleHint(models.HintProfile, in.UserID))
	return url, nil
}

func avatarName(userID string, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:32] + ".webp"
}

// cropSquare keeps the centered square of src.
func cropSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side <= 0 {
		return src
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
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
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}
