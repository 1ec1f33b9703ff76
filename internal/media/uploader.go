package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
)

const EventsFolder = "events"

// Upload describes one image file being stored for an event.
type Upload struct {
	EventID     string
	UploaderID  string
	Filename    string
	ContentType string
	Body        io.Reader
}

// Uploader stores image bytes and returns the reference kept in the database.
type Uploader interface {
	Upload(ctx context.Context, u Upload) (string, error)
	Remove(ctx context.Context, refs []string) error
}

// ObjectPath builds events/<event>/<uploader>/<random><ext>.
func ObjectPath(u Upload) string {
	ext := strings.ToLower(path.Ext(u.Filename))
	if len(ext) > 8 {
		ext = ""
	}
	return path.Join(EventsFolder, u.EventID, u.UploaderID, uuid.NewString()+ext)
}

type SupabaseUploader struct {
	storage *storage_go.Client
	bucket  string
	logger  *slog.Logger
}

func NewSupabaseUploader(storage *storage_go.Client, bucket string, logger *slog.Logger) *SupabaseUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseUploader{storage: storage, bucket: bucket, logger: logger}
}

func (s *SupabaseUploader) Upload(ctx context.Context, u Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	objectPath := ObjectPath(u)
	contentType := u.ContentType
	upsert := false
	if _, err := s.storage.UploadFile(s.bucket, objectPath, u.Body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return objectPath, nil
}

// Remove deletes the objects behind refs. Refs outside the bucket are skipped.
func (s *SupabaseUploader) Remove(ctx context.Context, refs []string) error {
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		p, kind := ParseRef(s.bucket, ref)
		if kind == RefPath && p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.storage.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("remove %d objects: %w", len(paths), err)
	}
	return nil
}

// CloudinaryUploader keeps images on Cloudinary. The stored reference is the
// secure delivery URL, which the resolver passes through unchanged.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *slog.Logger
}

func NewCloudinaryUploader(cld *cloudinary.Cloudinary, folder string, logger *slog.Logger) *CloudinaryUploader {
	if logger == nil {
		logger = slog.Default()
	}
	if folder == "" {
		folder = EventsFolder
	}
	return &CloudinaryUploader{cld: cld, folder: folder, logger: logger}
}

func (c *CloudinaryUploader) Upload(ctx context.Context, u Upload) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, u.Body, uploader.UploadParams{
		Folder:   path.Join(c.folder, u.EventID),
		PublicID: uuid.NewString(),
		Tags:     []string{"eventradar", "event-" + u.EventID},
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

func (c *CloudinaryUploader) Remove(ctx context.Context, refs []string) error {
	var firstErr error
	for _, ref := range refs {
		id := CloudinaryPublicID(ref)
		if id == "" {
			continue
		}
		if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: id}); err != nil {
			c.logger.Warn("cloudinary destroy failed", "public_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// CloudinaryPublicID recovers the public id from a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v123/events/e1/abc.jpg.
func CloudinaryPublicID(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 1 && len(parts[0]) > 1 && parts[0][0] == 'v' && isDigits(parts[0][1:]) {
		parts = parts[1:]
	}
	id := strings.Join(parts, "/")
	return strings.TrimSuffix(id, path.Ext(id))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
