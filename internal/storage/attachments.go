package storage

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

const thumbWidth = 320

// Attachments turns uploaded multipart files into stored attachment
// references.
type Attachments struct {
	store    BlobStore
	maxFiles int
	maxBytes int64
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewAttachments(store BlobStore, maxFiles int, maxBytes int64, log *zap.SugaredLogger) *Attachments {
	return &Attachments{
		store:    store,
		maxFiles: maxFiles,
		maxBytes: maxBytes,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Save stores every file and returns their references in upload order.
// If one file fails, blobs already written for this call are removed.
func (a *Attachments) Save(ctx context.Context, owner string, files []*multipart.FileHeader) ([]models.Attachment, error) {
	if len(files) > a.maxFiles {
		return nil, apperr.Validation("at most %d files per message", a.maxFiles)
	}
	out := make([]models.Attachment, 0, len(files))
	var written []string
	rollback := func() {
		for _, k := range written {
			if err := a.store.Delete(ctx, k); err != nil {
				a.log.Warnw("rollback attachment", "key", k, "err", err)
			}
		}
	}

	for _, fh := range files {
		if a.maxBytes > 0 && fh.Size > a.maxBytes {
			rollback()
			return nil, apperr.Validation("%s exceeds %d bytes", fh.Filename, a.maxBytes)
		}
		data, err := readAll(fh)
		if err != nil {
			rollback()
			return nil, err
		}
		att, keys, err := a.put(ctx, owner, fh.Filename, fh.Header.Get("Content-Type"), data)
		written = append(written, keys...)
		if err != nil {
			rollback()
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}

// Discard removes the blobs behind atts, e.g. when the message that
// referenced them was rejected.
func (a *Attachments) Discard(ctx context.Context, atts []models.Attachment) {
	for _, att := range atts {
		for _, k := range []string{att.StoragePath, att.ThumbnailPath} {
			if k == "" {
				continue
			}
			if err := a.store.Delete(ctx, k); err != nil {
				a.log.Warnw("discard attachment", "key", k, "err", err)
			}
		}
	}
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (a *Attachments) put(ctx context.Context, owner, filename, contentType string, data []byte) (models.Attachment, []string, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		name = "file"
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	key := strings.Join([]string{a.now().Format("2006/01/02"), owner, uuid.NewString() + "_" + name}, "/")

	if err := a.store.Put(ctx, key, contentType, data); err != nil {
		return models.Attachment{}, nil, err
	}
	att := models.Attachment{DisplayName: name, StoragePath: key, MimeType: contentType}
	keys := []string{key}

	if att.IsImage() {
		thumb, err := Thumbnail(data)
		if err != nil {
			a.log.Debugw("thumbnail skipped", "key", key, "err", err)
			return att, keys, nil
		}
		thumbKey := key + "_thumb.jpg"
		if err := a.store.Put(ctx, thumbKey, "image/jpeg", thumb); err != nil {
			a.log.Warnw("store thumbnail", "key", thumbKey, "err", err)
			return att, keys, nil
		}
		att.ThumbnailPath = thumbKey
		keys = append(keys, thumbKey)
	}
	return att, keys, nil
}

// Thumbnail scales an image to a fixed width and encodes it as JPEG.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
