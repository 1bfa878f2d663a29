package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

type upload struct {
	name, contentType string
	data              []byte
}

// formFiles builds real multipart file headers the way fiber hands them over.
func formFiles(t *testing.T, uploads ...upload) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+u.name+`"`)
		if u.contentType != "" {
			h.Set("Content-Type", u.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDiskStoreRoundTrip(t *testing.T) {
	d, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "2026/a/b.txt", "text/plain", []byte("hello")))
	got, err := os.ReadFile(filepath.Join(d.Dir(), "2026", "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	u, err := d.URL(ctx, "2026/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/2026/a/b.txt", u)

	require.NoError(t, d.Delete(ctx, "2026/a/b.txt"))
	require.NoError(t, d.Delete(ctx, "2026/a/b.txt"))

	assert.ErrorIs(t, d.Put(ctx, "../escape", "text/plain", nil), errBadKey)
}

func TestThumbnailWidth(t *testing.T) {
	thumb, err := Thumbnail(pngBytes(t, 640, 200))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	_, err = Thumbnail([]byte("not an image"))
	assert.Error(t, err)
}

func TestAttachmentsSave(t *testing.T) {
	d, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	a := NewAttachments(d, 10, 1<<20, zap.NewNop().Sugar())

	files := formFiles(t,
		upload{name: "notes.txt", contentType: "text/plain", data: []byte("chapter 3")},
		upload{name: "board.png", data: pngBytes(t, 400, 300)},
	)
	atts, err := a.Save(context.Background(), "alice", files)
	require.NoError(t, err)
	require.Len(t, atts, 2)

	assert.Equal(t, "notes.txt", atts[0].DisplayName)
	assert.Equal(t, "text/plain", atts[0].MimeType)
	assert.Empty(t, atts[0].ThumbnailPath)

	assert.Equal(t, "image/png", atts[1].MimeType)
	require.NotEmpty(t, atts[1].ThumbnailPath)
	_, err = os.Stat(filepath.Join(d.Dir(), filepath.FromSlash(atts[1].ThumbnailPath)))
	assert.NoError(t, err)
}

func TestAttachmentsLimits(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDiskStore(dir)
	require.NoError(t, err)
	a := NewAttachments(d, 2, 8, zap.NewNop().Sugar())
	ctx := context.Background()

	_, err = a.Save(ctx, "alice", formFiles(t,
		upload{name: "1.txt", data: []byte("a")},
		upload{name: "2.txt", data: []byte("b")},
		upload{name: "3.txt", data: []byte("c")},
	))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = a.Save(ctx, "alice", formFiles(t,
		upload{name: "small.txt", data: []byte("ok")},
		upload{name: "big.txt", data: []byte("way too large")},
	))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	// the first file of the failed call was rolled back
	var left []string
	_ = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			left = append(left, p)
		}
		return nil
	})
	assert.Empty(t, left)
}
