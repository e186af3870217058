package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestNormalizeFilename(t *testing.T) {
	at := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Lobby_Poster_20250303_093000.png", normalizeFilename("Lobby Poster!.PNG", at))
	assert.Equal(t, "file_20250303_093000.mp4", normalizeFilename("???.mp4", at))
	assert.Equal(t, "passwd_20250303_093000", normalizeFilename("../../etc/passwd", at))
}

func TestLocalStorageSave(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(dir, "http://localhost:8080/uploads/")

	out, err := ls.Save(fileHeader(t, "menu board.jpg", []byte("jpeg bytes")))
	require.NoError(t, err)
	assert.Equal(t, model.MediaImage, out.MediaType)
	assert.Equal(t, "image/jpeg", out.ContentType)
	assert.True(t, strings.HasPrefix(out.URL, "http://localhost:8080/uploads/menu_board_"))

	stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(out.URL, "http://localhost:8080/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(stored))
}

func TestLocalStorageRejectsOtherFiles(t *testing.T) {
	ls := NewLocalStorage(t.TempDir(), "/uploads")
	_, err := ls.Save(fileHeader(t, "notes.pdf", []byte("%PDF")))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentType("clip.MP4"))
	assert.Equal(t, "application/octet-stream", ContentType("archive.zip"))
}
