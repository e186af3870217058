// Package storage keeps uploaded media files and hands back the URL players
// load them from.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// StoredFile describes an uploaded file.
type StoredFile struct {
	URL         string
	ContentType string
	MediaType   model.MediaType
}

type Storage interface {
	Save(fileHeader *multipart.FileHeader) (StoredFile, error)
}

// ErrUnsupportedMedia is returned for files that are neither images nor videos.
var ErrUnsupportedMedia = fmt.Errorf("only image and video files can be uploaded")

type LocalStorage struct {
	uploadDir string
	publicURL string
}

type SpacesStorage struct {
	client *s3.S3
	bucket string
	cdnURL string
}

// NewLocalStorage writes into uploadDir; files are served under publicURL.
func NewLocalStorage(uploadDir, publicURL string) *LocalStorage {
	return &LocalStorage{uploadDir: uploadDir, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func NewSpacesStorage(endpoint, region, bucket, cdnURL, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SpacesStorage{
		client: s3.New(sess),
		bucket: bucket,
		cdnURL: strings.TrimSuffix(cdnURL, "/"),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// normalizeFilename creates a unique filename without spaces or odd characters
func normalizeFilename(originalFilename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	baseName := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	baseName = strings.ReplaceAll(baseName, " ", "_")
	baseName = unsafeChars.ReplaceAllString(baseName, "")
	if baseName == "" {
		baseName = "file"
	}
	return fmt.Sprintf("%s_%s%s", baseName, now.Format("20060102_150405"), ext)
}

func classify(filename string) (StoredFile, error) {
	contentType := ContentType(filename)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return StoredFile{ContentType: contentType, MediaType: model.MediaImage}, nil
	case strings.HasPrefix(contentType, "video/"):
		return StoredFile{ContentType: contentType, MediaType: model.MediaVideo}, nil
	default:
		return StoredFile{}, ErrUnsupportedMedia
	}
}

func (ls *LocalStorage) Save(fileHeader *multipart.FileHeader) (StoredFile, error) {
	out, err := classify(fileHeader.Filename)
	if err != nil {
		return StoredFile{}, err
	}
	name := normalizeFilename(fileHeader.Filename, time.Now())
	log.Debug().Str("original", fileHeader.Filename).Str("normalized", name).Msg("file upload normalized")

	if err := os.MkdirAll(ls.uploadDir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(ls.uploadDir, name))
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return StoredFile{}, fmt.Errorf("failed to save file: %w", err)
	}

	out.URL = ls.publicURL + "/" + name
	return out, nil
}

func (ss *SpacesStorage) Save(fileHeader *multipart.FileHeader) (StoredFile, error) {
	out, err := classify(fileHeader.Filename)
	if err != nil {
		return StoredFile{}, err
	}
	name := normalizeFilename(fileHeader.Filename, time.Now())
	log.Debug().Str("original", fileHeader.Filename).Str("normalized", name).Msg("file upload normalized")

	src, err := fileHeader.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	key := "uploads/" + name
	_, err = ss.client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(out.ContentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to upload file to Spaces")
		return StoredFile{}, fmt.Errorf("failed to upload to Spaces: %w", err)
	}

	out.URL = ss.cdnURL + "/" + key
	return out, nil
}

// ContentType guesses the MIME type from the file extension.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
