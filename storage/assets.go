// Package storage keeps the custom background images and videos that node
// configurations point at.
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"DHAdmin/core/apperr"
	"DHAdmin/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// 背景素材大小上限
const (
	MaxImageSize int64 = 5 << 20
	MaxVideoSize int64 = 200 << 20
)

// BackgroundPrefix 背景素材对象键前缀
const BackgroundPrefix = "backgrounds/"

// MediaRoute is the public path assets are served from.
const MediaRoute = "/media/"

var (
	ErrUnsupportedMedia = apperr.Validation("仅支持 JPG/PNG 图片或 MP4 视频")
	ErrImageTooLarge    = apperr.Validation("图片大小不能超过5MB")
	ErrVideoTooLarge    = apperr.Validation("视频大小不能超过200MB")
	ErrAssetNotFound    = apperr.New(apperr.KindNotFound, "文件不存在")
	ErrInvalidObjectKey = apperr.Validation("无效的文件路径")
)

var objectKeyPattern = regexp.MustCompile(`^backgrounds/[A-Za-z0-9_-]{1,64}/[0-9a-f-]{36}\.(jpg|png|mp4)$`)

// Asset 已上传的背景素材
type Asset struct {
	ObjectKey   string `json:"objectKey"`
	URL         string `json:"url"`
	Type        string `json:"type"` // image, video
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
}

// ClassifyUpload returns the background type and file extension for an
// upload, or a validation error.
func ClassifyUpload(contentType string, size int64) (kind, ext string, err error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "image/jpeg", "image/jpg":
		kind, ext = "image", ".jpg"
	case "image/png":
		kind, ext = "image", ".png"
	case "video/mp4":
		kind, ext = "video", ".mp4"
	default:
		return "", "", ErrUnsupportedMedia
	}
	if size <= 0 {
		return "", "", apperr.Validation("文件为空")
	}
	if kind == "image" && size > MaxImageSize {
		return "", "", ErrImageTooLarge
	}
	if kind == "video" && size > MaxVideoSize {
		return "", "", ErrVideoTooLarge
	}
	return kind, ext, nil
}

// ObjectKey 生成背景素材对象键 backgrounds/<project>/<uuid><ext>
func ObjectKey(projectID, ext string) string {
	return BackgroundPrefix + projectID + "/" + uuid.NewString() + ext
}

// ValidObjectKey reports whether key could have been produced by ObjectKey.
func ValidObjectKey(key string) bool {
	return objectKeyPattern.MatchString(key)
}

// objectAPI is the subset of *minio.Client the asset store uses.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// AssetStore 基于 MinIO 的背景素材存储
type AssetStore struct {
	client objectAPI
	bucket string
}

func NewAssetStore(client objectAPI, bucket string) *AssetStore {
	return &AssetStore{client: client, bucket: bucket}
}

// Upload stores a background image or video for projectID.
func (s *AssetStore) Upload(ctx context.Context, projectID, contentType string, size int64, r io.Reader) (*Asset, error) {
	kind, ext, err := ClassifyUpload(contentType, size)
	if err != nil {
		return nil, err
	}
	key := ObjectKey(projectID, ext)
	info, err := s.client.PutObject(ctx, s.bucket, key, io.LimitReader(r, size), size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("上传文件失败: %w", err))
	}

	logger.Info("[Storage] 背景素材上传成功",
		logger.String("projectId", projectID),
		logger.String("objectKey", key),
		logger.Int64("size", info.Size))

	return &Asset{
		ObjectKey:   key,
		URL:         MediaRoute + key,
		Type:        kind,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

// Open streams a stored asset. The caller closes the reader.
func (s *AssetStore) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	if !ValidObjectKey(key) {
		return nil, nil, ErrInvalidObjectKey
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, mapObjectError(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, mapObjectError(err)
	}
	return obj, &ObjectInfo{Key: key, ContentType: stat.ContentType, Size: stat.Size}, nil
}

// List returns every object under prefix.
func (s *AssetStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出对象失败: %w", obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, ContentType: obj.ContentType, Size: obj.Size})
	}
	return out, nil
}

// DeletePrefix removes every object under prefix and returns how many were removed.
func (s *AssetStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if !strings.HasPrefix(prefix, BackgroundPrefix) {
		return 0, fmt.Errorf("refusing to delete outside %s", BackgroundPrefix)
	}
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, obj := range objects {
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("删除对象 %s 失败: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}

func mapObjectError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrAssetNotFound
	}
	return apperr.Internal(err)
}
