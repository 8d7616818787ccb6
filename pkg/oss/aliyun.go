// Package oss 对象存储服务，存放 USDT 转账凭证图片
package oss

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// Uploader 上传器接口
type Uploader interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, objectKey string) error
	GetURL(objectKey string) string
	GetSignedURL(objectKey string, expires time.Duration) (string, error)
}

// AliyunConfig 阿里云 OSS 配置
type AliyunConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	Domain          string // 自定义域名（可选）
	BasePath        string // 基础路径，如 "receipts/"
}

// AliyunUploader 阿里云 OSS 上传器
type AliyunUploader struct {
	bucket *oss.Bucket
	config *AliyunConfig
}

// NewAliyunUploader 创建阿里云 OSS 上传器
func NewAliyunUploader(config *AliyunConfig) (*AliyunUploader, error) {
	client, err := oss.New(config.Endpoint, config.AccessKeyID, config.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("创建 OSS 客户端失败: %v", err)
	}

	bucket, err := client.Bucket(config.BucketName)
	if err != nil {
		return nil, fmt.Errorf("获取 Bucket 失败: %v", err)
	}

	return &AliyunUploader{
		bucket: bucket,
		config: config,
	}, nil
}

// Upload 上传文件，凭证图片私有读
func (u *AliyunUploader) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error) {
	fullKey := u.getFullKey(objectKey)

	options := []oss.Option{oss.ObjectACL(oss.ACLPrivate), oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := u.bucket.PutObject(fullKey, reader, options...); err != nil {
		return "", fmt.Errorf("上传文件失败: %v", err)
	}

	return u.GetURL(objectKey), nil
}

// Delete 删除文件
func (u *AliyunUploader) Delete(ctx context.Context, objectKey string) error {
	return u.bucket.DeleteObject(u.getFullKey(objectKey), oss.WithContext(ctx))
}

// GetURL 获取文件 URL
func (u *AliyunUploader) GetURL(objectKey string) string {
	fullKey := u.getFullKey(objectKey)

	if u.config.Domain != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.config.Domain, "/"), fullKey)
	}

	return fmt.Sprintf("https://%s.%s/%s", u.config.BucketName, u.config.Endpoint, fullKey)
}

// GetSignedURL 获取带签名的临时 URL，审核页面查看凭证使用
func (u *AliyunUploader) GetSignedURL(objectKey string, expires time.Duration) (string, error) {
	return u.bucket.SignURL(u.getFullKey(objectKey), oss.HTTPGet, int64(expires.Seconds()))
}

func (u *AliyunUploader) getFullKey(objectKey string) string {
	if u.config.BasePath == "" {
		return objectKey
	}
	return path.Join(u.config.BasePath, objectKey)
}

// GenerateObjectKey 生成对象键
// 格式: prefix/yyyy/mm/dd/hash.ext
func GenerateObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	now := time.Now()

	hash := md5.Sum([]byte(fmt.Sprintf("%s_%d", filename, now.UnixNano())))
	hashStr := hex.EncodeToString(hash[:])[:16]

	return fmt.Sprintf("%s/%s/%s%s",
		prefix,
		now.Format("2006/01/02"),
		hashStr,
		ext,
	)
}

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// GetContentType 根据文件扩展名获取 Content-Type
func GetContentType(filename string) string {
	if ct, ok := imageContentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateImage 校验凭证图片的扩展名、大小与真实类型
func ValidateImage(filename string, data []byte, maxSize int64) error {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := imageContentTypes[ext]; !ok {
		return fmt.Errorf("不支持的图片格式: %s", ext)
	}
	if len(data) == 0 {
		return fmt.Errorf("图片内容为空")
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return fmt.Errorf("图片大小超过限制: %d > %d", len(data), maxSize)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return fmt.Errorf("文件不是有效的图片")
	}
	return nil
}

// MockUploader 模拟上传器（用于开发/测试）
type MockUploader struct {
	mu    sync.Mutex
	Files map[string][]byte
	Err   error
}

// NewMockUploader 创建模拟上传器
func NewMockUploader() *MockUploader {
	return &MockUploader{
		Files: make(map[string][]byte),
	}
}

// Upload 模拟上传
func (u *MockUploader) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) (string, error) {
	if u.Err != nil {
		return "", u.Err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	u.mu.Lock()
	u.Files[objectKey] = buf.Bytes()
	u.mu.Unlock()
	return u.GetURL(objectKey), nil
}

// Delete 模拟删除
func (u *MockUploader) Delete(ctx context.Context, objectKey string) error {
	u.mu.Lock()
	delete(u.Files, objectKey)
	u.mu.Unlock()
	return nil
}

// Has 是否存在对象
func (u *MockUploader) Has(objectKey string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.Files[objectKey]
	return ok
}

// GetURL 获取模拟 URL
func (u *MockUploader) GetURL(objectKey string) string {
	return fmt.Sprintf("https://mock-oss.example.com/%s", objectKey)
}

// GetSignedURL 获取模拟签名 URL
func (u *MockUploader) GetSignedURL(objectKey string, expires time.Duration) (string, error) {
	return fmt.Sprintf("%s?expires=%d", u.GetURL(objectKey), time.Now().Add(expires).Unix()), nil
}
