package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"talent-search-go/internal/config"
	"talent-search-go/internal/pipeline"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadResume 流式上传简历文件并同时计算MD5，返回对象键和MD5
	UploadResume(ctx context.Context, candidateID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)

	// GetResume 下载简历文件
	GetResume(ctx context.Context, objectKey string) ([]byte, error)

	// ListResumeKeys 按前缀列出简历对象键
	ListResumeKeys(ctx context.Context, prefix string) ([]string, error)

	// GetPresignedURL 获取预签名下载URL
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)

	// DeleteResume 删除简历文件
	DeleteResume(ctx context.Context, objectKey string) error
}

// 确保MinIO同时满足对象存储接口和批处理管道的简历来源
var (
	_ ObjectStorage          = (*MinIO)(nil)
	_ pipeline.ResumeFetcher = (*MinIO)(nil)
)

// MinIO 提供对象存储功能
type MinIO struct {
	client        *minio.Client
	cfg           *config.MinIOConfig
	resumesBucket string
	logger        *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	resumesBucket := cfg.ResumesBucket
	if resumesBucket == "" {
		resumesBucket = "resumes"
	}

	m := &MinIO{
		client:        client,
		cfg:           cfg,
		resumesBucket: resumesBucket,
		logger:        logger,
	}

	if err := m.ensureBucketExists(resumesBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", resumesBucket, err)
	}

	if cfg.ResumeExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), resumesBucket, "expire-resumes", cfg.ResumeExpireDays); err != nil {
			logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s, bucket: %s", cfg.Endpoint, resumesBucket)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lcConfig := lifecycle.NewConfiguration()
	lcConfig.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}

	if err := m.client.SetBucketLifecycle(ctx, bucketName, lcConfig); err != nil {
		return err
	}
	m.logger.Printf("[MinIO] Lifecycle rule %s set for bucket %s (%d days)", ruleID, bucketName, expiryDays)
	return nil
}

// UploadResume 流式上传简历文件并同时计算MD5
// 返回: objectKey, md5Hex, error
func (m *MinIO) UploadResume(ctx context.Context, candidateID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	if fileExt != "" && !strings.HasPrefix(fileExt, ".") {
		fileExt = "." + fileExt
	}
	objectKey := fmt.Sprintf("resume/%s/original%s", candidateID, fileExt)
	contentType := getContentType(fileExt)

	// 使用TeeReader在上传的同时计算MD5
	md5Hash := md5.New()
	teeReader := io.TeeReader(reader, md5Hash)

	info, err := m.client.PutObject(ctx, m.resumesBucket, objectKey, teeReader,
		fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", fmt.Errorf("上传简历 %s/%s 失败: %w", m.resumesBucket, objectKey, err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))
	m.logger.Printf("[MinIO] Uploaded %s, ETag: %s, Size: %d, MD5: %s", objectKey, info.ETag, info.Size, md5Hex)
	return objectKey, md5Hex, nil
}

// UploadResumeBytes 从字节数组上传简历
func (m *MinIO) UploadResumeBytes(ctx context.Context, candidateID, fileExt string, data []byte) (string, string, error) {
	return m.UploadResume(ctx, candidateID, fileExt, bytes.NewReader(data), int64(len(data)))
}

// GetResume 下载简历文件
func (m *MinIO) GetResume(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.resumesBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.resumesBucket, objectKey, err)
	}
	defer obj.Close()

	// Stat区分对象不存在和读取失败
	stat, err := obj.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.resumesBucket, objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.resumesBucket, objectKey, err)
	}
	if int64(len(data)) != stat.Size {
		m.logger.Printf("[MinIO] Warning: object %s size mismatch, stat=%d read=%d", objectKey, stat.Size, len(data))
	}
	return data, nil
}

// ListResumeKeys 按前缀列出简历对象键
func (m *MinIO) ListResumeKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for object := range m.client.ListObjects(ctx, m.resumesBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象失败: %w", object.Err)
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

// GetPresignedURL 获取预签名下载URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, m.resumesBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteResume 删除简历文件
func (m *MinIO) DeleteResume(ctx context.Context, objectKey string) error {
	err := m.client.RemoveObject(ctx, m.resumesBucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectKey, err)
	}
	return nil
}

// StatResume 暴露底层的StatObject方法，用于测试或特定场景
func (m *MinIO) StatResume(ctx context.Context, objectKey string) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, m.resumesBucket, objectKey, minio.StatObjectOptions{})
}

// 获取内容类型
func getContentType(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
