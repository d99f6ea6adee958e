package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"CampusGram/config"
	"CampusGram/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var global *Client

// Client 聊天附件存储客户端封装。
// 只承载消息附件一个场景：上传拿 URL，URL 存进消息表。
type Client struct {
	client *minio.Client
	config config.MinIOConfig
}

// Global 返回全局客户端（未初始化时为 nil）。
func Global() *Client {
	return global
}

// ReplaceGlobal 设置全局客户端。
func ReplaceGlobal(c *Client) {
	global = c
}

// Build 基于配置创建客户端，并确保 Bucket 存在。
func Build(cfg config.MinIOConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("minio bucketName is empty")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	client := &Client{client: mc, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket exists: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info(ctx, "附件 Bucket 创建成功",
			logger.String("bucket", cfg.BucketName),
		)

		if cfg.PublicRead {
			policy := fmt.Sprintf(`{
				"Version": "2012-10-17",
				"Statement": [
					{
						"Effect": "Allow",
						"Principal": {"AWS": ["*"]},
						"Action": ["s3:GetObject"],
						"Resource": ["arn:aws:s3:::%s/*"]
					}
				]
			}`, cfg.BucketName)
			if err := mc.SetBucketPolicy(ctx, cfg.BucketName, policy); err != nil {
				logger.Warn(ctx, "设置 Bucket 公开策略失败",
					logger.String("bucket", cfg.BucketName),
					logger.ErrorField("error", err),
				)
			}
		}
	}

	return client, nil
}

// UploadResult 上传结果。
type UploadResult struct {
	ObjectName  string // 对象名称（含前缀的完整路径）
	Size        int64
	ETag        string
	URL         string // 外部访问 URL，写入消息附件字段
	ContentType string
}

// UploadAttachment 上传一个聊天附件。
// 类型校验以内容探测为准（Magic Bytes），声明的 Content-Type 不可信。
func (c *Client) UploadAttachment(ctx context.Context, reader io.Reader, fileSize int64, fileName string) (*UploadResult, error) {
	if c.config.MaxFileSize > 0 && fileSize > c.config.MaxFileSize {
		return nil, fmt.Errorf("附件大小超过限制: %d bytes (最大: %d bytes)", fileSize, c.config.MaxFileSize)
	}

	// 读取前 512 字节做内容探测（http.DetectContentType 的要求）
	buffer := make([]byte, 512)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("读取附件内容失败: %w", err)
	}
	buffer = buffer[:n]
	contentType := http.DetectContentType(buffer)

	if !c.isAllowedType(contentType) {
		logger.Warn(ctx, "附件类型不在允许列表中",
			logger.String("detected_type", contentType),
			logger.String("file_name", fileName),
		)
		return nil, fmt.Errorf("不支持的附件类型: %s", contentType)
	}

	// 对象名用 UUID，避免路径穿越和同名覆盖；按日期分目录便于清理
	objectName := fmt.Sprintf("attachments/%s/%s", time.Now().Format("2006/01/02"), uuid.New().String())

	// 拼回已消费的 512 字节
	body := io.MultiReader(strings.NewReader(string(buffer)), reader)

	uploadCtx := ctx
	if c.config.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, c.config.UploadTimeout)
		defer cancel()
	}

	info, err := c.client.PutObject(uploadCtx, c.config.BucketName, objectName, body, fileSize,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		logger.Error(ctx, "附件上传失败",
			logger.String("object", objectName),
			logger.Int64("size", fileSize),
			logger.ErrorField("error", err),
		)
		return nil, fmt.Errorf("上传失败: %w", err)
	}

	url := c.objectURL(objectName)
	logger.Info(ctx, "附件上传成功",
		logger.String("object", objectName),
		logger.String("content_type", contentType),
		logger.Int64("size", info.Size),
	)

	return &UploadResult{
		ObjectName:  objectName,
		Size:        info.Size,
		ETag:        info.ETag,
		URL:         url,
		ContentType: contentType,
	}, nil
}

// Delete 删除附件对象。
func (c *Client) Delete(ctx context.Context, objectName string) error {
	if err := c.client.RemoveObject(ctx, c.config.BucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		logger.Error(ctx, "附件删除失败",
			logger.String("object", objectName),
			logger.ErrorField("error", err),
		)
		return fmt.Errorf("删除失败: %w", err)
	}
	return nil
}

// PresignedURL 为私有附件生成限时访问 URL。
func (c *Client) PresignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, c.config.BucketName, objectName, expires, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名 URL 失败: %w", err)
	}
	return u.String(), nil
}

func (c *Client) objectURL(objectName string) string {
	baseURL := strings.TrimSuffix(c.config.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", baseURL, c.config.BucketName, strings.TrimPrefix(objectName, "/"))
}

func (c *Client) isAllowedType(contentType string) bool {
	if len(c.config.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range c.config.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
