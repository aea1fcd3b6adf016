package storage

import (
	"bytes"
	"context"

	"paper-vault/config"
	"paper-vault/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store kapselt den Objekt-Speicher mit zwei Credential-Stufen:
// der Upload-Client darf nur schreiben, der Service-Client zusätzlich
// löschen und listen. Löschungen (Reject, Orphan-Sweep) laufen deshalb
// immer über den Service-Client.
type Store struct {
	upload  *s3.Client
	service *s3.Client
	bucket  string
	cfg     *config.Config
}

// New erstellt beide S3-Clients gegen den konfigurierten Endpoint.
func New(cfg *config.Config) (*Store, error) {
	upload, err := newClient(cfg, cfg.S3UploadKey, cfg.S3UploadSecret)
	if err != nil {
		return nil, err
	}
	service, err := newClient(cfg, cfg.S3ServiceKey, cfg.S3ServiceSecret)
	if err != nil {
		return nil, err
	}
	return &Store{upload: upload, service: service, bucket: cfg.S3Bucket, cfg: cfg}, nil
}

func newClient(cfg *config.Config, key, secret string) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Upload lädt ein Objekt über die Upload-Credentials hoch und gibt den
// öffentlichen Abruf-Link zurück.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.upload.PutObject(ctx, input); err != nil {
		return "", err
	}
	return s.cfg.PublicObjectURL(key), nil
}

// Delete entfernt ein Objekt über die Service-Credentials.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.service.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err
}

// ListObjects listet alle Objekte unter einem Prefix samt Zeitstempel
// (Service-Credentials).
func (s *Store) ListObjects(ctx context.Context, prefix string) ([]services.ObjectInfo, error) {
	var objects []services.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.service, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			info := services.ObjectInfo{Key: *obj.Key}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}
