package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"paper-shelf/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für den optionalen Audio-Spiegel.
// Der Endpoint ist frei konfigurierbar, damit auch S3-kompatible Anbieter
// funktionieren.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
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
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadFile lädt Daten ins S3 hoch und gibt den öffentlichen Link zurück.
func UploadFile(client *s3.Client, bucket, key string, data []byte, cfg *config.Config) (string, error) {
	_, err := client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	link := fmt.Sprintf("%s/%s/%s", cfg.S3URL, bucket, key)
	return link, nil
}

// MirrorAudio lädt die Audiodatei eines Papers in den Bucket hoch.
func MirrorAudio(client *s3.Client, cfg *config.Config, store *Store, paperID string) (string, error) {
	data, err := os.ReadFile(store.AudioPath(paperID))
	if err != nil {
		return "", fmt.Errorf("audio lesen: %w", err)
	}
	return UploadFile(client, cfg.S3Bucket, paperID+".mp3", data, cfg)
}
