package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/pkg/id"
)

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, cfg *config.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		}
	})
}

// ArchivedNotification is the JSON document written for every verified notification.
type ArchivedNotification struct {
	OrderID    string            `json:"order_id"`
	UniqueID   string            `json:"unique_id"`
	RemoteAddr string            `json:"remote_addr"`
	ReceivedAt time.Time         `json:"received_at"`
	Fields     map[string]string `json:"fields"`
}

// Archive keeps the raw processor notifications for later audits.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive creates an Archive with the given S3 client and bucket name.
func NewArchive(client *s3.Client, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

// Key lays notifications out per order and day: notifications/<order>/<yyyy-mm-dd>/<ulid>.json
func Key(orderID string, at time.Time) string {
	return fmt.Sprintf("notifications/%s/%s/%s.json", orderID, at.UTC().Format("2006-01-02"), id.At(at))
}

// Store writes doc under a fresh key and returns its s3:// location.
func (a *Archive) Store(ctx context.Context, doc ArchivedNotification) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal archived notification: %w", err)
	}
	key := Key(doc.OrderID, doc.ReceivedAt)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
