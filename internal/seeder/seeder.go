// Package seeder manufactures sample landing data so the pipeline can
// be exercised end to end without a real upload.
package seeder

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/franky-devOps/eventbridge-etl/internal/extractor"
	"github.com/franky-devOps/eventbridge-etl/internal/objstore"
)

// Header matches the extraction schema the loader expects downstream.
const Header = "ID,HouseNum,Street,Town,Zip"

// GenerateCSV produces n fake address rows under the canonical header.
// Generated values never contain commas, respecting the transformer's
// limited parser.
func GenerateCSV(n int) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	for i := 1; i <= n; i++ {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(gofakeit.Number(1, 9999)),
			sanitize(gofakeit.StreetName()),
			sanitize(gofakeit.City()),
			gofakeit.Zip(),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}

// NotificationPublisher appends one wrapper message to the landing queue.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *extractor.Notification) error
}

// Seeder uploads a generated file and announces it.
type Seeder struct {
	writer objstore.Writer
	pub    NotificationPublisher
}

// New creates a Seeder.
func New(writer objstore.Writer, pub NotificationPublisher) *Seeder {
	return &Seeder{writer: writer, pub: pub}
}

// Seed writes a CSV of n rows to bucket/key and publishes the matching
// object-created notification, mimicking what the storage provider
// does on a real upload.
func (s *Seeder) Seed(ctx context.Context, bucket, key string, n int) error {
	body := GenerateCSV(n)
	if err := s.writer.Put(ctx, bucket, key, bytes.NewReader([]byte(body)), int64(len(body))); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}

	notification := &extractor.Notification{Records: []extractor.Record{{
		EventSource: "seeder",
		S3: extractor.S3Entity{
			Bucket: extractor.Bucket{
				Name: bucket,
				ARN:  "arn:aws:s3:::" + bucket,
			},
			Object: extractor.Object{Key: key},
		},
	}}}

	if err := s.pub.PublishNotification(ctx, notification); err != nil {
		return fmt.Errorf("announce %s/%s: %w", bucket, key, err)
	}
	return nil
}
