package s3dump

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3 uploads room dumps to a fixed bucket, the same session/client setup the
// teacher used for canvas snapshots.
type S3 struct {
	client *s3.S3
	bucket string
}

// New wires an S3 dumper for the given region/bucket.
func New(region, bucket string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}
	return &S3{client: s3.New(sess), bucket: bucket}, nil
}

// Put implements Dumper.
func (d *S3) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := d.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", d.bucket, key), nil
}
