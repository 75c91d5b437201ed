package store

import (
	"io"
	"log"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	raven "github.com/getsentry/raven-go"
)

// A S3 store reads SIP files kept on AWS S3 storage (or a service with the
// same API, such as Minio).
type S3 struct {
	svc    s3iface.S3API
	Bucket string
	Prefix string
}

var _ ROStore = &S3{}

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys. For example if prefix were "uploads/" then an
// Open("hello") would read the key "uploads/hello" in the bucket. The
// authorization method and credentials in the session are used for all
// accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
	}
}

// Open streams the content of the given key. The object is read with a
// single GET request.
func (s *S3) Open(key string) (io.ReadCloser, int64, error) {
	output, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		return nil, 0, s.translate("S3 Open:", key, err)
	}
	return output.Body, aws.Int64Value(output.ContentLength), nil
}

// Stat returns the size of the given key using a HEAD request.
func (s *S3) Stat(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		return 0, s.translate("S3 Stat:", key, err)
	}
	return aws.Int64Value(info.ContentLength), nil
}

// translate turns a not found response into ErrNotExist. Other errors are
// logged and reported.
func (s *S3) translate(msg, key string, err error) error {
	if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
		return ErrNotExist
	}
	log.Println(msg, s.Bucket, s.Prefix+key, err)
	raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
	return err
}
