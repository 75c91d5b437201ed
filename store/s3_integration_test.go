//go:build s3
// +build s3

package store

// tests the S3 store with an external service. Can use amazon s3, or can run a
// local service with the same API (e.g. Minio). The bucket "zoo" should hold
// at least one object under "sips/".
//
// To run from the command line
//
//    env "AWS_ACCESS_KEY_ID=XXXXX" "AWS_SECRET_ACCESS_KEY=YYYY" go test -tags=s3 -run S3

import (
	"io"
	"io/ioutil"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

func getSession() *session.Session {
	s3Config := &aws.Config{
		Endpoint:         aws.String("http://localhost:9000"),
		Region:           aws.String("us-east-1"),
		DisableSSL:       aws.Bool(true),
		S3ForcePathStyle: aws.Bool(true),
	}
	return session.New(s3Config)
}

func TestS3Open(t *testing.T) {
	s := NewS3("zoo", "sips/", getSession())
	list, err := s3.New(getSession()).ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket:  aws.String("zoo"),
		Prefix:  aws.String("sips/"),
		MaxKeys: aws.Int64(1),
	})
	if err != nil || len(list.Contents) == 0 {
		t.Skip("no objects in zoo/sips/", err)
	}
	key := (*list.Contents[0].Key)[len("sips/"):]
	size, err := s.Stat(key)
	if err != nil {
		t.Fatal(err)
	}
	r, _, err := s.Open(key)
	if err != nil {
		t.Fatal(err)
	}
	n, err := io.Copy(ioutil.Discard, r)
	r.Close()
	if err != nil || n != size {
		t.Errorf("Read %d bytes (%v), expected %d", n, err, size)
	}
}
