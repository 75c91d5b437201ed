package store

import (
	"bytes"
	"io"
	"io/ioutil"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func readSource(t *testing.T, open func() (io.ReadCloser, error)) string {
	rc, err := open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := ioutil.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestMemoryOpener(t *testing.T) {
	ms := NewMemory()
	value := []byte("test-second")
	ms.Set("file-2", value)
	value[0] = 'X' // the store keeps its own copy

	open := Opener(ms)
	src, size, err := open("file-2")
	if err != nil {
		t.Fatal(err)
	}
	if size != 11 {
		t.Errorf("Received size %d, expected 11", size)
	}
	// a source can be read more than once
	for i := 0; i < 2; i++ {
		if s := readSource(t, src.Open); s != "test-second" {
			t.Errorf("Received %q, expected \"test-second\"", s)
		}
	}

	if _, _, err := open("missing"); err != ErrNotExist {
		t.Errorf("Received %v, expected ErrNotExist", err)
	}
}

// fakeS3 serves objects from a map.
type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
}

func notFound() error {
	return awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), 404, "x")
}

func (f *fakeS3) HeadObject(in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	v, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(v)))}, nil
}

func (f *fakeS3) GetObject(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	v, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, notFound()
	}
	return &s3.GetObjectOutput{
		Body:          ioutil.NopCloser(bytes.NewReader([]byte(v))),
		ContentLength: aws.Int64(int64(len(v))),
	}, nil
}

func TestS3(t *testing.T) {
	s := &S3{
		Bucket: "zoo",
		Prefix: "uploads/",
		svc: &fakeS3{objects: map[string]string{
			"zoo/uploads/key-1": "test",
			"zoo/key-2":         "outside the prefix",
		}},
	}
	src, size, err := Opener(s)("key-1")
	if err != nil {
		t.Fatal(err)
	}
	if size != 4 {
		t.Errorf("Received size %d, expected 4", size)
	}
	if v := readSource(t, src.Open); v != "test" {
		t.Errorf("Received %q, expected \"test\"", v)
	}
	if _, err := s.Stat("key-2"); err != ErrNotExist {
		t.Errorf("Received %v, expected ErrNotExist", err)
	}
	if _, _, err := s.Open("key-2"); err != ErrNotExist {
		t.Errorf("Received %v, expected ErrNotExist", err)
	}
}
