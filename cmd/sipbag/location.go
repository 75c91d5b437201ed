package main

import (
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/ndlib/sipbag/sip"
	"github.com/ndlib/sipbag/store"
)

// splitBucketPrefix will take a path and separate the bucket name from a prefix, if any.
// It will also make sure the prefix returned is either empty or ends with a slash "/".
//
// examples:
//
//	"" -> ("", "")
//	"bucket" -> ("bucket", "")
//	"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = path.Clean(v[1])
		if prefix == "." {
			prefix = ""
		}
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// parselocation will create an appropriate store based on "location".
// In case of an error, nil is returned.
// If location is empty, nil is returned and file keys are taken to be
// paths on the local file system.
// It understands the special scheme "s3:".
func parselocation(location string) store.ROStore {
	if location == "" {
		return nil
	}
	u, err := url.Parse(location)
	if err != nil {
		log.Println("Problem parsing location", location, err)
		return nil
	}
	switch u.Scheme {
	case "", "file":
		return store.NewFileSystem(filepath.Clean(u.Path))
	case "s3":
		conf := &aws.Config{}
		if u.Host != "" {
			conf.Endpoint = aws.String(u.Host)
			conf.Region = aws.String("us-east-1")
			// disable SSL for local development
			if strings.Contains(u.Host, "localhost") {
				conf.DisableSSL = aws.Bool(true)
				conf.S3ForcePathStyle = aws.Bool(true)
			}
		}
		bucket, prefix := splitBucketPrefix(u.Path)
		if bucket == "" {
			log.Println("Error parsing location, no bucket name", location)
			return nil
		}
		return store.NewS3(bucket, prefix, session.New(conf))
	}
	log.Println("Problem parsing location", location)
	return nil
}

// opener returns the function resolving the file keys of SIP descriptors.
// With no source store, keys are local paths.
func opener(s store.ROStore) sip.OpenFunc {
	if s != nil {
		return store.Opener(s)
	}
	return func(key string) (sip.Source, int64, error) {
		info, err := os.Stat(key)
		if err != nil {
			return nil, 0, err
		}
		return sip.LocalFile(key), info.Size(), nil
	}
}
