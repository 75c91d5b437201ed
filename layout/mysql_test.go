//go:build integration
// +build integration

package layout

import (
	"flag"
	"testing"
)

var dialmysql = flag.String("mysql", "/test", "Dial for mysql")

// Run with
//
//	go test -tags integration ./layout -mysql 'user:pass@/test'
//
// against an empty database.
func TestMySQL(t *testing.T) {
	s, err := NewMySQL(*dialmysql)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	defer s.Close()
	runStoreTests(t, s)
	runConcurrentSave(t, s)
}
