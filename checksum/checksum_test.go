package checksum

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const input = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"

var digests = map[Algorithm]string{
	MD5:         "0101fc798d94a730b0f0bf1bd2cc1959",
	SHA1:        "721254fee21f4b228a945fabb758b445c634c1c0",
	SHA224:      "d948e1d42081a4cd5aab8256e5f2b659717a0c6477da186e68afe998",
	SHA256:      "fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658",
	SHA384:      "3e18d5990b2689e35ae14f1b6e991918ea00e3eb2c8b3bf478637cde34e6d068a0771215068e91662293ccf9ed3d1029",
	SHA512:      "b50631d49cb75b406e5893039a23a3696530c6e8b7305445d3fc8cd4b9a48981790db245d8abb9116ce55fb48479b1948812b00e1d860b262e512a4e07ef568d",
	SHA3_256:    "a0ddf7f94f432d7e08d47e8378683ed07d832b5df4bb20beee735840dfcb5333",
	SHA3_512:    "4c8e91e1b7869d3fccbd9d918dfa3e3b7c9be4e8dcd6be44bd7d9112b451903b93f3256cd24e09448d0af0de97ca9741a370837a6a4f7e6817966324a44d4310",
	BLAKE2b_256: "483bd3d8c9307c9d1ce5b9f765ba24451f82b0ea4aba50a3bc6cdb988346552c",
	BLAKE2b_512: "7b18d7348150b175e02aa8e6426c76ffaf76393af035c1c1335d0747f73f372a98b655914f3123e3913707a182c563b6504ffce21014f0494cd98dbf5744e155",
}

func TestLookup(t *testing.T) {
	var table = []struct {
		name   string
		result Algorithm
	}{
		{"md5", MD5},
		{"MD5", MD5},
		{"sha1", SHA1},
		{"SHA-1", SHA1},
		{"sha-256", SHA256},
		{"SHA256", SHA256},
		{"sha_256", SHA256},
		{"Sha 512", SHA512},
		{"sha3-256", SHA3_256},
		{"SHA3_512", SHA3_512},
		{"blake2b-256", BLAKE2b_256},
	}
	for _, tab := range table {
		a, err := Lookup(tab.name)
		if err != nil {
			t.Errorf("Lookup(%q) returned %s", tab.name, err)
			continue
		}
		if a != tab.result {
			t.Errorf("Lookup(%q): Received %v, expected %v", tab.name, a, tab.result)
		}
	}
}

func TestLookupUnsupported(t *testing.T) {
	for _, name := range []string{"", "crc32", "sha", "md4", "sha-257"} {
		_, err := Lookup(name)
		if !errors.Is(err, ErrUnsupportedAlgorithm) {
			t.Errorf("Lookup(%q): Received %v, expected ErrUnsupportedAlgorithm", name, err)
		}
	}
	_, err := Lookup("whirlpool")
	if err == nil || !strings.Contains(err.Error(), "whirlpool") {
		t.Errorf("Received %v, expected error naming the algorithm", err)
	}
}

func TestLookupAll(t *testing.T) {
	algs, err := LookupAll([]string{"sha256", "MD5", "sha-256"})
	if err != nil {
		t.Fatal(err)
	}
	if len(algs) != 2 || algs[0] != SHA256 || algs[1] != MD5 {
		t.Errorf("Received %v, expected [sha256 md5]", algs)
	}
	_, err = LookupAll([]string{"md5", "nope"})
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Received %v, expected ErrUnsupportedAlgorithm", err)
	}
}

func TestSum(t *testing.T) {
	for a, goal := range digests {
		sum, n, err := Sum(strings.NewReader(input), a)
		if err != nil {
			t.Errorf("%s: %s", a, err)
			continue
		}
		if sum != goal {
			t.Errorf("%s: Received %s, expected %s", a, sum, goal)
		}
		if n != int64(len(input)) {
			t.Errorf("%s: Received length %d, expected %d", a, n, len(input))
		}
	}
	_, _, err := Sum(strings.NewReader(input), Algorithm(99))
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Received %v, expected ErrUnsupportedAlgorithm", err)
	}
}

func TestHashWriter(t *testing.T) {
	var w = new(bytes.Buffer)
	hw := NewHashWriter(w, MD5, SHA256, SHA512)
	// write in pieces to make sure state accumulates
	hw.Write([]byte(input[:10]))
	hw.Write([]byte(input[10:]))
	if w.String() != input {
		t.Errorf("Received %q, expected %q", w.String(), input)
	}
	if hw.Count() != int64(len(input)) {
		t.Errorf("Received count %d, expected %d", hw.Count(), len(input))
	}
	for a, sum := range hw.Sums() {
		if sum != digests[a] {
			t.Errorf("%s: Received %s, expected %s", a, sum, digests[a])
		}
	}
	if hw.Sum(SHA1) != "" {
		t.Errorf("Received %s for an algorithm not computed", hw.Sum(SHA1))
	}
	if _, ok := hw.Check(MD5, strings.ToUpper(digests[MD5])); !ok {
		t.Errorf("Check should ignore hex case")
	}
	if _, ok := hw.Check(MD5, digests[SHA1]); ok {
		t.Errorf("Check matched a wrong digest")
	}
}

func TestVerifyStream(t *testing.T) {
	ok, err := VerifyStream(strings.NewReader(input), map[Algorithm]string{
		MD5:    digests[MD5],
		SHA256: digests[SHA256],
	})
	if err != nil || !ok {
		t.Errorf("Received (%v, %v), expected (true, nil)", ok, err)
	}
	ok, _ = VerifyStream(strings.NewReader(input+"x"), map[Algorithm]string{MD5: digests[MD5]})
	if ok {
		t.Errorf("Received true for modified stream")
	}
	ok, _ = VerifyStream(strings.NewReader(input), nil)
	if !ok {
		t.Errorf("Received false for empty expectation")
	}
}

func TestLine(t *testing.T) {
	line := Line("5d41402abc4b2a76b9719d911017c592", "data/hello")
	if line != "5d41402abc4b2a76b9719d911017c592 data/hello\n" {
		t.Errorf("Received %q", line)
	}
}
