package jsbind

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultClient is used when ScriptSource.Client is nil.
var defaultClient = &http.Client{Timeout: 30 * time.Second}

// ChecksumError is reported when a fetched library script does not match
// its pinned digest.
type ChecksumError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected sha256 %s, got %s", e.URL, e.Expected, e.Actual)
}

// verifyScript checks body against a hex SHA-256 digest. An empty digest
// accepts anything.
func verifyScript(url, expected string, body []byte) error {
	if expected == "" {
		return nil
	}
	sum := sha256.Sum256(body)
	actual := hex.EncodeToString(sum[:])
	if actual != strings.ToLower(expected) {
		return &ChecksumError{URL: url, Expected: expected, Actual: actual}
	}
	return nil
}
