// Package incremental decides how a log file changed since it was last read
// and fingerprints the already-consumed prefix.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
)

const chunkSize = 8 * 1024

// EmptyHash is the SHA-256 of zero bytes.
const EmptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// HashPrefix returns the hex SHA-256 of the first n bytes of r, where total
// is the number of bytes r can supply. Memory use is bounded by chunkSize.
func HashPrefix(r io.Reader, total, n int64) (string, error) {
	if n < 0 || n > total {
		return "", errkind.Wrap(fmt.Errorf("prefix length %d outside [0, %d]", n, total), errkind.KindInvalidRange, false)
	}
	if n == 0 {
		return EmptyHash, nil
	}

	h := sha256.New()
	buf := make([]byte, chunkSize)
	copied, err := io.CopyBuffer(h, io.LimitReader(r, n), buf)
	if err != nil {
		return "", errkind.IO(fmt.Errorf("read prefix: %w", err))
	}
	if copied != n {
		return "", errkind.IO(fmt.Errorf("short read: got %d of %d bytes", copied, n))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFilePrefix hashes the first n bytes of the file at path.
func HashFilePrefix(path string, n int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errkind.IO(fmt.Errorf("open: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errkind.IO(fmt.Errorf("stat: %w", err))
	}
	return HashPrefix(f, info.Size(), n)
}

// HashContentPrefix hashes the first n bytes of content.
func HashContentPrefix(content string, n int64) (string, error) {
	return HashPrefix(strings.NewReader(content), int64(len(content)), n)
}

// Snapshot returns the current size of the file and the hash of its first
// offset bytes. Parsers that scan the file report both themselves; this is
// for parsers that do not.
func Snapshot(path string, offset int64) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", errkind.IO(fmt.Errorf("open: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, "", errkind.IO(fmt.Errorf("stat: %w", err))
	}
	if offset > info.Size() {
		return 0, "", errkind.IO(fmt.Errorf("file shrank to %d bytes below consumed offset %d", info.Size(), offset))
	}
	hash, err := HashPrefix(f, info.Size(), offset)
	if err != nil {
		return 0, "", err
	}
	return info.Size(), hash, nil
}
