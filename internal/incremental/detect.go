package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
)

type ChangeType string

const (
	ChangeUnchanged ChangeType = "unchanged"
	ChangeAppend    ChangeType = "append"
	ChangeTruncate  ChangeType = "truncate"
	ChangeRewrite   ChangeType = "rewrite"
	ChangeDeleted   ChangeType = "deleted"
)

// NeedsFullParse reports whether the change invalidates everything parsed so far.
func (c ChangeType) NeedsFullParse() bool {
	return c == ChangeTruncate || c == ChangeRewrite || c == ChangeDeleted
}

// DetectChange classifies how the file at path differs from the recorded
// state. prevHash must be the hash of the first prevOffset bytes; an empty
// prevHash skips the prefix comparison.
//
// Checks run in order: deleted, truncated, grown, same size. Only the
// consumed prefix is re-hashed, never the whole file.
func DetectChange(path string, prevOffset, prevSize int64, prevHash string) (ChangeType, error) {
	if prevOffset < 0 || prevOffset > prevSize {
		return "", errkind.Wrap(
			fmt.Errorf("stored offset %d outside stored size %d", prevOffset, prevSize),
			errkind.KindStateInconsistency, false)
	}

	info, err := os.Stat(path)
	if err != nil {
		return ChangeDeleted, nil
	}
	size := info.Size()

	if size < prevSize {
		return ChangeTruncate, nil
	}

	if size > prevSize {
		if prevHash == "" {
			return ChangeAppend, nil
		}
		same, err := prefixMatches(path, prevOffset, prevHash)
		if err != nil {
			return ChangeDeleted, nil
		}
		if same {
			return ChangeAppend, nil
		}
		return ChangeRewrite, nil
	}

	if prevHash == "" {
		return ChangeUnchanged, nil
	}
	same, err := prefixMatches(path, prevOffset, prevHash)
	if err != nil {
		return ChangeDeleted, nil
	}
	if same {
		return ChangeUnchanged, nil
	}
	return ChangeRewrite, nil
}

func prefixMatches(path string, n int64, want string) (bool, error) {
	got, err := HashFilePrefix(path, n)
	if err != nil {
		// Size shrank between stat and read.
		if errkind.Is(err, errkind.KindInvalidRange) {
			return false, nil
		}
		return false, err
	}
	return got == want, nil
}

// Exists reports whether path is present, distinguishing a removed file from
// one that merely cannot be read.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
