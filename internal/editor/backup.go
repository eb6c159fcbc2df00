package editor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/codelens-dev/codelens/internal/types"
)

const backupRetention = 10

// backupDir is where pre-edit copies land, relative to the repo root.
func backupDir(root string) string {
	return filepath.Join(root, ".mcp", "backups")
}

// writeBackup copies content to
// <root>/.mcp/backups/<encoded-path>_<iso-timestamp>.bak and prunes the
// oldest copies beyond the retention limit.
func (e *Engine) writeBackup(relPath string, content []byte) error {
	dir := backupDir(e.root)
	if err := e.fs.CreateDir(dir); err != nil {
		return err
	}

	encoded := url.PathEscape(relPath)
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05.000Z")
	name := fmt.Sprintf("%s_%s.bak", encoded, stamp)
	if err := e.fs.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		return err
	}
	return e.pruneBackups(dir, encoded)
}

// pruneBackups keeps at most backupRetention copies per path, oldest
// deleted first. The timestamp suffix sorts lexicographically.
func (e *Engine) pruneBackups(dir, encoded string) error {
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	var mine []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), encoded+"_") && strings.HasSuffix(entry.Name(), ".bak") {
			mine = append(mine, entry.Name())
		}
	}
	if len(mine) <= backupRetention {
		return nil
	}
	sort.Strings(mine)
	for _, name := range mine[:len(mine)-backupRetention] {
		if err := e.fs.DeleteFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// hashContent computes the hash of content under the given algorithm.
func hashContent(content []byte, algorithm types.HashAlgorithm) string {
	switch algorithm {
	case types.HashXXHash:
		return strconv.FormatUint(xxhash.Sum64(content), 16)
	default:
		sum := sha256.Sum256(content)
		return hex.EncodeToString(sum[:])
	}
}

// verifyHash checks an expected-hash guard against content.
func verifyHash(content []byte, expected *types.ExpectedHash) (actual string, ok bool) {
	if expected == nil {
		return "", true
	}
	actual = hashContent(content, expected.Algorithm)
	return actual, strings.EqualFold(actual, expected.Value)
}
