package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// CacheFileName derives the deterministic cache filename for a source path
// and media format: the source base name, an 8-hex-character digest of its
// parent directory, and the format as extension. The digest keeps same-named
// files from different directories apart while the name stays recognizable.
func CacheFileName(sourcePath, format string) string {
	digest := sha256.Sum256([]byte(filepath.Dir(sourcePath)))
	return filepath.Base(sourcePath) + "." + hex.EncodeToString(digest[:])[:8] + "." + format
}
