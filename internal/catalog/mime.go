package catalog

import (
	"mime"
	"path/filepath"
	"strings"
)

// extensionMimes covers container formats Go's built-in table misses, plus
// codec names ffprobe reports that double as cache file extensions.
var extensionMimes = map[string]string{
	".mkv":  "video/x-matroska",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".webm": "video/webm",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ac3":  "audio/ac3",
	".eac3": "audio/eac3",
	".dts":  "audio/vnd.dts",
	".opus": "audio/opus",
	".ogg":  "audio/ogg",
	".wma":  "audio/x-ms-wma",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
}

func mimeByPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if typ, ok := extensionMimes[ext]; ok {
		return typ
	}
	if typ := mime.TypeByExtension(ext); typ != "" {
		// Strip optional parameters like "; charset=utf-8".
		if i := strings.IndexByte(typ, ';'); i >= 0 {
			typ = strings.TrimSpace(typ[:i])
		}
		return typ
	}
	return "application/octet-stream"
}

func mimeForFormat(format string) string {
	return mimeByPath("x." + format)
}

func isVideoPath(path string) bool {
	return strings.HasPrefix(mimeByPath(path), "video/")
}

func isAudioPath(path string) bool {
	return strings.HasPrefix(mimeByPath(path), "audio/")
}
