package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/catalog"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/extract"
	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

// streamChunkSize is the fixed read size for the forward-only body copy.
const streamChunkSize = 64 * 1024

// dlnaContentFeatures advertises byte-range seek support to DLNA renderers.
const dlnaContentFeatures = "DLNA.ORG_OP=01"

// handleContent serves GET/HEAD /content/{objectID}/{mediaType}. mediaType
// "media" resolves the playable bytes (triggering extraction for transcode
// items); "cover" serves sidecar artwork.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	objectID, err := strconv.Atoi(vars["objectID"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	obj, ok := s.catalog.Get(objectID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var path, mimeType string
	switch vars["mediaType"] {
	case "media":
		item, isItem := obj.(catalog.Item)
		if !isItem {
			http.NotFound(w, r)
			return
		}
		path, err = item.PlayablePath(r.Context())
		if err != nil {
			status := http.StatusNotFound
			if errors.Is(err, extract.ErrExtractionFailed) || errors.Is(err, extract.ErrProbeFailed) {
				status = http.StatusInternalServerError
			}
			s.logger.Error("resolve playable path",
				logging.Int("object", objectID),
				logging.Error(err))
			http.Error(w, http.StatusText(status), status)
			return
		}
		mimeType = item.MimeType()
	case "cover":
		path = obj.CoverPath()
		if path == "" {
			http.NotFound(w, r)
			return
		}
		mimeType = "image/jpeg"
	default:
		http.NotFound(w, r)
		return
	}

	s.serveFile(w, r, path, mimeType)
}

// serveFile streams a file honoring the single-range subset of HTTP range
// semantics. The body is copied forward-only in fixed-size chunks so
// arbitrarily large files never get buffered.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, mimeType string) {
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	size := info.Size()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("contentFeatures.dlna.org", dlnaContentFeatures)
	w.Header().Set("transferMode.dlna.org", "Streaming")

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	span, ranged := parseRange(r.Header.Get("Range"), size)
	if !ranged {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		s.copyChunks(w, f, size)
		return
	}

	w.Header().Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", span.start, span.end, size-span.start))
	w.Header().Set("Content-Length", strconv.FormatInt(span.length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(span.start, io.SeekStart); err != nil {
		return
	}
	s.copyChunks(w, f, span.length())
}

// copyChunks streams up to n bytes in streamChunkSize reads. Client aborts
// surface as write errors and simply end the copy.
func (s *Server) copyChunks(w io.Writer, f *os.File, n int64) {
	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(w, io.LimitReader(f, n), buf); err != nil {
		s.logger.Debug("stream ended early", logging.Error(err))
	}
}
