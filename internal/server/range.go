package server

import (
	"regexp"
	"strconv"
)

// singleRangePattern accepts the single-range form "bytes=<start>-<end>?".
// Multi-range and suffix-range forms deliberately fall back to a full-body
// response rather than a 416.
var singleRangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// byteRange is a resolved inclusive byte span within a resource.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRange interprets a Range request header against a resource of the
// given size. ok is false when the header is absent, malformed, or not
// satisfiable; callers then serve the whole resource.
func parseRange(header string, size int64) (byteRange, bool) {
	match := singleRangePattern.FindStringSubmatch(header)
	if match == nil {
		return byteRange{}, false
	}

	start, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || start >= size {
		return byteRange{}, false
	}

	end := size - 1
	if match[2] != "" {
		end, err = strconv.ParseInt(match[2], 10, 64)
		if err != nil || end < start {
			return byteRange{}, false
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return byteRange{start: start, end: end}, true
}
