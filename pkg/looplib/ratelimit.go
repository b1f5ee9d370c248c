package looplib

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitedReader wraps an io.Reader and limits the read rate so media
// downloads do not saturate a venue uplink during opening hours.
// A limit of 0 or negative means unlimited (no throttling).
type RateLimitedReader struct {
	r        io.Reader
	limit    int64 // bytes per second, 0 or negative = unlimited
	mu       sync.Mutex
	lastRead time.Time
	tokens   int64 // available tokens (bytes)
}

// NewRateLimitedReader creates a rate-limited reader.
// limit is in bytes per second. 0 or negative means unlimited.
func NewRateLimitedReader(r io.Reader, limit int64) *RateLimitedReader {
	return &RateLimitedReader{
		r:        r,
		limit:    limit,
		lastRead: time.Now(),
		tokens:   0, // start with an empty bucket, no initial burst
	}
}

// Read implements io.Reader with rate limiting using a token bucket algorithm.
func (r *RateLimitedReader) Read(b []byte) (n int, err error) {
	// No limit - pass through directly
	if r.limit <= 0 {
		return r.r.Read(b)
	}

	r.mu.Lock()

	// Refill tokens based on elapsed time
	now := time.Now()
	elapsed := now.Sub(r.lastRead)
	r.lastRead = now

	tokensToAdd := int64(float64(r.limit) * elapsed.Seconds())
	r.tokens += tokensToAdd

	// Cap tokens at limit (1 second worth of data max burst)
	if r.tokens > r.limit {
		r.tokens = r.limit
	}

	wantToRead := int64(len(b))
	if wantToRead > r.limit {
		wantToRead = r.limit // never read more than 1 second worth
	}

	// If we don't have enough tokens, wait for them to accumulate
	if r.tokens < wantToRead {
		needed := wantToRead - r.tokens
		waitTime := time.Duration(float64(time.Second) * float64(needed) / float64(r.limit))

		if waitTime > 0 {
			r.mu.Unlock()
			time.Sleep(waitTime)
			r.mu.Lock()

			now = time.Now()
			elapsed = now.Sub(r.lastRead)
			r.lastRead = now
			tokensToAdd = int64(float64(r.limit) * elapsed.Seconds())
			r.tokens += tokensToAdd
			if r.tokens > r.limit {
				r.tokens = r.limit
			}
		}
	}

	// Limit read size to available tokens (but at least 1 byte)
	readSize := int(wantToRead)
	if r.tokens > 0 && int64(readSize) > r.tokens {
		readSize = int(r.tokens)
	}
	if readSize <= 0 {
		readSize = 1
	}

	r.mu.Unlock()

	// Perform the actual read (outside the lock)
	n, err = r.r.Read(b[:readSize])

	r.mu.Lock()
	r.tokens -= int64(n)
	r.mu.Unlock()

	return n, err
}

// RateLimitedReadCloser wraps an io.ReadCloser with rate limiting.
type RateLimitedReadCloser struct {
	*RateLimitedReader
	closer io.Closer
}

// NewRateLimitedReadCloser creates a rate-limited ReadCloser.
// limit is in bytes per second. 0 or negative means unlimited.
func NewRateLimitedReadCloser(rc io.ReadCloser, limit int64) *RateLimitedReadCloser {
	return &RateLimitedReadCloser{
		RateLimitedReader: NewRateLimitedReader(rc, limit),
		closer:            rc,
	}
}

func (r *RateLimitedReadCloser) Close() error {
	return r.closer.Close()
}

// ParseRateLimit parses a human-readable download rate limit string.
// Returns bytes per second. 0 means unlimited.
//
// Supported formats:
//   - Plain bytes: "100", "1024"
//   - With B suffix: "100B", "1024B"
//   - Kilobytes: "512KB", "512kb"
//   - Megabytes: "1MB", "1.5mb"
//   - Gigabytes: "1GB", "2.5gb"
func ParseRateLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	s = strings.ToUpper(s)

	var numStr string
	var unit string
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' && c != '-' {
			numStr = s[:i]
			unit = s[i:]
			break
		}
	}
	if numStr == "" {
		numStr = s
		unit = ""
	}
	if strings.HasPrefix(numStr, "-") {
		return 0, fmt.Errorf("invalid rate limit: negative value not allowed in %q", s)
	}

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit: %q is not a valid number", numStr)
	}

	var multiplier int64
	switch unit {
	case "", "B":
		multiplier = 1
	case "KB", "K":
		multiplier = int64(sizeKB)
	case "MB", "M":
		multiplier = int64(sizeMB)
	case "GB", "G":
		multiplier = int64(sizeGB)
	default:
		return 0, fmt.Errorf("invalid rate limit unit: %q (use B, KB, MB, or GB)", unit)
	}

	return int64(num * float64(multiplier)), nil
}
