package looplib

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// Fetcher retrieves the content of a single asset source.
// It returns the body stream and the content length in bytes,
// or -1 when the length is unknown. The caller owns the stream
// and must close it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

// SchemeRouter maps URL schemes to Fetcher implementations.
// It is the central dispatch point for protocol-agnostic asset retrieval.
// The zero value is not usable; use NewSchemeRouter to create one.
type SchemeRouter struct {
	routes map[string]Fetcher
}

// NewSchemeRouter creates a SchemeRouter pre-configured with HTTP, HTTPS,
// FTP and FTPS fetchers. rateLimit is in bytes per second and applies to
// every fetched stream; 0 means unlimited.
func NewSchemeRouter(client *http.Client, rateLimit int64) *SchemeRouter {
	if client == nil {
		client = http.DefaultClient
	}
	r := &SchemeRouter{
		routes: make(map[string]Fetcher),
	}

	httpFetcher := &HTTPFetcher{Client: client, RateLimit: rateLimit}
	r.routes["http"] = httpFetcher
	r.routes["https"] = httpFetcher

	ftpFetcher := &FTPFetcher{DialTimeout: 30 * time.Second, RateLimit: rateLimit}
	r.routes["ftp"] = ftpFetcher
	r.routes["ftps"] = ftpFetcher

	return r
}

// Register adds or replaces the fetcher for the given scheme.
// scheme must be lowercase (e.g., "ftp", "sftp").
func (r *SchemeRouter) Register(scheme string, f Fetcher) {
	r.routes[strings.ToLower(scheme)] = f
}

// Fetch dispatches to the fetcher registered for the URL's scheme.
// The scheme is matched case-insensitively (HTTP:// is treated as http://).
// Returns an error if the scheme is unsupported or the URL is invalid.
func (r *SchemeRouter) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	if rawURL == "" {
		return nil, 0, fmt.Errorf("%w: empty URL", ErrUnsupportedScheme)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		return nil, 0, fmt.Errorf("%w: no scheme in URL %q", ErrUnsupportedScheme, rawURL)
	}

	fetcher, ok := r.routes[scheme]
	if !ok {
		supported := SupportedSchemes(r)
		return nil, 0, fmt.Errorf(
			"%w %q, supported: %s",
			ErrUnsupportedScheme,
			scheme,
			strings.Join(supported, ", "),
		)
	}

	return fetcher.Fetch(ctx, rawURL)
}

// SupportedSchemes returns a sorted list of all registered schemes.
func SupportedSchemes(r *SchemeRouter) []string {
	schemes := make([]string, 0, len(r.routes))
	for s := range r.routes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// HTTPFetcher fetches assets over HTTP and HTTPS.
type HTTPFetcher struct {
	Client    *http.Client
	RateLimit int64 // bytes per second, 0 = unlimited
}

// Compile-time interface check.
var _ Fetcher = (*HTTPFetcher)(nil)

// Fetch issues a GET request and returns the response body.
// Non-2xx statuses are mapped to FetchError: 408, 429 and 5xx are
// transient, all other statuses are permanent.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, NewPermanentFetchError("http", "request", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, NewTransientFetchError("http", "get", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, httpStatusError("get", resp.StatusCode)
	}

	body := resp.Body
	if f.RateLimit > 0 {
		body = NewRateLimitedReadCloser(body, f.RateLimit)
	}
	return body, resp.ContentLength, nil
}

// httpStatusError builds a FetchError for a non-2xx HTTP status.
// 408 (request timeout), 429 (too many requests) and all 5xx responses
// are transient; the remaining 4xx statuses are permanent.
func httpStatusError(op string, status int) *FetchError {
	transient := status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
	return &FetchError{
		Scheme:    "http",
		Op:        op,
		Status:    status,
		transient: transient,
	}
}

// FTPFetcher fetches assets over FTP and FTPS using a single stream.
// Credentials from the URL are used for authentication but never persisted.
type FTPFetcher struct {
	DialTimeout time.Duration
	RateLimit   int64 // bytes per second, 0 = unlimited
}

// Compile-time interface check.
var _ Fetcher = (*FTPFetcher)(nil)

// Fetch connects, logs in (anonymous unless the URL carries credentials)
// and retrieves the file at the URL path. The returned closer quits the
// control connection as well as the data stream.
func (f *FTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, NewPermanentFetchError("ftp", "parse", err)
	}

	ftpPath := parsed.Path
	if ftpPath == "" || ftpPath == "/" {
		return nil, 0, NewPermanentFetchError("ftp", "parse",
			fmt.Errorf("empty or root path in FTP URL: file path is required"))
	}

	user := "anonymous"
	password := "anonymous"
	if parsed.User != nil {
		user = parsed.User.Username()
		if p, ok := parsed.User.Password(); ok {
			password = p
		}
	}

	host := parsed.Host
	if !strings.Contains(host, ":") {
		host = host + ":21"
	}

	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(f.DialTimeout),
		ftp.DialWithContext(ctx),
	}
	if strings.EqualFold(parsed.Scheme, "ftps") {
		// Extract hostname without port for TLS ServerName
		hostname := host
		if h, _, err := net.SplitHostPort(host); err == nil {
			hostname = h
		}
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: hostname,
			MinVersion: tls.VersionTLS12,
		}))
	}

	conn, err := ftp.Dial(host, dialOpts...)
	if err != nil {
		return nil, 0, classifyFTPError("connect", err)
	}

	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, 0, classifyFTPError("login", err)
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		conn.Quit()
		return nil, 0, NewPermanentFetchError("ftp", "type", err)
	}

	// Servers without SIZE support still serve content; degrade to unknown length.
	size, err := conn.FileSize(ftpPath)
	if err != nil {
		size = -1
	}

	resp, err := conn.Retr(ftpPath)
	if err != nil {
		conn.Quit()
		return nil, 0, classifyFTPError("retr", err)
	}

	var body io.ReadCloser = &ftpBody{resp: resp, conn: conn}
	if f.RateLimit > 0 {
		body = NewRateLimitedReadCloser(body, f.RateLimit)
	}
	return body, size, nil
}

// ftpBody ties the lifetime of the FTP control connection to the data
// stream so the caller can treat the transfer as a plain ReadCloser.
type ftpBody struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Read(p []byte) (int, error) {
	return b.resp.Read(p)
}

func (b *ftpBody) Close() error {
	err := b.resp.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

// classifyFTPError classifies FTP errors into transient or permanent.
// RFC 959: 4xx codes are transient (retry), 5xx are permanent (no retry).
// Network errors are treated as transient.
func classifyFTPError(op string, err error) *FetchError {
	if err == nil {
		return nil
	}

	// Check for textproto.Error (FTP response codes)
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		fe := &FetchError{Scheme: "ftp", Op: op, Status: tpErr.Code, Cause: err}
		fe.transient = tpErr.Code >= 400 && tpErr.Code < 500
		return fe
	}

	// Check for network errors (transient)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransientFetchError("ftp", op, err)
	}

	// Default to permanent
	return NewPermanentFetchError("ftp", op, err)
}
