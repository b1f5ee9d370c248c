package looplib

import (
	"context"
	"net/http"
	"time"

	"github.com/signloop/signloop/pkg/logger"
)

const (
	// DEF_PROBE_ATTEMPTS is how many times the probe tries before
	// declaring the device offline.
	DEF_PROBE_ATTEMPTS = 3
	// DEF_PROBE_TIMEOUT bounds a single probe request.
	DEF_PROBE_TIMEOUT = 10 * time.Second
)

// Probe answers the question "can this device reach its endpoint right
// now". Any HTTP response at all counts as online; a 500 from the probe
// URL still proves the network path works.
type Probe struct {
	url      string
	attempts int
	http     *http.Client
	retry    RetryConfig
	lg       logger.Logger
}

// NewProbe creates a connectivity probe against probeURL. attempts <= 0
// falls back to DEF_PROBE_ATTEMPTS.
func NewProbe(probeURL string, attempts int, hc *http.Client, lg logger.Logger) *Probe {
	if attempts <= 0 {
		attempts = DEF_PROBE_ATTEMPTS
	}
	if hc == nil {
		hc = &http.Client{Timeout: DEF_PROBE_TIMEOUT}
	}
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &Probe{
		url:      probeURL,
		attempts: attempts,
		http:     hc,
		retry:    DefaultRetryConfig(),
		lg:       lg,
	}
}

// Online reports whether the device currently has connectivity.
// It makes up to the configured number of attempts with backoff in
// between, returning true on the first response received. A cancelled
// context reports offline immediately.
func (p *Probe) Online(ctx context.Context) bool {
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			delay := p.retry.CalculateBackoff(attempt - 1)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
		if err != nil {
			p.lg.Error("probe: invalid probe url %s: %s", p.url, err.Error())
			return false
		}
		resp, err := p.http.Do(req)
		if err == nil {
			resp.Body.Close()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.lg.Warning("probe: attempt %d/%d failed: %s", attempt+1, p.attempts, err.Error())
	}
	return false
}
