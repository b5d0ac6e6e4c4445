package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ErrTooLarge is returned when a download exceeds the configured size
var ErrTooLarge = errors.New("download exceeds size limit")

// StatusError is a non-2xx response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}

// FetchConfig configures a Fetcher
type FetchConfig struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	MaxBytes     int64
	RateLimit    float64 // requests per second; 0 is unlimited
	UserAgent    string
}

// DefaultFetchConfig returns production settings
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:      60 * time.Second,
		Retries:      3,
		RetryWaitMin: time.Second,
		RetryWaitMax: 30 * time.Second,
		MaxBytes:     64 * 1024 * 1024,
		RateLimit:    5,
		UserAgent:    "FileDeck/1.0",
	}
}

// Fetcher downloads remote files with retries, rate limiting and a circuit breaker
type Fetcher struct {
	client   *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	maxBytes int64
}

// Download is an open response body
type Download struct {
	Body        io.Reader
	Name        string
	ContentType string
	Length      int64 // -1 when unknown
}

// NewFetcher creates a fetcher. Retries happen in the retryablehttp
// transport; resty supplies the request API.
func NewFetcher(cfg FetchConfig) *Fetcher {
	def := DefaultFetchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = cfg.RetryWaitMin
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	breaker := resilience.New("http-import", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures and server errors count against the remote
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			var ue *url.Error
			return !errors.As(err, &ue)
		},
	})

	return &Fetcher{client: client, limiter: limiter, breaker: breaker, maxBytes: cfg.MaxBytes}
}

// Breaker exposes the circuit breaker for status reporting
func (f *Fetcher) Breaker() *resilience.Breaker {
	return f.breaker
}

// Fetch downloads rawURL and hands the body to fn. The body fails with
// ErrTooLarge once it passes the size limit.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, fn func(Download) error) error {
	if len(rawURL) > utils.MaxURILength {
		return fmt.Errorf("invalid URL: longer than %d bytes", utils.MaxURILength)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q: only http and https are supported", rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return f.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := f.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(u.String())
		if err != nil {
			return err
		}
		body := resp.RawBody()
		defer body.Close()

		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return &StatusError{Code: resp.StatusCode()}
		}
		if resp.RawResponse.ContentLength > f.maxBytes {
			return fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.RawResponse.ContentLength)
		}

		return fn(Download{
			Body:        &capReader{r: body, remaining: f.maxBytes},
			Name:        downloadName(u, resp.Header().Get("Content-Disposition")),
			ContentType: resp.Header().Get("Content-Type"),
			Length:      resp.RawResponse.ContentLength,
		})
	})
}

type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		// One more byte tells EOF apart from overflow
		var probe [1]byte
		if n, _ := c.r.Read(probe[:]); n > 0 {
			return 0, ErrTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}

func downloadName(u *url.URL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/")); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}
	if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
		return name
	}
	return "download"
}
