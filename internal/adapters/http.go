package adapters

import (
	"context"
	"fmt"
	"math"
	"net/http/cookiejar"
	"net/url"
	"time"

	"finscraper/internal/assert"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"
	"finscraper/lib/util/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const default_user_agent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const default_timeout = 30 * time.Second

type HTTPOptions struct {
	BaseURL   string
	UserAgent string
	// Timeout of a single request, 30 seconds when zero.
	Timeout time.Duration
	// RequestsPerSecond limits the request rate of the session, zero disables the limit.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport so that it passes cloudflare's bot checks.
	CloudflareBypass bool
	// Dump receives every response of the session when set.
	Dump *restyutil.FilesystemOutput
}

func parseBaseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q is not an absolute http(s) url", raw)
	}
	return parsed, nil
}

func newHTTPClient(baseUrl *url.URL, opts HTTPOptions, tel telemetry.API) (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(baseUrl.String())

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeader("user-agent", nameOr(opts.UserAgent, default_user_agent))
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = default_timeout
	}
	client.SetTimeout(timeout)

	if opts.RequestsPerSecond > 0 {
		// a burst of at least one second's worth of requests means no request is ever dropped
		burst := int(math.Max(1, math.Ceil(opts.RequestsPerSecond)))
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel)
	if opts.Dump != nil {
		restyutil.DumpResponses(client, *opts.Dump)
	}
	return client, nil
}

// OpenHTTP stores a new http session for the institution at `opts.BaseURL`.
func OpenHTTP(opts HTTPOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("http", tel)

	baseUrl, parseErr := parseBaseURL(opts.BaseURL)

	return pipeline.Adapter{
		Name: "open-http",
		Validate: func(_ context.Context, view *pipeline.View) []string {
			var problems []string
			if parseErr != nil {
				problems = append(problems, parseErr.Error())
			}
			if HTTPClientKey.Has(view) {
				problems = append(problems, "an http session is already open")
			}
			return problems
		},
		Action: func(_ context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			client, err := newHTTPClient(baseUrl, opts, tel)
			if err != nil {
				return nil, fmt.Errorf("create http client: %w", err)
			}
			HTTPClientKey.Set(view, client)
			return nil, nil
		},
	}
}

// CloseHTTP releases the connections of the session, it is meant for the cleanup list.
func CloseHTTP() pipeline.Adapter {
	return pipeline.Adapter{
		Name:     "close-http",
		Validate: pipeline.Requires(HTTPClientKey),
		Action: func(_ context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			client, _ := HTTPClientKey.Get(view)
			client.GetClient().CloseIdleConnections()
			return nil, nil
		},
	}
}
