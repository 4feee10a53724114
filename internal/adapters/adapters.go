// Package adapters contains institution-agnostic pipeline adapters: opening an http session,
// logging in through a form or a token endpoint, scraping tables and fields, fetching JSON and
// logging out. What is specific to an institution (paths, selectors, field names) is passed in
// as options, usually read from a profile.
package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"finscraper/internal/pipeline"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// error types adapters classify their failures into, anything else is pipeline.GENERAL_ERROR.
const (
	INVALID_PASSWORD = "INVALID_PASSWORD"
	CHANGE_PASSWORD  = "CHANGE_PASSWORD"
	ACCOUNT_BLOCKED  = "ACCOUNT_BLOCKED"
	TIMEOUT          = "TIMEOUT"
)

// progress phases emitted by the adapters of this package.
const (
	LOGGING_IN    pipeline.Phase = "LOGGING_IN"
	LOGIN_SUCCESS pipeline.Phase = "LOGIN_SUCCESS"
	SCRAPING      pipeline.Phase = "SCRAPING"
)

var (
	HTTPClientKey = pipeline.NewKey[*resty.Client]("http.client")
	// AuthHeaderKey holds the full value of the Authorization header, "<scheme> <token>".
	AuthHeaderKey = pipeline.NewKey[string]("http.auth-header")
	LoggedInKey   = pipeline.NewKey[bool]("auth.logged-in")
)

// classifyTransport turns an error returned by the http client into a failure.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return pipeline.Failure(TIMEOUT, err)
	}
	return pipeline.Failure(pipeline.GENERAL_ERROR, err)
}

// request starts a request on the session's client, it carries the auth header when one
// was stored by a login adapter.
func request(ctx context.Context, view *pipeline.View) (*resty.Request, error) {
	client, ok := HTTPClientKey.Get(view)
	if !ok {
		return nil, fmt.Errorf("no http session")
	}
	req := client.R().SetContext(ctx)
	if header, ok := AuthHeaderKey.Get(view); ok && header != "" {
		req.SetHeader("Authorization", header)
	}
	return req, nil
}

func checkStatus(res *resty.Response) error {
	if res.IsError() {
		return fmt.Errorf("%s %s returned %s", res.Request.Method, res.Request.URL, res.Status())
	}
	return nil
}

func parseDocument(res *resty.Response) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

// getDocument fetches `path` with the session's client and parses it as html.
func getDocument(ctx context.Context, view *pipeline.View, path string) (*goquery.Document, *resty.Response, error) {
	req, err := request(ctx, view)
	if err != nil {
		return nil, nil, err
	}
	res, err := req.Get(path)
	if err != nil {
		return nil, nil, classifyTransport(err)
	}
	err = checkStatus(res)
	if err != nil {
		return nil, res, err
	}
	doc, err := parseDocument(res)
	if err != nil {
		return nil, res, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, res, nil
}

// requireLogin reports a problem unless a login adapter has marked the session as logged in.
func requireLogin(_ context.Context, view *pipeline.View) []string {
	loggedIn, _ := LoggedInKey.Get(view)
	if !loggedIn {
		return []string{"the session is not logged in"}
	}
	return nil
}

// accountData builds the `{"accounts": {id: fields}}` shape every scraping adapter contributes.
func accountData(accountID string, fields map[string]any) map[string]any {
	return map[string]any{
		"accounts": map[string]any{
			accountID: fields,
		},
	}
}

// nestUnder wraps `value` into nested maps following a dot separated path.
//
//	nestUnder("a.b", v) -> {"a": {"b": v}}
func nestUnder(path string, value map[string]any) map[string]any {
	path = strings.Trim(path, ".")
	if path == "" {
		return value
	}
	segments := strings.Split(path, ".")
	out := value
	for i := len(segments) - 1; i >= 0; i-- {
		out = map[string]any{segments[i]: out}
	}
	return out
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
