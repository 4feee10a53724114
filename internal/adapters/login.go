package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"finscraper/internal/assert"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"
	"finscraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_form_login  = "form-login.action"
	report_token_login = "token-login.action"
	report_logout      = "logout.action"
)

type FormLoginOptions struct {
	Name string
	// LoginPath is the page holding the login form.
	LoginPath string
	// FormSelector selects the login form on that page, "form" when empty.
	FormSelector  string
	UsernameField string
	PasswordField string
	// TokenField is a hidden input that must be present and non-empty, portals use it
	// against request forgery.
	TokenField string

	Username string
	Password string

	// SuccessSelector matches something only a logged in page has.
	SuccessSelector string
	// ChangePasswordSelector matches the page a portal shows when it forces a password change.
	ChangePasswordSelector string
	// BlockedSelector matches the page a portal shows for a locked or suspended account.
	BlockedSelector string
}

func matches(doc *goquery.Document, selector string) bool {
	return selector != "" && doc.Find(selector).Length() > 0
}

// FormLogin logs in by submitting the portal's html login form.
func FormLogin(opts FormLoginOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("adapters", tel)

	formSelector := nameOr(opts.FormSelector, "form")
	usernameField := nameOr(opts.UsernameField, "username")
	passwordField := nameOr(opts.PasswordField, "password")

	return pipeline.Adapter{
		Name: nameOr(opts.Name, "form-login"),
		Validate: pipeline.All(
			pipeline.Requires(HTTPClientKey),
			pipeline.Check(opts.LoginPath != "", "login path is required"),
			pipeline.Check(opts.SuccessSelector != "", "success selector is required"),
			pipeline.Check(opts.Username != "", "username is required"),
			pipeline.Check(opts.Password != "", "password is required"),
		),
		Action: func(ctx context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			view.NotifyProgress(LOGGING_IN)

			doc, res, err := getDocument(ctx, view, opts.LoginPath)
			if err != nil {
				tel.ReportBroken(report_form_login, fmt.Errorf("get login page: %w", err))
				return nil, err
			}

			form := doc.Find(formSelector).First()
			if form.Length() == 0 {
				err := fmt.Errorf("could not find login form %q", formSelector)
				tel.ReportBroken(report_form_login, err)
				return nil, err
			}

			values := htmlutil.FormValues(form)
			if opts.TokenField != "" && values.Get(opts.TokenField) == "" {
				err := fmt.Errorf("could not find login token %q", opts.TokenField)
				tel.ReportBroken(report_form_login, err)
				return nil, err
			}
			values.Set(usernameField, opts.Username)
			values.Set(passwordField, opts.Password)

			target, err := htmlutil.Resolve(res.RawResponse.Request.URL, form.AttrOr("action", ""))
			if err != nil {
				tel.ReportBroken(report_form_login, fmt.Errorf("resolve form action: %w", err))
				return nil, err
			}

			req, err := request(ctx, view)
			if err != nil {
				return nil, err
			}
			res, err = req.SetFormDataFromValues(values).Post(target.String())
			if err != nil {
				return nil, classifyTransport(err)
			}
			if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
				return pipeline.Fail(INVALID_PASSWORD, "the portal rejected the credentials"), nil
			}
			err = checkStatus(res)
			if err != nil {
				return nil, err
			}
			landing, err := parseDocument(res)
			if err != nil {
				tel.ReportBroken(report_form_login, fmt.Errorf("parse landing page: %w", err))
				return nil, err
			}

			switch {
			case matches(landing, opts.SuccessSelector):
				LoggedInKey.Set(view, true)
				view.NotifyProgress(LOGIN_SUCCESS)
				return nil, nil
			case matches(landing, opts.ChangePasswordSelector):
				return pipeline.Fail(CHANGE_PASSWORD, "the portal requires a password change"), nil
			case matches(landing, opts.BlockedSelector):
				return pipeline.Fail(ACCOUNT_BLOCKED, "the account is blocked"), nil
			}
			tel.ReportDebug("form login rejected", res.Request.URL)
			return pipeline.Fail(INVALID_PASSWORD, "the portal rejected the credentials"), nil
		},
	}
}

type TokenLoginOptions struct {
	Name string
	// Path of the endpoint that exchanges credentials for a token.
	Path          string
	UsernameField string
	PasswordField string
	// TokenField is the field of the response holding the token, "access_token" when empty.
	TokenField string
	// Scheme prefixes the token in the Authorization header, "Bearer" when empty.
	Scheme string

	Username string
	Password string
}

// TokenLogin logs in against a JSON endpoint and keeps the returned token as the
// session's Authorization header.
func TokenLogin(opts TokenLoginOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("adapters", tel)

	usernameField := nameOr(opts.UsernameField, "username")
	passwordField := nameOr(opts.PasswordField, "password")
	tokenField := nameOr(opts.TokenField, "access_token")
	scheme := nameOr(opts.Scheme, "Bearer")

	return pipeline.Adapter{
		Name: nameOr(opts.Name, "token-login"),
		Validate: pipeline.All(
			pipeline.Requires(HTTPClientKey),
			pipeline.Check(opts.Path != "", "token path is required"),
			pipeline.Check(opts.Username != "", "username is required"),
			pipeline.Check(opts.Password != "", "password is required"),
		),
		Action: func(ctx context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			view.NotifyProgress(LOGGING_IN)

			req, err := request(ctx, view)
			if err != nil {
				return nil, err
			}
			res, err := req.
				SetHeader("Accept", "application/json").
				SetBody(map[string]string{
					usernameField: opts.Username,
					passwordField: opts.Password,
				}).
				Post(opts.Path)
			if err != nil {
				return nil, classifyTransport(err)
			}
			if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
				return pipeline.Fail(INVALID_PASSWORD, "the portal rejected the credentials"), nil
			}
			err = checkStatus(res)
			if err != nil {
				return nil, err
			}

			var body map[string]any
			err = json.Unmarshal(res.Body(), &body)
			if err != nil {
				tel.ReportBroken(report_token_login, fmt.Errorf("decode token response: %w", err))
				return nil, fmt.Errorf("decode token response: %w", err)
			}
			token, _ := body[tokenField].(string)
			if token == "" {
				err := fmt.Errorf("token response has no %q", tokenField)
				tel.ReportBroken(report_token_login, err)
				return nil, err
			}

			AuthHeaderKey.Set(view, fmt.Sprintf("%s %s", scheme, token))
			LoggedInKey.Set(view, true)
			view.NotifyProgress(LOGIN_SUCCESS)
			return nil, nil
		},
	}
}

type LogoutOptions struct {
	Path string
	// Method is GET when empty.
	Method string
}

// Logout ends the portal session when one was started, it is meant for the cleanup list.
func Logout(opts LogoutOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("adapters", tel)

	method := strings.ToUpper(nameOr(opts.Method, http.MethodGet))

	return pipeline.Adapter{
		Name: "logout",
		Validate: pipeline.All(
			pipeline.Requires(HTTPClientKey),
			pipeline.Check(opts.Path != "", "logout path is required"),
		),
		Action: func(ctx context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			loggedIn, _ := LoggedInKey.Get(view)
			if !loggedIn {
				return nil, nil
			}

			req, err := request(ctx, view)
			if err != nil {
				return nil, err
			}
			res, err := req.Execute(method, opts.Path)
			if err != nil {
				tel.ReportWarning(report_logout, err)
				return nil, err
			}
			err = checkStatus(res)
			if err != nil {
				tel.ReportWarning(report_logout, err)
				return nil, err
			}

			LoggedInKey.Set(view, false)
			AuthHeaderKey.Delete(view)
			return nil, nil
		},
	}
}
