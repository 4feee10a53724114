// Package profile describes an institution as data and builds the adapters that scrape it.
package profile

import (
	"fmt"
	"net/url"
	"time"

	"finscraper/internal/adapters"
	"finscraper/internal/assert"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"
	"finscraper/lib/util/restyutil"
)

const (
	LOGIN_NONE  = ""
	LOGIN_FORM  = "form"
	LOGIN_TOKEN = "token"
)

type FormLogin struct {
	Path                   string `json:"path"`
	FormSelector           string `json:"form_selector"`
	UsernameField          string `json:"username_field"`
	PasswordField          string `json:"password_field"`
	TokenField             string `json:"token_field"`
	SuccessSelector        string `json:"success_selector"`
	ChangePasswordSelector string `json:"change_password_selector"`
	BlockedSelector        string `json:"blocked_selector"`
}

type TokenLogin struct {
	Path          string `json:"path"`
	UsernameField string `json:"username_field"`
	PasswordField string `json:"password_field"`
	TokenField    string `json:"token_field"`
	Scheme        string `json:"scheme"`
}

type Login struct {
	// Kind is "form", "token", or empty for portals without a login.
	Kind  string     `json:"kind"`
	Form  FormLogin  `json:"form"`
	Token TokenLogin `json:"token"`
}

type Table struct {
	Account        string  `json:"account"`
	Path           string  `json:"path"`
	Selector       string  `json:"selector"`
	MatchThreshold float64 `json:"match_threshold"`
}

type Fields struct {
	Account string            `json:"account"`
	Path    string            `json:"path"`
	Fields  map[string]string `json:"fields"`
}

type JSON struct {
	Path     string `json:"path"`
	DataPath string `json:"data_path"`
}

type Profile struct {
	Name              string  `json:"name"`
	BaseUrl           string  `json:"base_url"`
	UserAgent         string  `json:"user_agent"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`

	Login  Login    `json:"login"`
	Tables []Table  `json:"tables"`
	Fields []Fields `json:"fields"`
	JSON   []JSON   `json:"json"`

	LogoutPath   string `json:"logout_path"`
	LogoutMethod string `json:"logout_method"`

	// Dump receives every response of a run, it is set by the caller and never read from
	// configuration.
	Dump *restyutil.FilesystemOutput `json:"-"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Check reports the first problem that makes a profile unusable. Problems that depend on the
// state of a run (missing credentials) are left to the adapters' validation.
func (p Profile) Check() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if p.BaseUrl == "" {
		return fmt.Errorf("profile %s has no base url", p.Name)
	}
	if _, err := url.Parse(p.BaseUrl); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	switch p.Login.Kind {
	case LOGIN_NONE, LOGIN_FORM, LOGIN_TOKEN:
	default:
		return fmt.Errorf("profile %s has unknown login kind %q", p.Name, p.Login.Kind)
	}
	if len(p.Tables)+len(p.Fields)+len(p.JSON) == 0 {
		return fmt.Errorf("profile %s scrapes nothing", p.Name)
	}
	// transactions of one account would replace each other when merged
	tableAccounts := map[string]bool{}
	for _, table := range p.Tables {
		if tableAccounts[table.Account] {
			return fmt.Errorf("profile %s has more than one table for account %q", p.Name, table.Account)
		}
		tableAccounts[table.Account] = true
	}
	return nil
}

// Build returns the main and cleanup adapters of a run of `p`. It performs no I/O.
func Build(p Profile, creds Credentials, tel telemetry.API) (main, cleanup []pipeline.Adapter, err error) {
	assert.NotNil(tel)

	err = p.Check()
	if err != nil {
		return nil, nil, err
	}

	loggedIn := p.Login.Kind != LOGIN_NONE

	main = append(main, adapters.OpenHTTP(adapters.HTTPOptions{
		BaseURL:           p.BaseUrl,
		UserAgent:         p.UserAgent,
		Timeout:           time.Duration(p.TimeoutSeconds) * time.Second,
		RequestsPerSecond: p.RequestsPerSecond,
		CloudflareBypass:  p.CloudflareBypass,
		Dump:              p.Dump,
	}, tel))

	switch p.Login.Kind {
	case LOGIN_FORM:
		form := p.Login.Form
		main = append(main, adapters.FormLogin(adapters.FormLoginOptions{
			LoginPath:              form.Path,
			FormSelector:           form.FormSelector,
			UsernameField:          form.UsernameField,
			PasswordField:          form.PasswordField,
			TokenField:             form.TokenField,
			Username:               creds.Username,
			Password:               creds.Password,
			SuccessSelector:        form.SuccessSelector,
			ChangePasswordSelector: form.ChangePasswordSelector,
			BlockedSelector:        form.BlockedSelector,
		}, tel))
	case LOGIN_TOKEN:
		token := p.Login.Token
		main = append(main, adapters.TokenLogin(adapters.TokenLoginOptions{
			Path:          token.Path,
			UsernameField: token.UsernameField,
			PasswordField: token.PasswordField,
			TokenField:    token.TokenField,
			Scheme:        token.Scheme,
			Username:      creds.Username,
			Password:      creds.Password,
		}, tel))
	}

	for _, fields := range p.Fields {
		main = append(main, adapters.ScrapeFields(adapters.FieldOptions{
			AccountID:    fields.Account,
			Path:         fields.Path,
			Fields:       fields.Fields,
			RequireLogin: loggedIn,
		}, tel))
	}
	for _, table := range p.Tables {
		main = append(main, adapters.ScrapeTable(adapters.TableOptions{
			AccountID:      table.Account,
			Path:           table.Path,
			Selector:       table.Selector,
			RequireLogin:   loggedIn,
			MatchThreshold: table.MatchThreshold,
		}, tel))
	}
	for _, fetch := range p.JSON {
		main = append(main, adapters.FetchJSON(adapters.JSONOptions{
			Path:        fetch.Path,
			DataPath:    fetch.DataPath,
			RequireAuth: p.Login.Kind == LOGIN_TOKEN,
		}, tel))
	}

	if p.LogoutPath != "" {
		cleanup = append(cleanup, adapters.Logout(adapters.LogoutOptions{
			Path:   p.LogoutPath,
			Method: p.LogoutMethod,
		}, tel))
	}
	cleanup = append(cleanup, adapters.CloseHTTP())

	return main, cleanup, nil
}

// Find returns the profile named `name`.
func Find(profiles []Profile, name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("no profile named %q", name)
}
