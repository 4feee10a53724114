package adapters

import (
	"embed"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

//go:embed testdata
var fixtures embed.FS

// portal is a fake institution: a form login protected html site plus a small token API.
type portal struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func (p *portal) hit(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits[r.Method+" "+r.URL.Path]++
}

func (p *portal) count(route string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[route]
}

func serveFixture(w http.ResponseWriter, name string) {
	contents, err := fixtures.ReadFile("testdata/" + name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(contents)
}

func loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie("session")
	return err == nil && cookie.Value == "alice"
}

func newPortal(t testing.TB) *portal {
	p := &portal{hits: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		serveFixture(w, "login.html")
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		if err != nil || r.PostForm.Get("logintoken") != "tok-123" {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		username := r.PostForm.Get("username")
		password := r.PostForm.Get("password")
		switch {
		case username == "alice" && password == "hunter2":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "alice", Path: "/"})
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		case username == "bob":
			http.Redirect(w, r, "/password", http.StatusSeeOther)
		case username == "carol":
			serveFixture(w, "blocked.html")
		default:
			serveFixture(w, "login.html")
		}
	})
	mux.HandleFunc("GET /password", func(w http.ResponseWriter, r *http.Request) {
		serveFixture(w, "change_password.html")
	})
	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		serveFixture(w, "dashboard.html")
	})
	mux.HandleFunc("GET /accounts/checking", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		serveFixture(w, "transactions.html")
	})
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil || body.Username != "alice" || body.Password != "hunter2" {
			http.Error(w, `{"error": "invalid_grant"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "tok-abc", "expires_in": 3600}`))
	})
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-abc" {
			http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"checking": {"balance": 1024.5, "currency": "USD"}}`))
	})
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
			w.Write([]byte(`{}`))
		case <-r.Context().Done():
		}
	})

	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hit(r)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}
