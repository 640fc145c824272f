package cas

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

func TestScrapeExecution(t *testing.T) {
	body := []byte(`<form><input type="hidden" name="execution" value="abc123" /></form>`)
	got, ok := scrapeExecution(body)
	if !ok || got != "abc123" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
}

func TestScrapeExecutionMissing(t *testing.T) {
	if _, ok := scrapeExecution([]byte("<html></html>")); ok {
		t.Fatal("expected no execution token found")
	}
}

func TestHandshakeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `<input name="execution" value="tok-1" />`)
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.FormValue("execution") != "tok-1" {
				t.Errorf("execution not echoed back: %q", r.FormValue("execution"))
			}
			if r.FormValue("username") != "alice" || r.FormValue("password") != "secret" {
				t.Errorf("unexpected credentials: %q/%q", r.FormValue("username"), r.FormValue("password"))
			}
			http.SetCookie(w, &http.Cookie{Name: "CASTGC", Value: "granted"})
			io.WriteString(w, "welcome")
		}
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	loginURL := weburl.MustParse(srv.URL + "/login")
	body, err := Handshake(context.Background(), client, loginURL, func() (string, string, error) {
		return "alice", "secret", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "welcome" {
		t.Errorf("got body %q", body)
	}

	u, _ := url.Parse(srv.URL)
	if cookies := jar.Cookies(u); len(cookies) == 0 {
		t.Error("expected cookie jar to receive the session cookie")
	}
}

func TestHandshakeNoExecutionNonce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>nothing here</html>")
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	_, err := Handshake(context.Background(), client, weburl.MustParse(srv.URL+"/login"), func() (string, string, error) {
		return "alice", "secret", nil
	})
	if err != ErrNoExecutionNonce {
		t.Fatalf("got %v, want ErrNoExecutionNonce", err)
	}
}

func TestHandshakeLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `<input name="execution" value="tok-1" />`)
		case http.MethodPost:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	_, err := Handshake(context.Background(), client, weburl.MustParse(srv.URL+"/login"), func() (string, string, error) {
		return "alice", "wrong", nil
	})
	if err != ErrLoginRejected {
		t.Fatalf("got %v, want ErrLoginRejected", err)
	}
}
