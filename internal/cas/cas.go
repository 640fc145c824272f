// Package cas implements the Central Authentication Service login
// handshake: scraping the execution nonce off a CAS login page and
// replaying credentials to obtain a session cookie.
package cas

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/DimitriTimoz/open-finder/internal/weburl"
)

// Errors returned by Handshake.
var (
	ErrNoExecutionNonce = errors.New("cas: login page lacks an execution nonce")
	ErrLoginRejected    = errors.New("cas: login POST returned a non-2xx status")
)

const executionMarker = `name="execution" value="`

// CredentialSource supplies the username and password used to complete the
// handshake. The default asks the environment first, then the terminal.
type CredentialSource func() (username, password string, err error)

// Handshake performs the CAS login flow against loginURL using client,
// returning the body of the authenticated response. client's cookie jar
// (shared with the rest of the crawl session) receives the session cookie
// as a side effect of the POST; callers do not need to do anything further
// with it.
//
// The handshake is safe to run concurrently from multiple goroutines
// against the same client: cookie-jar writes are monotonic, so two
// first-landings racing each other both succeed harmlessly.
func Handshake(ctx context.Context, client *http.Client, loginURL weburl.URL, creds CredentialSource) ([]byte, error) {
	if creds == nil {
		creds = EnvOrPrompt
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("cas: building login GET: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cas: fetching login page: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("cas: reading login page: %w", err)
	}

	execution, ok := scrapeExecution(body)
	if !ok {
		return nil, ErrNoExecutionNonce
	}

	username, password, err := creds()
	if err != nil {
		return nil, fmt.Errorf("cas: reading credentials: %w", err)
	}

	form := url.Values{
		"username":   {username},
		"password":   {password},
		"execution":  {execution},
		"_eventId":   {"submit"},
		"geolocation": {""},
		"submit":     {"Login"},
	}

	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("cas: building login POST: %w", err)
	}
	applyBrowserHeaders(postReq, loginURL)

	postResp, err := client.Do(postReq)
	if err != nil {
		return nil, fmt.Errorf("cas: posting credentials: %w", err)
	}
	defer postResp.Body.Close()

	respBody, err := io.ReadAll(postResp.Body)
	if err != nil {
		return nil, fmt.Errorf("cas: reading login response: %w", err)
	}
	if postResp.StatusCode < 200 || postResp.StatusCode >= 300 {
		return nil, ErrLoginRejected
	}
	return respBody, nil
}

// scrapeExecution extracts the opaque execution token from a CAS login
// page body: everything between the literal marker and the next quote.
func scrapeExecution(body []byte) (string, bool) {
	idx := bytes.Index(body, []byte(executionMarker))
	if idx < 0 {
		return "", false
	}
	rest := body[idx+len(executionMarker):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return string(rest[:end]), true
}

func applyBrowserHeaders(req *http.Request, loginURL weburl.URL) {
	origin := "https://" + loginURL.Host()
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", url.QueryEscape(loginURL.String()))
	req.Header.Set("Cookie", "org.springframework.web.servlet.i18n.CookieLocaleResolver.LOCALE=en-US")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-User", "?1")
}

// EnvOrPrompt is the default CredentialSource: CAS_USERNAME/CAS_PASSWORD
// from the environment, falling back to an interactive terminal prompt
// with echo-suppressed password entry when stdin is a TTY.
func EnvOrPrompt() (username, password string, err error) {
	username = os.Getenv("CAS_USERNAME")
	password = os.Getenv("CAS_PASSWORD")
	if username != "" && password != "" {
		return username, password, nil
	}

	if username == "" {
		username, err = promptLine("Username: ")
		if err != nil {
			return "", "", err
		}
	}
	if password == "" {
		password, err = promptPassword("Password: ")
		if err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stdout, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stdout, prompt)
	if isatty.IsTerminal(os.Stdin.Fd()) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stdout)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
