// Package bypass detects bot-challenge responses (Cloudflare, Akamai,
// DataDome, PerimeterX) so the fetcher can flag a challenged fetch instead
// of silently treating the challenge page as real content. Detection is
// informational: a detected challenge is still classified and saved like
// any other response; the fetcher only counts it under a
// "challenged:<source>" label of its fetch metrics counter.
package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector examines one fetch response to determine whether a bot
// protection mechanism blocked or challenged the request.
type Detector func(statusCode int, headers http.Header, body []byte) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectByTitle,
	}
}

// titleChallenges maps a known challenge page's <title> text, lowercased,
// to the source it identifies. This catches challenge pages that carry
// none of the other detectors' header or body fingerprints.
var titleChallenges = map[string]string{
	"just a moment...":                 "Cloudflare",
	"attention required! | cloudflare": "Cloudflare",
	"access denied":                    "Akamai",
}

// detectByTitle parses body as HTML and checks its <title> element against
// known challenge-page titles. Malformed HTML yields no match rather than
// an error: title-based detection is a best-effort supplement to the
// header/body fingerprints above, never the sole signal.
func detectByTitle(statusCode int, headers http.Header, body []byte) (bool, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false, ""
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	if title == "" {
		return false, ""
	}
	if source, ok := titleChallenges[title]; ok {
		return true, source
	}
	return false, ""
}

// Detect runs the response through all provided detectors and returns the
// first match, or (false, "") if none fire.
func Detect(statusCode int, headers http.Header, body []byte, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(statusCode, headers, body); detected {
			return true, source
		}
	}
	return false, ""
}

func detectCloudflare(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		server := strings.ToLower(headers.Get("Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}
		if bytes.Contains(body, []byte("cf-browser-verification")) ||
			bytes.Contains(body, []byte("cloudflare-nginx")) ||
			bytes.Contains(body, []byte("cf-turnstile")) ||
			bytes.Contains(body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectAkamai(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden {
		server := strings.ToLower(headers.Get("Server"))
		if strings.Contains(server, "akamai") {
			return true, "Akamai"
		}
		if bytes.Contains(body, []byte("Reference #")) && bytes.Contains(body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

func detectDataDome(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden {
		server := strings.ToLower(headers.Get("Server"))
		if strings.Contains(server, "datadome") {
			return true, "DataDome"
		}
		if headers.Get("X-DataDome") != "" || headers.Get("X-DataDome-Response") != "" {
			return true, "DataDome"
		}
		if bytes.Contains(body, []byte("geo.captcha-delivery.com")) || bytes.Contains(body, []byte("datadome")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

func detectPerimeterX(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden {
		if headers.Get("X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}
		if bytes.Contains(body, []byte("client.perimeterx.net")) ||
			bytes.Contains(body, []byte("px-captcha")) ||
			bytes.Contains(body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
