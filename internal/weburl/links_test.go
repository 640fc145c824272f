package weburl

import "testing"

func hasLink(links map[string]URL, s string) bool {
	_, ok := links[s]
	return ok
}

func TestExtractLinksSingleHref(t *testing.T) {
	content := `<a href="https://www.google.com">Google</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d: %v", len(links), links)
	}
	if !hasLink(links, "https://www.google.com") {
		t.Error("missing expected link")
	}
}

func TestExtractLinksMultiple(t *testing.T) {
	content := `<a href="https://www.google.com">Google</a><a href="https://www.youtube.com">Youtube</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
}

func TestExtractLinksRootRelative(t *testing.T) {
	content := `<a href="/">Google</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d: %v", len(links), links)
	}
}

func TestExtractLinksMultipleProtocols(t *testing.T) {
	content := `<a href="https://www.google.com">Google</a><a href="http://www.youtube.com">Youtube</a><a href="ftp://www.rust-lang.org">Rust</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d: %v", len(links), links)
	}
}

func TestExtractLinksBareStrings(t *testing.T) {
	content := `"https://www.google.com", "https://www.youtube.com", "ftp://www.rust-lang.org"`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d: %v", len(links), links)
	}
}

func TestExtractLinksURLAsGetParam(t *testing.T) {
	content := `<a href="?link=https://www.youtube.com">Google</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d: %v", len(links), links)
	}
	if !hasLink(links, "https://www.google.com?link=https://www.youtube.com") {
		t.Errorf("missing expected merged link, got %v", links)
	}
}

func TestExtractLinksAbsolutePath(t *testing.T) {
	content := `<a href="/path/to/file">Google</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d: %v", len(links), links)
	}
	if !hasLink(links, "https://www.google.com/path/to/file") {
		t.Errorf("missing expected link, got %v", links)
	}
}

func TestExtractLinksSecondQuestionMarkTerminates(t *testing.T) {
	content := `<a href="/path/to/file?a?b">Google</a>`
	links := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d: %v", len(links), links)
	}
	if !hasLink(links, "https://www.google.com/path/to/file?a") {
		t.Errorf("missing expected link, got %v", links)
	}
}

func TestExtractLinksTrailingBrace(t *testing.T) {
	links := ExtractLinks([]byte("https://sentry.io}"), MustParse("https://sentry.io"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d: %v", len(links), links)
	}
	if !hasLink(links, "https://sentry.io") {
		t.Errorf("missing expected link, got %v", links)
	}
}

func TestExtractLinksIsSet(t *testing.T) {
	content := `<a href="https://www.google.com">A</a><a href="https://www.google.com">B</a>`
	first := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	second := ExtractLinks([]byte(content), MustParse("https://www.google.com"))
	if len(first) != 1 {
		t.Fatalf("expected dedup to 1 link, got %d", len(first))
	}
	if len(first) != len(second) {
		t.Error("extracting the same buffer twice should yield identical sets")
	}
}
