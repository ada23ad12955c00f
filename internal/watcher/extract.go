package watcher

import (
	"bufio"
	"bytes"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var linkPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// DefaultSupportedDomains are the sites the inbox forwards to the backend.
var DefaultSupportedDomains = []string{"bilibili.com", "douyin.com", "tiktok.com", "x.com", "twitter.com"}

// InboxExtensions are the file types the inbox reads.
var InboxExtensions = []string{".txt", ".url", ".webloc", ".html", ".htm"}

// IsInboxFile reports whether name has one of InboxExtensions.
func IsInboxFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range InboxExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ExtractLinks returns the http(s) links in a dropped file, in document
// order and without duplicates. HTML is parsed for anchors; .url shortcuts
// are read from their URL= line; anything else is scanned as text.
func ExtractLinks(name string, content []byte) []string {
	var links []string

	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		links = htmlLinks(content)
	case ".url":
		links = shortcutLinks(content)
	default:
		links = linkPattern.FindAllString(string(content), -1)
	}

	return dedupe(links)
}

func htmlLinks(content []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return linkPattern.FindAllString(string(content), -1)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			links = append(links, href)
		}
	})
	links = append(links, linkPattern.FindAllString(doc.Find("body").Text(), -1)...)
	return links
}

func shortcutLinks(content []byte) []string {
	var links []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, ok := strings.CutPrefix(line, "URL="); ok {
			links = append(links, linkPattern.FindAllString(value, -1)...)
		}
	}
	return links
}

func dedupe(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// IsSupported reports whether link's host is one of domains or a subdomain of one.
func IsSupported(link string, domains []string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
