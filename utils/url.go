package utils

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"linkfetch/internal"
)

// LinkParser validates storage links and tells folder links from file links
type LinkParser struct {
	allowedSchemes []string
	bucketPattern  *regexp.Regexp
	isDir          func(path string) bool
}

// NewLinkParser creates a parser for file:// and s3:// links
func NewLinkParser() *LinkParser {
	return &LinkParser{
		allowedSchemes: []string{"file", "s3"},
		// S3 bucket naming rules: 3-63 chars, lowercase letters, digits, dots and hyphens
		bucketPattern: regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`),
		isDir: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.IsDir()
		},
	}
}

// ValidateLink checks the scheme and the basic shape of the link
func (p *LinkParser) ValidateLink(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return internal.NewValidationError("link", "link cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return internal.NewUnsupportedLinkError(raw, fmt.Sprintf("invalid link format: %v", err))
	}

	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, s := range p.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return internal.NewUnsupportedLinkError(raw, fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}

	switch scheme {
	case "file":
		if parsed.Host != "" && parsed.Host != "localhost" {
			return internal.NewUnsupportedLinkError(raw, "file links must be absolute (file:///path)")
		}
		if parsed.Path == "" {
			return internal.NewUnsupportedLinkError(raw, "file link has no path")
		}
	case "s3":
		if !p.bucketPattern.MatchString(parsed.Host) {
			return internal.NewUnsupportedLinkError(raw, fmt.Sprintf("invalid bucket name %q", parsed.Host))
		}
	}

	return nil
}

// Parse validates raw and classifies it. A link is a folder link when it ends
// with a slash, carries a #F! fragment, names a bucket root or an existing
// local directory.
func (p *LinkParser) Parse(raw string) (*internal.LinkInfo, error) {
	if err := p.ValidateLink(raw); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(raw)
	info := &internal.LinkInfo{
		Raw:    raw,
		Scheme: strings.ToLower(parsed.Scheme),
		Kind:   internal.LinkFile,
	}

	folderMarked := strings.HasSuffix(parsed.Path, "/") || strings.HasPrefix(parsed.Fragment, "F!")

	switch info.Scheme {
	case "file":
		info.Location = filepath.Clean(filepath.FromSlash(parsed.Path))
		if folderMarked || p.isDir(info.Location) {
			info.Kind = internal.LinkFolder
		}
	case "s3":
		info.Bucket = parsed.Host
		info.Location = strings.TrimPrefix(parsed.Path, "/")
		if folderMarked || info.Location == "" {
			info.Kind = internal.LinkFolder
		}
	}

	return info, nil
}
