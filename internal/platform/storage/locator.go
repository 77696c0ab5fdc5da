package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrUnresolvable is returned for locators a browser cannot be pointed at.
var ErrUnresolvable = errors.New("storage: unresolvable resource locator")

// ErrBucketNotAllowed is returned for gs:// locators outside the configured allow-list.
var ErrBucketNotAllowed = fmt.Errorf("%w: bucket not allowed", ErrUnresolvable)

// ResolutionKind says how a locator became a browser URL.
type ResolutionKind string

const (
	KindPassthrough ResolutionKind = "passthrough"
	KindPublic      ResolutionKind = "public"
	KindSigned      ResolutionKind = "signed"
)

// Resolution is the browser-fetchable form of a locator.
type Resolution struct {
	URL       string
	Kind      ResolutionKind
	ExpiresAt time.Time
}

// Locator turns the resource locators found in viewer queries into URLs.
type Locator struct {
	signed     *Client
	publicBase string
	allowed    map[string]struct{}
}

// LocatorOption customises a Locator.
type LocatorOption func(*Locator)

// WithSignedURLs issues signed URLs for gs:// locators instead of public object URLs.
func WithSignedURLs(client *Client) LocatorOption {
	return func(l *Locator) {
		l.signed = client
	}
}

// WithPublicBaseURL overrides the host used for unsigned gs:// objects.
func WithPublicBaseURL(base string) LocatorOption {
	return func(l *Locator) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			l.publicBase = base
		}
	}
}

// WithAllowedBuckets restricts gs:// locators to the named buckets. Empty allows all.
func WithAllowedBuckets(buckets ...string) LocatorOption {
	return func(l *Locator) {
		for _, bucket := range buckets {
			if bucket = strings.TrimSpace(bucket); bucket != "" {
				l.allowed[bucket] = struct{}{}
			}
		}
	}
}

// NewLocator builds a Locator.
func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{
		publicBase: "https://storage.googleapis.com",
		allowed:    map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Resolve maps raw to a URL. An empty locator resolves to an empty Resolution.
// Relative references (no scheme, no host) pass through for the browser to
// resolve against the page; scheme-relative "//host" references do not.
func (l *Locator) Resolve(ctx context.Context, raw string) (Resolution, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Resolution{}, nil
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return Resolution{URL: raw, Kind: KindPassthrough}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		if u.Host != "" || strings.HasPrefix(raw, "//") {
			return Resolution{}, fmt.Errorf("%w: scheme-relative locator", ErrUnresolvable)
		}
		return Resolution{URL: raw, Kind: KindPassthrough}, nil
	case "http", "https":
		if u.Host == "" {
			return Resolution{}, fmt.Errorf("%w: missing host", ErrUnresolvable)
		}
		return Resolution{URL: raw, Kind: KindPassthrough}, nil
	case "gs":
		return l.resolveObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return Resolution{}, fmt.Errorf("%w: scheme %q", ErrUnresolvable, u.Scheme)
	}
}

func (l *Locator) resolveObject(ctx context.Context, bucket, object string) (Resolution, error) {
	if bucket == "" || object == "" {
		return Resolution{}, fmt.Errorf("%w: gs locator needs bucket and object", ErrUnresolvable)
	}
	if len(l.allowed) > 0 {
		if _, ok := l.allowed[bucket]; !ok {
			return Resolution{}, fmt.Errorf("%w: %s", ErrBucketNotAllowed, bucket)
		}
	}
	if l.signed != nil {
		signed, err := l.signed.DownloadURL(ctx, bucket, object)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{URL: signed.URL, Kind: KindSigned, ExpiresAt: signed.ExpiresAt}, nil
	}
	public := l.publicBase + "/" + url.PathEscape(bucket) + "/" + (&url.URL{Path: object}).EscapedPath()
	return Resolution{URL: public, Kind: KindPublic}, nil
}
