package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultDownloadExpiry = 10 * time.Minute
	maxDownloadExpiry     = 15 * time.Minute
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates V4 signed GET URLs for model files.
type Client struct {
	signer Signer
	expiry time.Duration
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithExpiry sets how long issued URLs stay valid.
func WithExpiry(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.expiry = d
		}
	}
}

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	client := &Client{
		signer: signer,
		expiry: defaultDownloadExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.expiry > maxDownloadExpiry {
		return nil, errExpiryTooLong
	}
	return client, nil
}

// SignedURL is an issued download URL.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// DownloadURL signs a GET for bucket/object. The response content type is pinned from the
// object extension so browsers hand the bytes to the widget instead of downloading them.
func (c *Client) DownloadURL(ctx context.Context, bucket, object string) (SignedURL, error) {
	if c == nil {
		return SignedURL{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURL{}, errInvalidBucket
	}
	object = strings.TrimPrefix(strings.TrimSpace(object), "/")
	if object == "" {
		return SignedURL{}, errInvalidObject
	}

	expires := c.now().Add(c.expiry)
	opts := &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Method:         "GET",
		Expires:        expires,
		Scheme:         storage.SigningSchemeV4,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}
	if contentType := modelContentType(object); contentType != "" {
		opts.QueryParameters = url.Values{"response-content-type": {contentType}}
	}

	signed, err := storage.SignedURL(bucket, object, opts)
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURL{URL: signed, ExpiresAt: expires}, nil
}

func modelContentType(object string) string {
	switch strings.ToLower(path.Ext(object)) {
	case ".stl":
		return "model/stl"
	case ".gcode", ".gco", ".g":
		return "text/x-gcode"
	}
	return mime.TypeByExtension(path.Ext(object))
}
