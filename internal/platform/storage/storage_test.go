package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string {
	return f.email
}

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func TestDownloadURLIsSignedV4(t *testing.T) {
	signer := &fakeSigner{email: "viewer@print-queue.iam.gserviceaccount.com"}
	now := time.Now().UTC().Truncate(time.Second)
	client, err := NewClient(signer, WithClock(func() time.Time { return now }), WithExpiry(5*time.Minute))
	require.NoError(t, err)

	signed, err := client.DownloadURL(context.Background(), "iforge-prints", "/jobs/42/part.gcode")
	require.NoError(t, err)
	require.Equal(t, now.Add(5*time.Minute), signed.ExpiresAt)
	require.Len(t, signer.payloads, 1)

	u, err := url.Parse(signed.URL)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(u.Path, "/iforge-prints/jobs/42/part.gcode"), u.Path)
	q := u.Query()
	require.Equal(t, "GOOG4-RSA-SHA256", q.Get("X-Goog-Algorithm"))
	expires, err := strconv.Atoi(q.Get("X-Goog-Expires"))
	require.NoError(t, err)
	require.InDelta(t, 300, expires, 5)
	require.Equal(t, "text/x-gcode", q.Get("response-content-type"))
	require.NotEmpty(t, q.Get("X-Goog-Signature"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorIs(t, err, errNoSigner)

	_, err = NewClient(&fakeSigner{email: "a@b"}, WithExpiry(time.Hour))
	require.ErrorIs(t, err, errExpiryTooLong)

	client, err := NewClient(&fakeSigner{email: "a@b"})
	require.NoError(t, err)
	_, err = client.DownloadURL(context.Background(), "", "x.stl")
	require.ErrorIs(t, err, errInvalidBucket)
	_, err = client.DownloadURL(context.Background(), "bucket", " ")
	require.ErrorIs(t, err, errInvalidObject)
}

func TestDownloadURLPropagatesSignerError(t *testing.T) {
	boom := errors.New("kms unavailable")
	client, err := NewClient(&fakeSigner{email: "a@b", err: boom})
	require.NoError(t, err)

	_, err = client.DownloadURL(context.Background(), "bucket", "x.stl")
	require.ErrorIs(t, err, boom)
}

func TestLocatorResolve(t *testing.T) {
	locator := NewLocator()
	ctx := context.Background()

	cases := []struct {
		raw  string
		url  string
		kind ResolutionKind
	}{
		{raw: "", url: "", kind: ""},
		{raw: "http://x/y.stl", url: "http://x/y.stl", kind: KindPassthrough},
		{raw: " https://cdn.example.com/a.gcode ", url: "https://cdn.example.com/a.gcode", kind: KindPassthrough},
		{raw: "/files/a.stl", url: "/files/a.stl", kind: KindPassthrough},
		{raw: "a", url: "a", kind: KindPassthrough},
		{raw: "files/y.stl", url: "files/y.stl", kind: KindPassthrough},
		{raw: "../jobs/7.gcode?rev=2", url: "../jobs/7.gcode?rev=2", kind: KindPassthrough},
		{raw: "gs://iforge-prints/jobs/a b.stl", url: "https://storage.googleapis.com/iforge-prints/jobs/a%20b.stl", kind: KindPublic},
	}
	for _, tc := range cases {
		res, err := locator.Resolve(ctx, tc.raw)
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.url, res.URL, tc.raw)
		require.Equal(t, tc.kind, res.Kind, tc.raw)
	}
}

func TestLocatorRejectsUnsafeLocators(t *testing.T) {
	locator := NewLocator()
	for _, raw := range []string{"javascript:alert(1)", "file:///etc/passwd", "//evil.example/x.stl", "gs://bucket-only", "http:///nohost", "data:text/html,x", "JavaScript:alert(1)"} {
		_, err := locator.Resolve(context.Background(), raw)
		require.ErrorIs(t, err, ErrUnresolvable, raw)
	}
}

func TestLocatorAllowListAndSigning(t *testing.T) {
	signer := &fakeSigner{email: "viewer@print-queue.iam.gserviceaccount.com"}
	client, err := NewClient(signer)
	require.NoError(t, err)

	locator := NewLocator(
		WithSignedURLs(client),
		WithAllowedBuckets("iforge-prints", " "),
		WithPublicBaseURL("https://cdn.example.com/"),
	)

	res, err := locator.Resolve(context.Background(), "gs://iforge-prints/a.stl")
	require.NoError(t, err)
	require.Equal(t, KindSigned, res.Kind)
	require.False(t, res.ExpiresAt.IsZero())
	require.Contains(t, res.URL, "X-Goog-Signature=")

	_, err = locator.Resolve(context.Background(), "gs://someone-else/a.stl")
	require.ErrorIs(t, err, ErrBucketNotAllowed)
	require.ErrorIs(t, err, ErrUnresolvable)
}

func TestLocatorPublicBaseOverride(t *testing.T) {
	locator := NewLocator(WithPublicBaseURL("https://cdn.example.com/"))
	res, err := locator.Resolve(context.Background(), "gs://prints/a.stl")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/prints/a.stl", res.URL)
}

func TestServiceAccountSignerFromJSONAndFile(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	raw, err := json.Marshal(map[string]string{
		"client_email": "viewer@print-queue.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
	})
	require.NoError(t, err)

	signer, err := NewServiceAccountSigner(string(raw))
	require.NoError(t, err)
	require.Equal(t, "viewer@print-queue.iam.gserviceaccount.com", signer.Email())
	sig, err := signer.SignBytes(context.Background(), []byte("payload"))
	require.NoError(t, err)
	require.Len(t, sig, 256)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	fromFile, err := NewServiceAccountSigner(path)
	require.NoError(t, err)
	require.Equal(t, signer.Email(), fromFile.Email())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.SignBytes(ctx, []byte("payload"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestServiceAccountSignerRejectsBadKeys(t *testing.T) {
	for _, raw := range []string{"", `{"client_email":""}`, `{"client_email":"a@b","private_key":"nope"}`, "/does/not/exist.json"} {
		_, err := NewServiceAccountSigner(raw)
		require.Error(t, err, raw)
	}
}
