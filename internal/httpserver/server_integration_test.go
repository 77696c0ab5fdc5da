package httpserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iforge-uos/print-queue-api/internal/platform/storage"
	"github.com/iforge-uos/print-queue-api/internal/testutil"
)

func get(t *testing.T, ts *httptest.Server, path string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestSTLPageRendersWidgetConfig(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/view_stl?stl_url=http://x/y.stl&shadows=true", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	require.Equal(t, "no-store, max-age=0", resp.Header.Get("Cache-Control"))

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "STL Viewer | iForge Print Queue", doc.Find("title").Text())
	require.Equal(t, "stl", doc.Find("#viewer-root").AttrOr("data-widget", ""))
	require.Equal(t, "https://esm.sh/react-stl-viewer@2.5.0", doc.Find("#viewer-root").AttrOr("data-widget-module", ""))
	require.Equal(t, 1, doc.Find(".viewer-note").Length())

	cfg := testutil.ViewerConfig(t, body)
	require.Equal(t, "http://x/y.stl", cfg["url"])
	require.Equal(t, true, cfg["shadows"])
	require.Equal(t, true, cfg["orbitControls"])
	require.Equal(t, true, cfg["showAxes"])
}

func TestShadowsDefaultOffAndCaseInsensitive(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)

	_, body := get(t, ts, "/view_stl?stl_url=http://x/y.stl", nil)
	require.Equal(t, false, testutil.ViewerConfig(t, body)["shadows"])

	for _, value := range []string{"TRUE", "true", "True"} {
		_, body := get(t, ts, "/view_stl?stl_url=http://x/y.stl&shadows="+value, nil)
		require.Equal(t, true, testutil.ViewerConfig(t, body)["shadows"], value)
	}

	_, body = get(t, ts, "/view_stl?stl_url=http://x/y.stl&shadows=yes", nil)
	require.Equal(t, false, testutil.ViewerConfig(t, body)["shadows"])
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "malformed_boolean_parameter", doc.Find(".viewer-problems li").AttrOr("data-code", ""))
}

func TestGCodePageRendersWidgetConfig(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/view_gcode?gcode_url=http://x/y.gcode", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := testutil.ViewerConfig(t, body)
	require.Equal(t, "http://x/y.gcode", cfg["url"])
	require.Equal(t, true, cfg["orbitControls"])
	require.Equal(t, 0.5, cfg["quality"])
	require.Equal(t, map[string]any{"gridWidth": float64(250), "gridLength": float64(210)}, cfg["floorProps"])

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "standard", doc.Find("select[name=preset] option[selected]").AttrOr("value", ""))
}

func TestNavigatingBetweenViewersKeepsNoState(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	_, first := get(t, ts, "/view_stl?stl_url=a&shadows=true", nil)
	stl := testutil.ViewerConfig(t, first)
	require.Equal(t, "a", stl["url"])
	require.Equal(t, true, stl["shadows"])

	_, second := get(t, ts, "/view_gcode?gcode_url=b", nil)
	require.Equal(t, 1, testutil.ParseHTML(t, second).Find("#viewer-root").Length())
	cfg := testutil.ViewerConfig(t, second)
	require.Equal(t, "b", cfg["url"])
	require.Equal(t, true, cfg["orbitControls"])
	_, hasShadows := cfg["shadows"]
	require.False(t, hasShadows, "gcode config must not carry stl state")
}

func TestLocatorsReachWidgetVerbatim(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	for path, want := range map[string]string{
		"/view_stl?stl_url=files/y.stl":            "files/y.stl",
		"/view_stl?stl_url=http://x/a;v=2.stl":     "http://x/a;v=2.stl",
		"/view_gcode?gcode_url=../jobs/7.gcode":    "../jobs/7.gcode",
		"/view_gcode?gcode_url=http://x/b;c.gcode": "http://x/b;c.gcode",
	} {
		resp, body := get(t, ts, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, 0, testutil.ParseHTML(t, body).Find(".viewer-problems li").Length(), path)
		require.Equal(t, want, testutil.ViewerConfig(t, body)["url"], path)
	}
}

func TestCanonicalLinkSortsParameters(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	_, body := get(t, ts, "/view_stl/?shadows=true&stl_url=a", nil)
	require.Equal(t, "/view_stl?shadows=true&stl_url=a", testutil.ParseHTML(t, body).Find(`link[rel="canonical"]`).AttrOr("href", ""))

	_, body = get(t, ts, "/view_gcode", nil)
	require.Equal(t, "/view_gcode", testutil.ParseHTML(t, body).Find(`link[rel="canonical"]`).AttrOr("href", ""))
}

func TestMissingResourceRendersEmptyState(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	ts := testutil.NewServer(t, testutil.WithLogger(zap.New(core)))

	resp, body := get(t, ts, "/view_stl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find(".viewer-empty").Length())
	require.Equal(t, 0, doc.Find("#viewer-root").Length())
	require.Equal(t, "missing_required_parameter", doc.Find(".viewer-problems li").AttrOr("data-code", ""))
	require.Equal(t, 1, logs.FilterMessage("viewer config degraded").Len())
}

func TestUnsafeLocatorRendersEmptyState(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	ts := testutil.NewServer(t, testutil.WithLogger(zap.New(core)))
	resp, body := get(t, ts, "/view_gcode?gcode_url=javascript:alert(1)", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := logs.FilterMessage("viewer config degraded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "javascript", fields["gcode_url_scheme"])
	require.NotContains(t, fields, "gcode_url")
	require.Equal(t, []interface{}{"gcode_url"}, fields["params"])

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find(".viewer-empty").Length())
	require.NotContains(t, string(body), "javascript:alert")
	require.Equal(t, "unresolvable_resource", doc.Find(".viewer-problems li").AttrOr("data-code", ""))
}

func TestGCSLocatorResolvesToPublicURL(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithLocator(storage.NewLocator(storage.WithAllowedBuckets("iforge-prints"))))

	_, body := get(t, ts, "/view_stl?stl_url=gs://iforge-prints/jobs/42.stl", nil)
	require.Equal(t, "https://storage.googleapis.com/iforge-prints/jobs/42.stl", testutil.ViewerConfig(t, body)["url"])

	_, body = get(t, ts, "/view_stl?stl_url=gs://elsewhere/jobs/42.stl", nil)
	require.Equal(t, 1, testutil.ParseHTML(t, body).Find(".viewer-empty").Length())
}

func TestNameLabelIsPlainText(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	_, body := get(t, ts, "/view_stl?stl_url=/a.stl&name=%3Cb%3EBenchy%3C%2Fb%3E", nil)

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "Benchy", doc.Find("section#viewer h1").Text())
	require.Equal(t, 0, doc.Find("section#viewer h1 b").Length())
}

func TestHTMXRequestReceivesFragment(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/view_gcode?gcode_url=/b.gcode&preset=draft", map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Values("Vary"), "HX-Request")

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 0, doc.Find("title").Length())
	require.Equal(t, 1, doc.Find("section#viewer").Length())
	require.Equal(t, 0.2, testutil.ViewerConfig(t, body)["quality"])

	_, boosted := get(t, ts, "/view_gcode?gcode_url=/b.gcode", map[string]string{"HX-Request": "true", "HX-Boosted": "true"})
	require.Equal(t, 1, testutil.ParseHTML(t, boosted).Find("title").Length())
}

func TestUnknownPathRendersNotFoundPage(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/view_obj?obj_url=a", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "Page not found", doc.Find(".not-found h1").Text())
	require.Equal(t, "/view_obj", doc.Find(".not-found code").Text())
}

func TestTrailingSlashIsTolerated(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/view_stl/?stl_url=/a.stl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/a.stl", testutil.ViewerConfig(t, body)["url"])
}

func TestViewerAPI(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/api/viewer/stl?stl_url=http://x/y.stl&shadows=nope", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))

	var payload struct {
		Widget   string         `json:"widget"`
		Path     string         `json:"path"`
		Empty    bool           `json:"empty"`
		Config   map[string]any `json:"config"`
		Problems []struct {
			Code  string `json:"code"`
			Param string `json:"param"`
		} `json:"problems"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, "stl", payload.Widget)
	require.Equal(t, "/view_stl", payload.Path)
	require.False(t, payload.Empty)
	require.Equal(t, "http://x/y.stl", payload.Config["url"])
	require.Len(t, payload.Problems, 1)
	require.Equal(t, "malformed_boolean_parameter", payload.Problems[0].Code)
	require.Equal(t, "shadows", payload.Problems[0].Param)

	resp, body = get(t, ts, "/api/viewer/obj", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.Equal(t, "unknown_viewer", envelope["error"])
	require.NotEmpty(t, envelope["request_id"])
}

func TestHealthzAndStatic(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, body := get(t, ts, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, body = get(t, ts, "/static/viewer.js", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	require.Contains(t, string(body), "viewer-config")
}
