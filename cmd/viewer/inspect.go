package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iforge-uos/print-queue-api/internal/httpserver"
	"github.com/iforge-uos/print-queue-api/internal/viewer"
)

func newInspectCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path?query>",
		Short: "Print the widget config a viewer URL derives",
		Long: `Print the widget configuration the server derives for a page URL,
together with any query parameters that were replaced by defaults.

Examples:
  viewer inspect '/view_stl?stl_url=http://host/part.stl&shadows=true'
  viewer inspect '/view_gcode?gcode_url=gs://prints/job.gcode&preset=draft'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return runInspect(cmd.Context(), stdout, stderr, envFile, args[0])
		},
	}
}

func runInspect(ctx context.Context, stdout, stderr io.Writer, envFile, target string) error {
	path, rawQuery, _ := strings.Cut(strings.TrimSpace(target), "?")
	route, ok := viewer.Dispatch(path)
	if !ok {
		fmt.Fprintf(stderr, "viewer: no viewer page at %q\n", path) //nolint:errcheck // best-effort stderr
		return errExit
	}

	// Degradation warnings go to stderr so stdout stays valid JSON.
	logger := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(stderr),
		zapcore.WarnLevel,
	))

	cfg, fetcher, err := loadConfig(ctx, logger, envFile)
	if err != nil {
		return err
	}
	defer fetcher.Close() //nolint:errcheck

	serverCfg, err := serverConfig(cfg, logger, nil)
	if err != nil {
		return err
	}
	srv, err := httpserver.New(serverCfg)
	if err != nil {
		return err
	}

	apiPath := "/api/viewer/" + string(route.Widget)
	if rawQuery != "" {
		apiPath += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return fmt.Errorf("derive config: status %d: %s", rec.Code, strings.TrimSpace(rec.Body.String()))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, rec.Body.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("format config: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(stdout)
	return err
}
