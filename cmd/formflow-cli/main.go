package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/clog"

	"github.com/goliatone/go-formflow/internal/loader"
	"github.com/goliatone/go-formflow/pkg/cascade"
	"github.com/goliatone/go-formflow/pkg/metadata"
	"github.com/goliatone/go-formflow/pkg/openapi"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/widgets"
)

func main() {
	source := flag.String("metadata", "", "metadata document path or URL")
	operation := flag.String("operation", "", "treat -metadata as an OpenAPI document and convert this operation")
	record := flag.String("record", "", "JSON file with initial field values")
	output := flag.String("output", "", "output file for submitted values (stdout if empty)")
	optionsBase := flag.String("options-base", "", "base URL for reference option lookups")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := newLogger(*debug)

	if *source == "" {
		logger.Error("missing required -metadata flag")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	if err := run(ctx, logger, *source, *operation, *record, *output, *optionsBase); err != nil {
		logger.Error("formflow-cli failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := clog.New(
		clog.WithWriter(os.Stderr),
		clog.WithLevel(level),
	)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func run(ctx context.Context, logger *slog.Logger, source, operation, recordPath, outputPath, optionsBase string) error {
	doc, err := loadDocument(ctx, source, operation)
	if err != nil {
		return err
	}

	record, err := loadRecord(recordPath)
	if err != nil {
		return err
	}

	fetcher := cascade.NewHTTPFetcher(
		cascade.WithBaseURL(optionsBase),
		cascade.WithRequestTimeout(10*time.Second),
	)

	form, err := session.New(doc, record,
		session.WithLogger(logger),
		session.WithFetcher(fetcher),
	)
	if err != nil {
		return err
	}
	defer form.Destroy()

	container := widgets.NewMemoryContainer(nil)
	if err := form.Render(ctx, container); err != nil {
		return err
	}
	form.Wait()

	if err := promptForm(ctx, form, doc); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(form.Values(), "", "  ")
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, payload, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("Values written to %s\n", outputPath)
		return nil
	}
	fmt.Println(string(payload))
	return nil
}

// loadDocument reads the metadata document, converting from OpenAPI when an
// operation id is supplied.
func loadDocument(ctx context.Context, source, operation string) (metadata.Document, error) {
	if operation == "" {
		l := loader.New(loader.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
		return l.Load(ctx, parseSource(source))
	}

	raw, err := readSource(ctx, source)
	if err != nil {
		return metadata.Document{}, err
	}
	return openapi.New().Convert(ctx, raw, operation)
}

func parseSource(raw string) loader.Source {
	path := strings.TrimSpace(raw)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return loader.SourceFromURL(path)
	}
	return loader.SourceFromFile(path)
}

func readSource(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: unexpected status %s", source, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(source)
}

func loadRecord(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return record, nil
}
