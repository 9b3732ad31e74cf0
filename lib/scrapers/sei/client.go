package sei

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"seiassist/lib/scrapers/sei/core"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/sei")

// Client drives the portal's listing, enrichment and PDF workflows on
// top of an authenticated core session. Methods are safe for strictly
// sequential use on one session; parallel batch downloads build one
// Client per worker instead of sharing this one.
type Client struct {
	Core *core.Client
	// when set, fetched pages and workflow intermediates are dumped
	// here for diagnosis
	DebugDir string
}

func NewClient(coreClient *core.Client) Client {
	return Client{Core: coreClient}
}

func (c Client) saveDebug(name, contents string) {
	if c.DebugDir == "" {
		return
	}
	err := os.MkdirAll(c.DebugDir, 0755)
	if err != nil {
		slog.Warn("failed to create debug dir", "dir", c.DebugDir, "err", err)
		return
	}
	path := filepath.Join(c.DebugDir, name)
	err = os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		slog.Warn("failed to save debug page", "path", path, "err", err)
	}
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeFilename(value, fallback string) string {
	safe := unsafeFilename.ReplaceAllString(value, "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return fallback
	}
	return safe
}
