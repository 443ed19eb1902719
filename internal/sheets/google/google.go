package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads the rubro taxonomy from a spreadsheet: one tab of entries
// and an optional tab of extra aliases.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	taxonomySheet string
	aliasSheet    string
}

var _ ports.TaxonomyReader = (*Client)(nil)

// Config selects the spreadsheet, its tabs and the service account.
type Config struct {
	SpreadsheetID   string
	TaxonomySheet   string
	AliasSheet      string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a read-only Sheets client. TaxonomySheet defaults to
// "Rubros"; an empty AliasSheet disables the alias tab.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	taxonomy := strings.TrimSpace(cfg.TaxonomySheet)
	if taxonomy == "" {
		taxonomy = "Rubros"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		taxonomySheet: taxonomy,
		aliasSheet:    strings.TrimSpace(cfg.AliasSheet),
	}, nil
}

// newSheetsService authenticates with a service account, from inline JSON,
// a file, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(data))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadTaxonomy implements sheets.TaxonomyReader
func (c *Client) ReadTaxonomy(ctx context.Context) ([]core.TaxonomyEntry, []core.AliasDefinition, error) {
	if c.svc == nil {
		return nil, nil, errors.New("sheets service not initialized")
	}

	values, err := c.readRange(ctx, c.taxonomySheet, "A:F")
	if err != nil {
		return nil, nil, err
	}
	entries, err := parseTaxonomy(values)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", c.taxonomySheet, err)
	}

	var aliases []core.AliasDefinition
	if c.aliasSheet != "" {
		values, err := c.readRange(ctx, c.aliasSheet, "A:B")
		if err != nil {
			return nil, nil, err
		}
		if aliases, err = parseAliases(values); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", c.aliasSheet, err)
		}
	}

	slog.InfoContext(ctx, "Taxonomy read from Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"rubros", len(entries),
		"aliases", len(aliases))
	return entries, aliases, nil
}

func (c *Client) readRange(ctx context.Context, sheetName, cols string) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
