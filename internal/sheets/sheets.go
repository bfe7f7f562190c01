// Package sheets reads the club's shared race-calendar spreadsheet.
//
// The spreadsheet is world-readable, so a static API key is enough — no
// service account, no OAuth dance. The two failure modes members actually
// hit (the Sheets API not enabled on the key's project, and a key without
// permission) get their own actionable messages; everything else surfaces
// as a generic upstream failure.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/sakif/runclub/internal/apperror"
)

// calendarRange covers the calendar's data rows: row 1 is the header, and
// columns A–U hold the seven fixed fields plus up to thirteen runner names.
const calendarRange = "A2:U100"

// RowFetcher is the boundary the race service fetches through; tests
// substitute a fake.
type RowFetcher interface {
	// FetchRows returns the calendar's data rows with every cell
	// whitespace-trimmed. Trailing empty cells may be absent entirely —
	// the Sheets API truncates them.
	FetchRows(ctx context.Context) ([][]string, error)
}

var _ RowFetcher = (*Client)(nil)

// Client reads one spreadsheet with a static API key.
type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

func New(ctx context.Context, apiKey, spreadsheetID string) (*Client, error) {
	srv, err := sheetsv4.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("sheets: creating service: %w", err)
	}
	return &Client{srv: srv, spreadsheetID: spreadsheetID}, nil
}

// FetchRows reads the calendar range and trims every cell.
func (c *Client) FetchRows(ctx context.Context) ([][]string, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, calendarRange).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = strings.TrimSpace(fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// classify maps Google API errors onto the two cases a member can fix
// themselves versus everything else.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 403 {
		if strings.Contains(gerr.Message, "has not been used") ||
			strings.Contains(gerr.Message, "is disabled") {
			return apperror.Unavailable(
				"the Google Sheets API is not enabled for this API key's project")
		}
		return apperror.Unavailable(
			"the API key does not have permission to read the race spreadsheet")
	}
	return apperror.Unavailable(fmt.Sprintf("fetching race calendar: %v", err))
}
