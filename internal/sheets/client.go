package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	insertRows            = "INSERT_ROWS"
)

// API is the narrow spreadsheet surface used by the locator, sequencer and mutator.
type API interface {
	GetValues(ctx context.Context, rng string) ([][]string, error)
	UpdateValues(ctx context.Context, rng string, rows [][]string) error
	AppendValues(ctx context.Context, rng string, rows [][]string) error
	SheetID(ctx context.Context, title string) (int64, error)
	DeleteRows(ctx context.Context, sheetID int64, startIndex, endIndex int) error
}

// Client is a hand-written Sheets v4 REST client bound to one spreadsheet.
// A Client without a token is a template; call WithToken before use.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	spreadsheetID string
	token         string
}

func NewClient(httpClient *http.Client, baseURL, spreadsheetID string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
	}
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type dimensionRange struct {
	SheetID    int64  `json:"sheetId"`
	Dimension  string `json:"dimension"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

type batchUpdateRequest struct {
	Requests []batchRequest `json:"requests"`
}

type batchRequest struct {
	DeleteDimension *deleteDimension `json:"deleteDimension,omitempty"`
}

type deleteDimension struct {
	Range dimensionRange `json:"range"`
}

func (c *Client) GetValues(ctx context.Context, rng string) ([][]string, error) {
	endpoint := c.valuesURL(rng, "")

	var out valueRange
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}

	rows := make([][]string, len(out.Values))
	for i, row := range out.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellString(v)
		}
		rows[i] = cells
	}
	return rows, nil
}

func (c *Client) UpdateValues(ctx context.Context, rng string, rows [][]string) error {
	q := url.Values{}
	q.Set("valueInputOption", valueInputUserEntered)
	endpoint := c.valuesURL(rng, "") + "?" + q.Encode()

	body := valueRange{Range: rng, MajorDimension: "ROWS", Values: toValues(rows)}
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

func (c *Client) AppendValues(ctx context.Context, rng string, rows [][]string) error {
	q := url.Values{}
	q.Set("valueInputOption", valueInputUserEntered)
	q.Set("insertDataOption", insertRows)
	endpoint := c.valuesURL(rng, ":append") + "?" + q.Encode()

	body := valueRange{Range: rng, MajorDimension: "ROWS", Values: toValues(rows)}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// SheetID resolves a sheet title to its numeric grid id.
func (c *Client) SheetID(ctx context.Context, title string) (int64, error) {
	q := url.Values{}
	q.Set("fields", "sheets.properties")
	endpoint := c.spreadsheetURL("") + "?" + q.Encode()

	var meta spreadsheetMeta
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &meta); err != nil {
		return 0, err
	}

	for _, s := range meta.Sheets {
		if s.Properties.Title == title {
			return s.Properties.SheetID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrSheetNotFound, title)
}

// DeleteRows removes the 0-based, end-exclusive row range from a sheet.
func (c *Client) DeleteRows(ctx context.Context, sheetID int64, startIndex, endIndex int) error {
	body := batchUpdateRequest{
		Requests: []batchRequest{{
			DeleteDimension: &deleteDimension{Range: dimensionRange{
				SheetID:    sheetID,
				Dimension:  "ROWS",
				StartIndex: startIndex,
				EndIndex:   endIndex,
			}},
		}},
	}
	return c.do(ctx, http.MethodPost, c.spreadsheetURL(":batchUpdate"), body, nil)
}

func (c *Client) spreadsheetURL(suffix string) string {
	return c.baseURL + "/spreadsheets/" + url.PathEscape(c.spreadsheetID) + suffix
}

func (c *Client) valuesURL(rng, suffix string) string {
	return c.spreadsheetURL("") + "/values/" + url.PathEscape(rng) + suffix
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), 512),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}

func toValues(rows [][]string) [][]any {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return values
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// A1 helpers. Sheet titles are always quoted so names with spaces or
// punctuation address correctly.

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func columnRange(sheet, column string) string {
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), column, column)
}

func cellRange(sheet, column string, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), column, row)
}
