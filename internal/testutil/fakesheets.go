package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	FakeSpreadsheetID = "test-spreadsheet"
	FakeAccessToken   = "fake-access-token"
)

// Request is one call recorded by FakeSheets.
type Request struct {
	Method string
	Path   string
	Range  string
}

type fakeSheet struct {
	id   int64
	rows [][]string
}

// FakeSheets is an in-memory spreadsheet plus token endpoint behind an
// httptest server. It speaks the subset of Sheets v4 the client uses.
type FakeSheets struct {
	mu            sync.Mutex
	server        *httptest.Server
	sheets        map[string]*fakeSheet
	requests      []Request
	tokenRequests int

	// FailWrites makes every PUT/POST on the spreadsheet return 500.
	FailWrites bool
	// TokenStatus overrides the token endpoint status when non-zero.
	TokenStatus int
	// OmitAccessToken makes the token endpoint answer 200 without access_token.
	OmitAccessToken bool
}

func NewFakeSheets(t *testing.T) *FakeSheets {
	t.Helper()
	f := &FakeSheets{sheets: make(map[string]*fakeSheet)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakeSheets) BaseURL() string  { return f.server.URL + "/v4" }
func (f *FakeSheets) TokenURL() string { return f.server.URL + "/token" }
func (f *FakeSheets) HTTPClient() *http.Client {
	return f.server.Client()
}

// AddSheet creates a sheet with the given initial rows (typically a header).
func (f *FakeSheets) AddSheet(title string, id int64, rows ...[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheets[title] = &fakeSheet{id: id, rows: copyRows(rows)}
}

func (f *FakeSheets) Rows(title string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sheets[title]
	if !ok {
		return nil
	}
	return copyRows(s.rows)
}

func (f *FakeSheets) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// CountRequests counts spreadsheet calls with the given method.
func (f *FakeSheets) CountRequests(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (f *FakeSheets) TokenRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenRequests
}

func (f *FakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/token" {
		f.serveToken(w, r)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+FakeAccessToken {
		writeFakeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/")
	if !ok {
		writeFakeError(w, http.StatusNotFound, "unknown path")
		return
	}

	if (r.Method == http.MethodPut || r.Method == http.MethodPost) && f.FailWrites {
		f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path})
		writeFakeError(w, http.StatusInternalServerError, "backend error")
		return
	}

	switch {
	case strings.HasSuffix(rest, ":batchUpdate"):
		f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path})
		f.serveBatchUpdate(w, r)
	case strings.Contains(rest, "/values/"):
		_, rng, _ := strings.Cut(rest, "/values/")
		rng = strings.TrimSuffix(rng, ":append")
		f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path, Range: rng})
		f.serveValues(w, r, rng)
	default:
		f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path})
		f.serveMetadata(w)
	}
}

func (f *FakeSheets) serveToken(w http.ResponseWriter, r *http.Request) {
	f.tokenRequests++
	if err := r.ParseForm(); err != nil {
		writeFakeError(w, http.StatusBadRequest, "bad form")
		return
	}
	if r.PostForm.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
		writeFakeError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}
	if len(strings.Split(r.PostForm.Get("assertion"), ".")) != 3 {
		writeFakeError(w, http.StatusBadRequest, "invalid_grant")
		return
	}
	if f.TokenStatus != 0 {
		writeFakeError(w, f.TokenStatus, "token endpoint failure")
		return
	}

	resp := map[string]any{"expires_in": 3600, "token_type": "Bearer"}
	if !f.OmitAccessToken {
		resp["access_token"] = FakeAccessToken
	}
	writeFakeJSON(w, resp)
}

func (f *FakeSheets) serveValues(w http.ResponseWriter, r *http.Request, rng string) {
	title, a1 := splitRange(rng)
	sheet, ok := f.sheets[title]
	if !ok {
		writeFakeError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeFakeJSON(w, map[string]any{
			"range":          rng,
			"majorDimension": "ROWS",
			"values":         sheet.read(a1),
		})
	case http.MethodPut:
		rows, err := decodeRows(r)
		if err != nil || len(rows) != 1 {
			writeFakeError(w, http.StatusBadRequest, "bad body")
			return
		}
		_, row := parseCell(a1)
		for len(sheet.rows) < row {
			sheet.rows = append(sheet.rows, nil)
		}
		sheet.rows[row-1] = rows[0]
		writeFakeJSON(w, map[string]any{"updatedRange": rng, "updatedRows": 1})
	case http.MethodPost:
		rows, err := decodeRows(r)
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, "bad body")
			return
		}
		sheet.trim()
		sheet.rows = append(sheet.rows, rows...)
		writeFakeJSON(w, map[string]any{"updates": map[string]any{"updatedRows": len(rows)}})
	default:
		writeFakeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (f *FakeSheets) serveMetadata(w http.ResponseWriter) {
	type props struct {
		SheetID int64  `json:"sheetId"`
		Title   string `json:"title"`
	}
	type entry struct {
		Properties props `json:"properties"`
	}
	var list []entry
	for title, s := range f.sheets {
		list = append(list, entry{Properties: props{SheetID: s.id, Title: title}})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Properties.SheetID < list[j].Properties.SheetID })
	writeFakeJSON(w, map[string]any{"sheets": list})
}

func (f *FakeSheets) serveBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			DeleteDimension *struct {
				Range struct {
					SheetID    int64  `json:"sheetId"`
					Dimension  string `json:"dimension"`
					StartIndex int    `json:"startIndex"`
					EndIndex   int    `json:"endIndex"`
				} `json:"range"`
			} `json:"deleteDimension"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeError(w, http.StatusBadRequest, "bad body")
		return
	}

	for _, req := range body.Requests {
		if req.DeleteDimension == nil {
			continue
		}
		rg := req.DeleteDimension.Range
		var sheet *fakeSheet
		for _, s := range f.sheets {
			if s.id == rg.SheetID {
				sheet = s
			}
		}
		if sheet == nil || rg.Dimension != "ROWS" || rg.StartIndex < 0 || rg.EndIndex > len(sheet.rows) || rg.StartIndex >= rg.EndIndex {
			writeFakeError(w, http.StatusBadRequest, "invalid deleteDimension range")
			return
		}
		sheet.rows = append(sheet.rows[:rg.StartIndex], sheet.rows[rg.EndIndex:]...)
	}
	writeFakeJSON(w, map[string]any{"spreadsheetId": FakeSpreadsheetID})
}

// read answers a column ("B:B") or single cell ("A5") read the way the API
// does: trailing empty rows are dropped and empty cells come back as [].
func (s *fakeSheet) read(a1 string) [][]string {
	if col, ok := parseColumn(a1); ok {
		out := make([][]string, 0, len(s.rows))
		for _, row := range s.rows {
			if col < len(row) && row[col] != "" {
				out = append(out, []string{row[col]})
			} else {
				out = append(out, []string{})
			}
		}
		for len(out) > 0 && len(out[len(out)-1]) == 0 {
			out = out[:len(out)-1]
		}
		return out
	}

	col, row := parseCell(a1)
	if row < 1 || row > len(s.rows) || col >= len(s.rows[row-1]) || s.rows[row-1][col] == "" {
		return nil
	}
	return [][]string{{s.rows[row-1][col]}}
}

func (s *fakeSheet) trim() {
	for len(s.rows) > 0 && isBlank(s.rows[len(s.rows)-1]) {
		s.rows = s.rows[:len(s.rows)-1]
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func splitRange(rng string) (string, string) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return rng, ""
	}
	title := rng[:i]
	if len(title) >= 2 && title[0] == '\'' && title[len(title)-1] == '\'' {
		title = strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	return title, rng[i+1:]
}

// parseColumn accepts "B:B" and "A:B"; the first column is returned.
func parseColumn(a1 string) (int, bool) {
	from, _, ok := strings.Cut(a1, ":")
	if !ok || len(from) != 1 || from[0] < 'A' || from[0] > 'Z' {
		return 0, false
	}
	return int(from[0] - 'A'), true
}

func parseCell(a1 string) (int, int) {
	if a1 == "" || a1[0] < 'A' || a1[0] > 'Z' {
		return 0, 0
	}
	row, err := strconv.Atoi(a1[1:])
	if err != nil {
		return 0, 0
	}
	return int(a1[0] - 'A'), row
}

func decodeRows(r *http.Request) ([][]string, error) {
	var body struct {
		Values [][]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	rows := make([][]string, len(body.Values))
	for i, row := range body.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if s, ok := v.(string); ok {
				cells[j] = s
			}
		}
		rows[i] = cells
	}
	return rows, nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}
