package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/schema"
	"github.com/prudhvinik1/sheetsync/internal/sheets"
	"github.com/prudhvinik1/sheetsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type countingTokens struct {
	inner sheets.TokenProvider
	calls atomic.Int32
}

func (c *countingTokens) AccessToken(ctx context.Context) (string, error) {
	c.calls.Add(1)
	return c.inner.AccessToken(ctx)
}

type memoryEvents struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func (m *memoryEvents) Append(ctx context.Context, event *models.SyncEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryEvents) ListByRecord(ctx context.Context, table models.Table, recordID string) ([]*models.SyncEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SyncEvent
	for _, e := range m.events {
		if e.Table == table && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryEvents) ListRecent(ctx context.Context, status models.SyncStatus, limit int) ([]*models.SyncEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SyncEvent
	for _, e := range m.events {
		if status == "" || e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

type syncFixture struct {
	service *SyncService
	fake    *testutil.FakeSheets
	tokens  *countingTokens
	events  *memoryEvents
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	fake := testutil.NewFakeSheets(t)
	for i, table := range schema.Tables() {
		layout, _ := schema.LayoutFor(table)
		fake.AddSheet(layout.Sheet, int64(100+i), []string{"#", "ID"})
	}

	_, pemText := testutil.NewTestKey(t)
	provider := sheets.NewServiceAccountTokenProvider(sheets.Credentials{
		ClientEmail: "sync@example.iam.gserviceaccount.com",
		PrivateKey:  pemText,
		TokenURL:    fake.TokenURL(),
	}, fake.HTTPClient())
	tokens := &countingTokens{inner: sheets.NewCachingTokenProvider(provider, nil, "test", nil)}
	events := &memoryEvents{}

	client := sheets.NewClient(fake.HTTPClient(), fake.BaseURL(), testutil.FakeSpreadsheetID)
	service := NewSyncService(tokens, client, nil, events, 2, nil)
	service.now = func() time.Time { return fixedNow }

	return &syncFixture{service: service, fake: fake, tokens: tokens, events: events}
}

func carData(model string) map[string]any {
	return map[string]any{
		"make":    "Toyota",
		"model":   model,
		"year":    float64(2021),
		"vin":     "JT123",
		"mileage": float64(15000.5),
		"price":   "18999",
	}
}

func TestSyncService_InsertMatchesMapping(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	result := f.service.Sync(ctx, models.SyncRequest{
		Action: models.ActionInsert, Table: models.TableCarData, RecordID: "car-1", Data: carData("Corolla"),
	})

	require.True(t, result.Success, result.Error)
	rows := f.fake.Rows("Cars")
	require.Len(t, rows, 2)

	expected, err := schema.Map(models.TableCarData, "car-1", carData("Corolla"), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, expected[1:], rows[1][1:])
}

func TestSyncService_UpdateKeepsSequence(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	for _, id := range []string{"car-1", "car-2"} {
		res := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionInsert, Table: models.TableCarData, RecordID: id, Data: carData("Corolla")})
		require.True(t, res.Success, res.Error)
	}

	result := f.service.Sync(ctx, models.SyncRequest{
		Action: models.ActionUpdate, Table: models.TableCarData, RecordID: "car-2", Data: carData("Camry"),
	})

	require.True(t, result.Success, result.Error)
	rows := f.fake.Rows("Cars")
	require.Len(t, rows, 3)
	assert.Equal(t, "2", rows[2][0], "sequence unchanged")
	expected, _ := schema.Map(models.TableCarData, "car-2", carData("Camry"), fixedNow)
	assert.Equal(t, expected[1:], rows[2][1:])
}

func TestSyncService_UpdateMissingAppends(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	res := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionInsert, Table: models.TableCarData, RecordID: "car-1", Data: carData("Corolla")})
	require.True(t, res.Success)

	result := f.service.Sync(ctx, models.SyncRequest{
		Action: models.ActionUpdate, Table: models.TableCarData, RecordID: "lost", Data: carData("Prius"),
	})

	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Message, "appended")
	rows := f.fake.Rows("Cars")
	require.Len(t, rows, 3)
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "lost", rows[2][1])
}

func TestSyncService_DeleteIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	res := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionInsert, Table: models.TableCarData, RecordID: "car-1", Data: carData("Corolla")})
	require.True(t, res.Success)

	first := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionDelete, Table: models.TableCarData, RecordID: "car-1"})
	second := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionDelete, Table: models.TableCarData, RecordID: "car-1"})

	assert.True(t, first.Success, first.Error)
	assert.Equal(t, "row deleted", first.Message)
	assert.True(t, second.Success, second.Error)
	assert.Equal(t, "row already absent", second.Message)
	assert.Len(t, f.fake.Rows("Cars"), 1)
}

func TestSyncService_DeleteAbsentOnlyLooksUp(t *testing.T) {
	f := newSyncFixture(t)

	result := f.service.Sync(context.Background(), models.SyncRequest{
		Action: models.ActionDelete, Table: models.TableCarData, RecordID: "X",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, f.fake.CountRequests(http.MethodGet))
	assert.Equal(t, 0, f.fake.CountRequests(http.MethodPost))
	assert.Equal(t, 0, f.fake.CountRequests(http.MethodPut))
}

func TestSyncService_ValidationBeforeToken(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.SyncRequest
		want error
	}{
		{"unknown action", models.SyncRequest{Action: "upsert", Table: models.TableCarData, RecordID: "1"}, ErrValidation},
		{"missing table", models.SyncRequest{Action: models.ActionDelete, RecordID: "1"}, ErrValidation},
		{"unknown table", models.SyncRequest{Action: models.ActionDelete, Table: "users", RecordID: "1"}, ErrUnsupportedTable},
		{"delete without key", models.SyncRequest{Action: models.ActionDelete, Table: models.TableCarData}, ErrValidation},
		{"insert without data", models.SyncRequest{Action: models.ActionInsert, Table: models.TableCarData, RecordID: "1"}, ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := validateRequest(tc.req)
			assert.ErrorIs(t, err, tc.want)

			result := f.service.Sync(ctx, tc.req)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
		})
	}

	assert.Equal(t, int32(0), f.tokens.calls.Load(), "no token for doomed requests")
	assert.Equal(t, 0, f.fake.TokenRequests())
}

func TestSyncService_KeyFromData(t *testing.T) {
	f := newSyncFixture(t)

	result := f.service.Sync(context.Background(), models.SyncRequest{
		Action: models.ActionInsert, Table: models.TableCustomers, Data: map[string]any{"id": "cust-9", "name": "Ada"},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "cust-9", f.fake.Rows("Customers")[1][1])
}

func TestSyncService_WriteFailureIsReported(t *testing.T) {
	f := newSyncFixture(t)
	f.fake.FailWrites = true

	result := f.service.Sync(context.Background(), models.SyncRequest{
		Action: models.ActionInsert, Table: models.TableCarData, RecordID: "car-1", Data: carData("Corolla"),
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, sheets.ErrWrite.Error())

	failed, err := f.events.ListRecent(context.Background(), models.SyncStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "car-1", failed[0].RecordID)
}

func TestSyncService_RecordsEvents(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.service.Sync(ctx, models.SyncRequest{Action: models.ActionInsert, Table: models.TableCarData, RecordID: "car-1", Data: carData("Corolla")})
	f.service.Sync(ctx, models.SyncRequest{Action: models.ActionDelete, Table: models.TableCarData, RecordID: "car-1"})

	events, err := f.events.ListByRecord(ctx, models.TableCarData, "car-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.ActionInsert, events[0].Action)
	assert.Equal(t, models.SyncStatusSucceeded, events[1].Status)
}

func TestSyncService_TokenReusedAcrossSyncs(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		res := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionInsert, Table: models.TableNotes, RecordID: id, Data: map[string]any{"body": id}})
		require.True(t, res.Success, res.Error)
	}

	assert.Equal(t, 1, f.fake.TokenRequests())
}

func TestSyncService_ConcurrentSameKeyLeavesOneRow(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionUpdate, Table: models.TableCarData, RecordID: "car-1", Data: carData("Corolla")})
			assert.True(t, res.Success, res.Error)
		}()
	}
	wg.Wait()

	assert.Len(t, f.fake.Rows("Cars"), 2, "update-or-append under the key lock yields one row")
}

func TestSyncService_RoundTrip(t *testing.T) {
	f := newSyncFixture(t)
	data := map[string]any{"car_id": "car-1", "customer_id": "cust-1", "sale_price": "21000", "sale_date": "2024-02-28", "payment_method": ""}

	res := f.service.Sync(context.Background(), models.SyncRequest{Action: models.ActionInsert, Table: models.TableSales, RecordID: "sale-1", Data: data})
	require.True(t, res.Success, res.Error)

	key, got, syncedAt, err := schema.Unmap(models.TableSales, f.fake.Rows("Sales")[1])

	require.NoError(t, err)
	assert.Equal(t, "sale-1", key)
	assert.True(t, fixedNow.Equal(syncedAt))
	for field, v := range data {
		if v == "" {
			assert.NotContains(t, got, field)
			continue
		}
		assert.Equal(t, v, got[field])
	}
}

func TestSyncService_Import(t *testing.T) {
	f := newSyncFixture(t)

	rows := []ImportRow{
		{Key: "n1", Data: map[string]any{"body": "one"}},
		{Key: "n2", Data: map[string]any{"body": "two"}},
		{Key: "n3", Data: map[string]any{"body": "three"}},
	}

	result, err := f.service.Import(context.Background(), models.TableNotes, rows)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Chunks, 2, "chunk size is 2")
	assert.Equal(t, 1, result.Chunks[0].FirstSequence)
	assert.Equal(t, 3, result.Chunks[1].FirstSequence)

	sheetRows := f.fake.Rows("Notes")
	require.Len(t, sheetRows, 4)
	assert.Equal(t, []string{"3", "n3"}, sheetRows[3][:2])
}

func TestSyncService_ImportChunkFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.fake.FailWrites = true

	result, err := f.service.Import(context.Background(), models.TableNotes, []ImportRow{{Key: "n1", Data: map[string]any{}}})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	require.Len(t, result.Chunks, 1)
	assert.NotEmpty(t, result.Chunks[0].Error)
}

func TestSyncService_ImportValidation(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.service.Import(context.Background(), "users", nil)
	assert.ErrorIs(t, err, ErrUnsupportedTable)

	_, err = f.service.Import(context.Background(), models.TableNotes, []ImportRow{{Key: " "}})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, f.fake.TokenRequests())
}

func TestSyncService_TokenFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.fake.TokenStatus = http.StatusBadRequest

	result := f.service.Sync(context.Background(), models.SyncRequest{Action: models.ActionDelete, Table: models.TableCarData, RecordID: "X"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, sheets.ErrAuth.Error())
}

func TestSyncService_ConcurrentInsertsGetDistinctSequences(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := f.service.Sync(ctx, models.SyncRequest{
				Action: models.ActionInsert, Table: models.TableCarData, RecordID: fmt.Sprintf("car-%d", i), Data: carData("Corolla"),
			})
			assert.True(t, res.Success, res.Error)
		}(i)
	}
	wg.Wait()

	rows := f.fake.Rows("Cars")
	require.Len(t, rows, 9)
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		assert.False(t, seen[row[0]], "sequence %s assigned twice", row[0])
		seen[row[0]] = true
	}
	for seq := 1; seq <= 8; seq++ {
		assert.True(t, seen[strconv.Itoa(seq)], "sequence %d missing", seq)
	}
}

func TestSyncService_ConcurrentMixedKeysKeepRowsIntact(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		res := f.service.Sync(ctx, models.SyncRequest{Action: models.ActionInsert, Table: models.TableNotes, RecordID: fmt.Sprintf("n%d", i), Data: map[string]any{"body": "v1"}})
		require.True(t, res.Success, res.Error)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := models.SyncRequest{Table: models.TableNotes, RecordID: fmt.Sprintf("n%d", i)}
			if i%2 == 0 {
				req.Action = models.ActionDelete
			} else {
				req.Action = models.ActionUpdate
				req.Data = map[string]any{"body": "v2"}
			}
			res := f.service.Sync(ctx, req)
			assert.True(t, res.Success, res.Error)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.service.Import(ctx, models.TableNotes, []ImportRow{{Key: "imp-1", Data: map[string]any{"body": "imported"}}})
		assert.NoError(t, err)
	}()
	wg.Wait()

	bodies := make(map[string]string)
	sequences := make(map[string]bool)
	for _, row := range f.fake.Rows("Notes")[1:] {
		key, data, _, err := schema.Unmap(models.TableNotes, row)
		require.NoError(t, err)
		bodies[key] = data["body"]
		assert.False(t, sequences[row[0]], "sequence %s assigned twice", row[0])
		sequences[row[0]] = true
	}
	assert.Equal(t, map[string]string{"n1": "v2", "n3": "v2", "n5": "v2", "imp-1": "imported"}, bodies)
}

type staleTokenCache struct {
	mu    sync.Mutex
	token *models.AccessToken
}

func (c *staleTokenCache) Get(ctx context.Context, key string) (*models.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *staleTokenCache) Set(ctx context.Context, key string, token *models.AccessToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return nil
}

func (c *staleTokenCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	return nil
}

func TestSyncService_RejectedTokenIsDropped(t *testing.T) {
	fake := testutil.NewFakeSheets(t)
	fake.AddSheet("Notes", 5, []string{"#", "ID"})
	_, pemText := testutil.NewTestKey(t)
	signer := sheets.NewServiceAccountTokenProvider(sheets.Credentials{
		ClientEmail: "sync@example.iam.gserviceaccount.com",
		PrivateKey:  pemText,
		TokenURL:    fake.TokenURL(),
	}, fake.HTTPClient())

	// ARRANGE: the shared cache hands out a token the API no longer accepts
	cache := &staleTokenCache{token: &models.AccessToken{Token: "revoked", ExpiresAt: time.Now().Add(time.Hour)}}
	tokens := sheets.NewCachingTokenProvider(signer, cache, "k", nil)
	client := sheets.NewClient(fake.HTTPClient(), fake.BaseURL(), testutil.FakeSpreadsheetID)
	service := NewSyncService(tokens, client, nil, nil, 10, nil)
	req := models.SyncRequest{Action: models.ActionInsert, Table: models.TableNotes, RecordID: "n1", Data: map[string]any{"body": "hi"}}

	// ACT
	first := service.Sync(context.Background(), req)
	require.False(t, first.Success)
	require.Equal(t, 0, fake.TokenRequests(), "stale token came from the cache")
	second := service.Sync(context.Background(), req)

	// ASSERT
	require.True(t, second.Success, second.Error)
	assert.Equal(t, 1, fake.TokenRequests())
	assert.Equal(t, testutil.FakeAccessToken, cache.token.Token)
}
