package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/services"
	"github.com/prudhvinik1/sheetsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSheetsEnv(t *testing.T, fake *testutil.FakeSheets) {
	t.Helper()
	_, pemText := testutil.NewTestKey(t)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_EMAIL", "sync@example.iam.gserviceaccount.com")
	t.Setenv("GOOGLE_PRIVATE_KEY", strings.ReplaceAll(pemText, "\n", `\n`))
	t.Setenv("GOOGLE_SPREADSHEET_ID", testutil.FakeSpreadsheetID)
	t.Setenv("GOOGLE_TOKEN_URL", fake.TokenURL())
	t.Setenv("SHEETS_BASE_URL", fake.BaseURL())
	t.Setenv("REDIS_URL", "")
	t.Setenv("IMPORT_CHUNK_SIZE", "2")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Subset(t, names, []string{"token", "sync", "import", "issue-token"})
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	_, err := execute(t, "issue-token", "--subject", "ops", "--env-file", filepath.Join(t.TempDir(), "missing.env"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}

func TestIssueTokenFromEnvFile(t *testing.T) {
	// godotenv never overrides a variable that is already set.
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\n"), 0o600))

	out, err := execute(t, "issue-token", "--subject", "ops", "--env-file", path)

	require.NoError(t, err)
	token := strings.TrimSpace(out)
	claims, err := services.NewAuthService("from-file", 0).VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestTokenCommandMasks(t *testing.T) {
	fake := testutil.NewFakeSheets(t)
	setSheetsEnv(t, fake)

	out, err := execute(t, "token")

	require.NoError(t, err)
	assert.Contains(t, out, "sync@example.iam.gserviceaccount.com")
	assert.NotContains(t, out, testutil.FakeAccessToken)
	assert.Contains(t, out, testutil.FakeAccessToken[:4]+"...")
	assert.Equal(t, 1, fake.TokenRequests())
}

func TestSyncCommand(t *testing.T) {
	fake := testutil.NewFakeSheets(t)
	fake.AddSheet("Customers", 7, []string{"#", "ID"})
	setSheetsEnv(t, fake)

	out, err := execute(t, "sync", "--action", "insert", "--table", "customers", "--id", "c-1", "--data", `{"name":"Ada","phone":5551234}`)

	require.NoError(t, err)
	var result models.SyncResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)

	rows := fake.Rows("Customers")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "c-1", "Ada", "5551234"}, rows[1][:4])
}

func TestSyncCommandFailure(t *testing.T) {
	fake := testutil.NewFakeSheets(t)
	setSheetsEnv(t, fake)

	_, err := execute(t, "sync", "--action", "insert", "--table", "customers", "--id", "c-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
	assert.Equal(t, 0, fake.TokenRequests())
}

func TestImportCommand(t *testing.T) {
	fake := testutil.NewFakeSheets(t)
	fake.AddSheet("Notes", 9, []string{"#", "ID"})
	setSheetsEnv(t, fake)

	path := filepath.Join(t.TempDir(), "notes.csv")
	csvText := "id,author,body\nn1,ada,first\nn2,bob,second\nn3,,third\n"
	require.NoError(t, os.WriteFile(path, []byte(csvText), 0o600))

	out, err := execute(t, "import", "--table", "notes", "--file", path)

	require.NoError(t, err)
	var result services.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Imported)
	assert.Len(t, result.Chunks, 2)

	rows := fake.Rows("Notes")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"3", "n3", "", "", "third"}, rows[3][:5])
}

func TestImportCommandUnknownTable(t *testing.T) {
	_, err := execute(t, "import", "--table", "users", "--file", "x.csv")

	assert.ErrorIs(t, err, services.ErrUnsupportedTable)
}

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("Name, Phone\nAda, 555\n Bob,\n"))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEmpty(t, rows[0].Key)
	assert.NotEqual(t, rows[0].Key, rows[1].Key)
	assert.Equal(t, map[string]any{"name": "Ada", "phone": "555"}, rows[0].Data)
	assert.Equal(t, map[string]any{"name": "Bob"}, rows[1].Data)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.EqualError(t, err, "missing header row")

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "ya29...wxyz", maskToken("ya29.abcdefwxyz"))
}
