package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/haven/internal/config"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/plugins/db/sqlitedb"
)

const fixtures = `
therapists:
  - id: t-1
    name: Dr. Rivera
    specialties: [anxiety]
    languages: [English]
    years_experience: 12
    communication_style: warm
  - id: t-2
    name: Dr. Okafor
    specialties: [grief]
    years_experience: 1
assessments:
  - user_id: u-1
    primary_concerns: [anxiety]
    preferred_language: English
    communication_preference: warm
`

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	for _, key := range []string{"HAVEN_STORE", "HAVEN_SQLITE_PATH", "HAVEN_AI_VENDOR", "HAVEN_LOG_LEVEL", "HAVEN_MODEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	path := filepath.Join(home, "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtures), 0o644))
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("1.2.3")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestScoreTable(t *testing.T) {
	home := isolate(t)
	out, err := run(t, "score", filepath.Join(home, "fixtures.yaml"), "u-1", "--explain")
	require.NoError(t, err)

	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Specializes in anxiety")
	assert.Less(t, bytes.Index([]byte(out), []byte("Dr. Rivera")), bytes.Index([]byte(out), []byte("Dr. Okafor")))
}

func TestScoreJSON(t *testing.T) {
	home := isolate(t)
	out, err := run(t, "score", filepath.Join(home, "fixtures.yaml"), "u-1", "--json", "-n", "1")
	require.NoError(t, err)

	var scores []domain.CompatibilityScore
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, "t-1", scores[0].TherapistID)
	assert.InDelta(t, 0.98, scores[0].FinalScore, 1e-9)
}

func TestScoreMissingFixtures(t *testing.T) {
	home := isolate(t)
	_, err := run(t, "score", filepath.Join(home, "nope.yaml"), "u-1")
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	home := isolate(t)
	dbPath := filepath.Join(home, "data", "haven.db")
	t.Setenv("HAVEN_SQLITE_PATH", dbPath)

	out, err := run(t, "seed", filepath.Join(home, "fixtures.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "therapists=2")

	store, err := sqlitedb.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	list, err := store.Therapists().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSeedRejectsRemoteStore(t *testing.T) {
	home := isolate(t)
	t.Setenv("HAVEN_STORE", "supabase")
	_, err := run(t, "seed", filepath.Join(home, "fixtures.yaml"))
	assert.ErrorContains(t, err, "seed only supports")
}

func TestNewApp(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Vendor = config.VendorDryRun
	cfg.Store.SQLitePath = ":memory:"

	app, err := NewApp(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Store.Ping(context.Background()))
	assert.Equal(t, "DryRun", app.Vendor.GetName())
	assert.NotNil(t, app.Services.Sessions)
	assert.NoError(t, app.Close(context.Background()))
}

func TestNewAppErrors(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Vendor = "bogus"
	_, err := NewApp(cfg)
	assert.ErrorContains(t, err, "unknown AI vendor")

	cfg = config.Default()
	cfg.AI.Vendor = config.VendorDryRun
	cfg.Store.Backend = config.StoreSupabase
	_, err = NewApp(cfg)
	assert.Error(t, err, "supabase needs credentials")
}
