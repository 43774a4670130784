package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/bootstrap"
	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

const testListings = `[
  {"id": "r-1", "title": "North Yard", "city": "Riyadh", "area": 1500, "electricity": "11kV"},
  {"id": "r-2", "title": "South Yard", "city": "Riyadh", "area": 900},
  {"id": "j-1", "title": "Port Lot", "city": "Jeddah", "area": 4000, "status": "reserved"}
]`

func init() {
	color.NoColor = true
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []*kafka.ProducerMessage
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, msg *kafka.ProducerMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func testDeps(pub *fakePublisher) *Dependencies {
	return &Dependencies{
		Build: bootstrap.Build,
		NewProducer: func(config.KafkaConfig, logging.Logger) (kafka.Publisher, error) {
			return pub, nil
		},
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// writeConfig writes a config serving testListings from memory.  extra is
// appended as top-level YAML.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	listings := writeFile(t, dir, "listings.json", testListings)
	body := "map:\n  listings_file: " + listings + "\nmonitoring:\n  namespace: cli_test\n" + extra
	return writeFile(t, dir, "plotatlas.yaml", body)
}

func run(t *testing.T, deps *Dependencies, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommandWith(deps)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func clusterServer(t *testing.T) *httptest.Server {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for _, c := range []struct {
		city  string
		count int
		pt    orb.Point
	}{
		{"Jeddah", 1, orb.Point{39.2, 21.5}},
		{"Riyadh", 2, orb.Point{46.8, 24.6}},
		{"riyadh ", 1, orb.Point{46.7, 24.7}},
	} {
		f := geojson.NewFeature(c.pt)
		f.Properties = geojson.Properties{"city": c.city, "name": c.city, "plotCount": c.count}
		fc.Append(f)
	}
	plots := geojson.NewFeatureCollection()
	pf := geojson.NewFeature(orb.Point{46.8, 24.6})
	pf.Properties = geojson.Properties{"id": "r-1", "title": "North Yard", "area": 1500, "status": "available", "electricity": "11kV"}
	plots.Append(pf)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/map/clusters":
			_ = json.NewEncoder(w).Encode(fc)
		case "/api/v1/map/cities/Riyadh/plots":
			_ = json.NewEncoder(w).Encode(plots)
		case "/api/v1/map/cities/Nowhere/plots":
			_ = json.NewEncoder(w).Encode(geojson.NewFeatureCollection())
		case "/api/v1/properties/missing":
			w.Header().Set("X-Request-Id", "req-42")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"LISTING_001","message":"property not found","requestId":"req-42"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "plotatlas", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"clusters", "cities", "plots", "property", "sprites", "events", "listings", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	for _, flag := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout", "server"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
	assert.Equal(t, "table", cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	_, _, err := run(t, testDeps(nil), "version", "--config", writeConfig(t, ""), "--output", "yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestRootCommand_BadConfigFile(t *testing.T) {
	_, _, err := run(t, testDeps(nil), "version", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigurationMissing))
}

func TestVersion_JSON(t *testing.T) {
	out, _, err := run(t, testDeps(nil), "version", "--config", writeConfig(t, ""), "-o", "json")
	require.NoError(t, err)
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, config.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestClusters_WarnsOnSimilarCityNames(t *testing.T) {
	srv := clusterServer(t)
	out, stderr, err := run(t, testDeps(nil), "clusters", "--config", writeConfig(t, ""), "--server", srv.URL, "-o", "json")
	require.NoError(t, err)

	var rows []ClusterRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, ClusterRow{City: "Riyadh", Plots: 2, Lng: 46.8, Lat: 24.6}, rows[1])
	assert.Contains(t, stderr, `"Riyadh", "riyadh "`)
}

func TestClusters_Table(t *testing.T) {
	srv := clusterServer(t)
	out, _, err := run(t, testDeps(nil), "clusters", "--config", writeConfig(t, ""), "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "City")
	assert.Contains(t, out, "Jeddah")
	assert.Contains(t, out, "46.80000")
}

func TestPlots(t *testing.T) {
	srv := clusterServer(t)
	cfgPath := writeConfig(t, "")

	out, _, err := run(t, testDeps(nil), "plots", "--city", "Riyadh", "--config", cfgPath, "--server", srv.URL, "-o", "json")
	require.NoError(t, err)
	var rows []PlotRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "r-1", rows[0].ID)
	assert.Equal(t, "11kV", rows[0].Electricity)

	_, stderr, err := run(t, testDeps(nil), "plots", "--city", "Nowhere", "--config", cfgPath, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, stderr, "case sensitive")

	_, _, err = run(t, testDeps(nil), "plots", "--config", cfgPath, "--server", srv.URL)
	assert.Error(t, err)
}

func TestProperty_NotFound(t *testing.T) {
	srv := clusterServer(t)
	_, _, err := run(t, testDeps(nil), "property", "missing", "--config", writeConfig(t, ""), "--server", srv.URL)
	require.Error(t, err)

	var buf bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetErr(&buf)
	PrintError(cmd, err)
	assert.Contains(t, buf.String(), "req-42")
}

func TestSpritesRender_WritesOnePNGPerIcon(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "sprites")
	out, _, err := run(t, testDeps(nil), "sprites", "render", "--out", outDir, "--config", writeConfig(t, ""), "-o", "json")
	require.NoError(t, err)

	var files []SpriteFile
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 3)
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		require.NoError(t, statErr)
		assert.Equal(t, int64(f.Bytes), info.Size())
	}
	assert.Equal(t, "plot", files[2].Kind)
}

func TestSpritesPublish_RequiresStorage(t *testing.T) {
	_, _, err := run(t, testDeps(nil), "sprites", "publish", "--config", writeConfig(t, ""))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigurationMissing))
}

const kafkaEnabled = "kafka:\n  enabled: true\n  brokers: [\"localhost:9092\"]\n"

func TestEventsPublish(t *testing.T) {
	pub := &fakePublisher{}
	_, _, err := run(t, testDeps(pub), "events", "publish", "--type", "updated", "--city", "Riyadh", "--id", "r-1",
		"--config", writeConfig(t, kafkaEnabled))
	require.NoError(t, err)

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, config.DefaultKafkaListingTopic, msg.Topic)
	assert.Equal(t, []byte("Riyadh"), msg.Key)
	assert.True(t, pub.closed)

	ev, err := kafka.DecodeChangeEvent(&kafka.Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, "r-1", ev.PropertyID)
}

func TestEventsPublish_Validation(t *testing.T) {
	cfgPath := writeConfig(t, kafkaEnabled)

	_, _, err := run(t, testDeps(&fakePublisher{}), "events", "publish", "--type", "renamed", "--config", cfgPath)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = run(t, testDeps(&fakePublisher{}), "events", "publish", "--type", "deleted", "--config", cfgPath)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = run(t, testDeps(&fakePublisher{}), "events", "publish", "--config", writeConfig(t, ""))
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigurationMissing))
}

func TestListingsValidate(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "in.json", `[
	  {"id": "a", "title": "A", "city": "Dammam"},
	  {"id": "b", "title": "B", "city": "dammam", "coordinates": {"lat": 26.4, "lng": 50.1}}
	]`)
	out, stderr, err := run(t, testDeps(nil), "listings", "validate", "-f", file, "--config", writeConfig(t, ""), "-o", "json")
	require.NoError(t, err)

	var s ListingSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Placed)
	assert.Contains(t, stderr, "differ only by case")

	bad := writeFile(t, dir, "bad.json", `[{"id": "x", "title": "No City"}]`)
	_, _, err = run(t, testDeps(nil), "listings", "validate", "-f", bad, "--config", writeConfig(t, ""))
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestDatabaseCommands_RequireDatabase(t *testing.T) {
	cfgPath := writeConfig(t, "")
	file := writeFile(t, t.TempDir(), "in.json", `[{"id": "a", "title": "A", "city": "Dammam"}]`)

	_, _, err := run(t, testDeps(nil), "listings", "import", "-f", file, "--config", cfgPath)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigurationMissing))

	_, _, err = run(t, testDeps(nil), "migrate", "up", "--config", cfgPath)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigurationMissing))

	_, _, err = run(t, testDeps(nil), "migrate", "down", "--steps", "0", "--config", cfgPath)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"City", "Plots"}, [][]string{{"Riyadh", "2"}, {"Jeddah"}})
	assert.Contains(t, out, "City")
	assert.Contains(t, out, "Riyadh")
	assert.Equal(t, 6, strings.Count(out, "\n")) // border, header, border, 2 rows, border
	assert.Empty(t, FormatTable(nil, nil))
}

func TestSimilarCityNames(t *testing.T) {
	groups := SimilarCityNames([]string{"Jeddah", "Riyadh", "riyadh", " Riyadh ", "Al  Khobar", "al khobar", "Dammam"})
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"Al  Khobar", "al khobar"}, groups[0])
	assert.Equal(t, []string{" Riyadh ", "Riyadh", "riyadh"}, groups[1])
	assert.Empty(t, SimilarCityNames([]string{"A", "B"}))
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := NewRootCommand()
	_, err := GetCLIContext(cmd)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
}

//Personal.AI order the ending
