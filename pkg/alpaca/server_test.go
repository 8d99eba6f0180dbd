package alpaca

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "alpaca.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetLevel(log.DebugLevel)
	return logger
}

var testTemplates = template.Must(template.New("setup.html").Parse(
	`{{.Name}}|{{.Location}}|{{if .Success}}saved{{end}}|{{.Error}}|{{range .Devices}}{{.SetupURL}}{{end}}`))

type setupTelescope struct {
	fakeTelescope
}

func (s *setupTelescope) HandleSetup(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("telescope setup"))
}

func newTestServer(t *testing.T, metrics http.Handler, devices ...Device) (*Server, *Store) {
	t.Helper()
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)
	desc := ServerDescription{Manufacturer: "Test", ManufacturerVersion: "1.0"}
	return NewServer(desc, devices, store, testTemplates, metrics), store
}

func TestStoreDefaults(t *testing.T) {
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)

	cfg, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultServerConfig, cfg)

	require.NoError(t, store.SetConfig(ServerConfig{Name: "Roof", Location: "Garden"}))
	cfg, err = store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "Garden", cfg.Location)

	assert.Error(t, store.SetConfig(ServerConfig{}))
}

func TestManagementAPI(t *testing.T) {
	srv, store := newTestServer(t, nil, &fakeTelescope{})
	require.NoError(t, store.SetConfig(ServerConfig{Name: "Roof", Location: "Garden"}))
	mux := srv.AddRoutes()

	assert.Equal(t, []int{1}, value[[]int](t, get(t, mux, "/management/apiversions")))

	desc := value[ServerDescription](t, get(t, mux, "/management/v1/description"))
	assert.Equal(t, ServerDescription{
		Name:                "Roof",
		Manufacturer:        "Test",
		ManufacturerVersion: "1.0",
		Location:            "Garden",
	}, desc)

	devices := value[[]DeviceInfo](t, get(t, mux, "/management/v1/configureddevices"))
	require.Len(t, devices, 1)
	assert.Equal(t, "Telescope", devices[0].Type)
	assert.Equal(t, "fake-id", devices[0].UniqueID)
}

func TestDeviceRoutes(t *testing.T) {
	dev := &fakeTelescope{}
	srv, _ := newTestServer(t, nil, dev)
	mux := srv.AddRoutes()

	assert.Equal(t, "Fake", value[string](t, get(t, mux, "/api/v1/telescope/0/name")))
	assert.Equal(t, "Fake driver", value[string](t, get(t, mux, "/api/v1/telescope/0/driverinfo")))
	assert.Equal(t, 3, value[int](t, get(t, mux, "/api/v1/telescope/0/interfaceversion")))
	assert.False(t, value[bool](t, get(t, mux, "/api/v1/telescope/0/connected")))

	resp := put(t, mux, "/api/v1/telescope/0/connected", url.Values{"Connected": {"true"}})
	require.Zero(t, resp.ErrorNumber, resp.ErrorMessage)
	assert.True(t, dev.connected)

	// already connected
	put(t, mux, "/api/v1/telescope/0/connected", url.Values{"Connected": {"true"}})
	assert.Equal(t, []string{"connect"}, dev.calls)

	put(t, mux, "/api/v1/telescope/0/disconnect", url.Values{})
	assert.False(t, dev.connected)

	assert.Equal(t, []string{"echo"}, value[[]string](t, get(t, mux, "/api/v1/telescope/0/supportedactions")))

	resp = put(t, mux, "/api/v1/telescope/0/action", url.Values{"Action": {"echo"}, "Parameters": {"hello"}})
	assert.Equal(t, "hello", value[string](t, resp))

	resp = put(t, mux, "/api/v1/telescope/0/action", url.Values{"Action": {"dance"}})
	assert.Equal(t, ErrActionNotImplemented.Number, resp.ErrorNumber)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stargo_commands_total 1\n"))
	})
	srv, _ := newTestServer(t, metrics)
	mux := srv.AddRoutes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stargo_commands_total")

	srv, _ = newTestServer(t, nil)
	rec = httptest.NewRecorder()
	srv.AddRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerSetup(t *testing.T) {
	srv, store := newTestServer(t, nil, &setupTelescope{})
	mux := srv.AddRoutes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/setup", nil))
	assert.Equal(t, "StarGo Alpaca Server|Observatory|||/setup/v1/telescope/0/setup", rec.Body.String())

	form := url.Values{"server-name": {"Roof"}, "location": {"Garden"}}
	req := httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, "Roof|Garden|saved||/setup/v1/telescope/0/setup", rec.Body.String())

	cfg, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "Roof", cfg.Name)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/setup/v1/telescope/0/setup", nil))
	assert.Equal(t, "telescope setup", rec.Body.String())
}

func TestServerSetupRejectsEmptyName(t *testing.T) {
	srv, store := newTestServer(t, nil)
	mux := srv.AddRoutes()

	form := url.Values{"server-name": {"  "}, "location": {"Garden"}}
	req := httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "server name cannot be empty")

	cfg, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultServerConfig, cfg)
}

func TestDiscoveryReply(t *testing.T) {
	dr, err := NewDiscoveryResponder("127.0.0.1", 11111, testLogger())
	require.NoError(t, err)

	resp, ok := dr.reply([]byte("alpacadiscovery1"))
	require.True(t, ok)
	assert.JSONEq(t, `{"AlpacaPort": 11111}`, string(resp))

	_, ok = dr.reply([]byte("hello"))
	assert.False(t, ok)

	_, err = NewDiscoveryResponder("127.0.0.1", 0, testLogger())
	assert.Error(t, err)
}
