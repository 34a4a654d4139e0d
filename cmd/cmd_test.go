package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-beans/framework/container"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "testing")
	t.Setenv("LOG_LEVEL", "error")

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestInspect_PrintsSnapshot(t *testing.T) {
	out, err := runRoot(t, "inspect")
	require.NoError(t, err)

	var snap container.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &snap))
	assert.Contains(t, snap.Singletons, "notes.service")
	assert.Contains(t, snap.Singletons, "notes.repository")
	assert.ElementsMatch(t, []string{"request", "session"}, snap.Scopes)

	var repo *container.BeanInfo
	for i := range snap.Beans {
		if snap.Beans[i].ID == "notes.repository" {
			repo = &snap.Beans[i]
		}
	}
	require.NotNil(t, repo)
	assert.Equal(t, "in-memory note store", repo.Description)
	assert.Contains(t, repo.Tags, "demo")
}

func TestInspect_FiltersByID(t *testing.T) {
	out, err := runRoot(t, "inspect", "notes", "router")
	require.NoError(t, err)

	var snap container.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Beans, 2)
	assert.Equal(t, "notes.service", snap.Beans[0].ID)
	assert.Contains(t, snap.Beans[0].Aliases, "notes")
	assert.Equal(t, "router", snap.Beans[1].ID)
}

func TestInspect_UnknownID(t *testing.T) {
	_, err := runRoot(t, "inspect", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrNoSuchDefinition)
}

func TestInspect_NoBootLeavesSingletonsUncreated(t *testing.T) {
	out, err := runRoot(t, "inspect", "--no-boot")
	require.NoError(t, err)

	var snap container.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &snap))
	assert.NotContains(t, snap.Singletons, "notes.service")
	assert.Contains(t, snap.Singletons, "config")
}

func TestInspect_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("container_allow_circular_references: false\n"), 0o600))

	_, err := runRoot(t, "inspect", "--config", path)
	require.Error(t, err, "the demo cycle cannot be resolved without early references")
	assert.ErrorIs(t, err, container.ErrCircularReferenceUnresolvable)
}

func TestDemo_RoutesServeScopedBeans(t *testing.T) {
	t.Setenv("APP_ENV", "testing")
	t.Setenv("LOG_LEVEL", "error")

	o := &options{
		v:        viper.New(),
		envFiles: []string{filepath.Join(t.TempDir(), "none.env")},
		demo:     true,
	}
	a, err := o.load()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Boot(ctx))
	t.Cleanup(func() { _ = a.Shutdown(ctx) })
	r, err := a.Router(ctx)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/demo/greet/ada", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "greeting #2", "both lookups share one request-scoped greeter")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/demo/notes?text=hi", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"count":1}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/demo/notes", nil))
	assert.JSONEq(t, `{"data":["hi"]}`, rr.Body.String())

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/demo/visits", nil))
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	req := httptest.NewRequest(http.MethodGet, "/demo/visits", nil)
	req.AddCookie(cookies[0])
	second := httptest.NewRecorder()
	r.ServeHTTP(second, req)
	assert.JSONEq(t, `{"data":{"visits":2}}`, second.Body.String())

	svc := container.MustResolve[*NoteService](ctx, a.Container, "notes")
	assert.Same(t, svc, svc.Repo.Service)
}
