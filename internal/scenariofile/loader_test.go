package scenariofile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const healthYAML = `
name: Notes API health
description: Health check and login rejection
variables:
  email: invalid.user@example.com
steps:
  - name: health check
    request:
      method: get
      url: health-check
    expect:
      status: 200
      body:
        $.success: true
  - name: bad login
    request:
      method: POST
      url: users/login
      body:
        email: "{{email}}"
        password: invalidpassword
    expect:
      status: 401
      body:
        $.message: Incorrect email address or password
        $.status:
          eq: 401
`

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "health.yaml", healthYAML)

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Notes API health", doc.Name)
	require.Len(t, doc.Steps, 2)
	assert.Equal(t, "GET", doc.Steps[0].Request.Method, "methods are upper-cased")
	assert.Equal(t, 401, doc.Steps[1].Expect.Status)
	_, isMap := doc.Steps[1].Expect.Body["$.status"].(map[string]any)
	assert.True(t, isMap)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "health.json", `{
  "name": "Practice health",
  "steps": [
    {"name": "health", "request": {"method": "GET", "url": "api/health-check"}, "capture": {"state": "$.status"}, "expect": {"status": 200}}
  ]
}`)

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"state": "$.status"}, doc.Steps[0].Capture)
}

func TestLoadFile_Validation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"missing name", "a.json", `{"steps":[{"name":"s","request":{"method":"GET","url":"x"}}]}`},
		{"no steps", "b.json", `{"name":"n","steps":[]}`},
		{"bad method", "c.json", `{"name":"n","steps":[{"name":"s","request":{"method":"FETCH","url":"x"}}]}`},
		{"missing url", "d.json", `{"name":"n","steps":[{"name":"s","request":{"method":"GET"}}]}`},
		{"unnamed step", "e.json", `{"name":"n","steps":[{"request":{"method":"GET","url":"x"}}]}`},
		{"bad base url", "f.json", `{"name":"n","base_url":"not a url","steps":[{"name":"s","request":{"method":"GET","url":"x"}}]}`},
		{"unsupported ext", "g.toml", `name = "n"`},
		{"broken json", "h.json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadDir_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", healthYAML)
	writeFile(t, dir, "a.json", `{"name":"first","steps":[{"name":"s","request":{"method":"GET","url":"x"}}]}`)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].Name)
	assert.Equal(t, "Notes API health", docs[1].Name)

	docs, err = Load(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestBuild_RunsAgainstServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /notes/api/health-check", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"status":200,"message":"Notes API is Running"}`))
	})
	mux.HandleFunc("POST /notes/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"status":401,"message":"Incorrect email address or password"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	doc, err := LoadFile(writeFile(t, t.TempDir(), "health.yaml", healthYAML))
	require.NoError(t, err)

	exec, err := httpstep.New(srv.URL+"/notes/api", httpstep.WithClient(srv.Client()))
	require.NoError(t, err)

	res := scenario.NewRunner().Run(context.Background(), Build(doc, exec))
	assert.True(t, res.Passed, "%v", res.Failed())
	assert.Len(t, res.Steps, 2)
}
