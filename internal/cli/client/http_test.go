package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Get_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/projects/proj-1", r.URL.Path)
		assert.Equal(t, "Bearer gp_testkey", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"proj-1","name":"North Ridge Wind"}}`))
	}))
	defer server.Close()

	api, err := NewAPIClientWithConfig("gp_testkey", server.URL)
	require.NoError(t, err)

	resp, err := api.Get("/projects/proj-1")
	require.NoError(t, err)

	var project struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &project))
	assert.Equal(t, "proj-1", project.ID)
	assert.Equal(t, "North Ridge Wind", project.Name)
}

func TestAPIClient_Post_SendsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Solar South"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"proj-2"}}`))
	}))
	defer server.Close()

	api, err := NewAPIClientWithConfig("gp_testkey", server.URL)
	require.NoError(t, err)

	resp, err := api.Post("/projects", map[string]string{"name": "Solar South"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Data)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"project not found"}`))
	}))
	defer server.Close()

	api, err := NewAPIClientWithConfig("gp_testkey", server.URL)
	require.NoError(t, err)

	_, err = api.Get("/projects/missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "project not found", apiErr.Message)
}

func TestAPIClient_ErrorResponse_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	api, err := NewAPIClientWithConfig("gp_testkey", server.URL)
	require.NoError(t, err)

	_, err = api.Get("/chat")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPIClient_UploadDocument(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "site-survey.pdf")
	require.NoError(t, os.WriteFile(filePath, []byte("%PDF-1.4 test"), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/documents", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "proj-1", r.FormValue("project_id"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "site-survey.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 test", string(content))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"doc-1","filename":"site-survey.pdf","status":"pending"}}`))
	}))
	defer server.Close()

	api, err := NewAPIClientWithConfig("gp_testkey", server.URL)
	require.NoError(t, err)

	resp, err := api.UploadDocument("proj-1", filePath, "application/pdf")
	require.NoError(t, err)

	var doc struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "pending", doc.Status)
}

func TestAPIClient_UploadDocument_MissingFile(t *testing.T) {
	api, err := NewAPIClientWithConfig("gp_testkey", "http://localhost:0")
	require.NoError(t, err)

	_, err = api.UploadDocument("proj-1", "/nonexistent/file.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestNewAPIClientWithCmd_EnvFallback(t *testing.T) {
	t.Setenv(envAPIKey, "gp_envkey")
	t.Setenv(envAPIURL, "http://example.test:9000")

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, "gp_envkey", api.apiKey)
	assert.Equal(t, "http://example.test:9000", api.baseURL)
}

func TestNewAPIClientWithCmd_MissingKey(t *testing.T) {
	t.Setenv(envAPIKey, "")
	t.Setenv(envAPIURL, "")

	tmpDir := t.TempDir()
	oldGetConfigPath := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return filepath.Join(tmpDir, "config.json"), nil
	}
	defer func() { getConfigPathFunc = oldGetConfigPath }()

	_, err := NewAPIClientWithCmd(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envAPIKey)
}
