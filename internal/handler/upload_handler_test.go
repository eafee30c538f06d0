package handler_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roster/internal/handler"
	"roster/internal/service"
)

type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) ProcessFileAsync(fileName, filePath string) {
	m.Called(fileName, filePath)
}

func (m *MockImportService) GetFileProgress(fileName string) *service.ProgressInfo {
	args := m.Called(fileName)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*service.ProgressInfo)
}

func (m *MockImportService) GetAllFileProgress() []*service.ProgressInfo {
	args := m.Called()
	return args.Get(0).([]*service.ProgressInfo)
}

func (m *MockImportService) RegisterProgressListener(ch chan *service.ProgressInfo) {
	m.Called(ch)
}

func (m *MockImportService) UnregisterProgressListener(ch chan *service.ProgressInfo) {
	m.Called(ch)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadJSON(t *testing.T) {
	uploadDir := filepath.Join(t.TempDir(), "uploads")

	var savePath string
	mockService := new(MockImportService)
	mockService.On("ProcessFileAsync", "students.json", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { savePath = args.String(1) }).
		Return()

	h := handler.NewUploadHandler(mockService, uploadDir, nil)

	body, contentType := multipartBody(t, map[string]string{
		"../../students.json": `[{"name":"Zed"}]`,
	})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.UploadJSON(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	respBody, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(respBody), `"files":["students.json"]`)

	mockService.AssertExpectations(t)
	assert.Equal(t, uploadDir, filepath.Dir(savePath))
	assert.True(t, strings.HasSuffix(savePath, "-students.json"), savePath)
	saved, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Zed"}]`, string(saved))
}

func TestUploadJSON_SameNameGetsSeparateFiles(t *testing.T) {
	uploadDir := t.TempDir()

	var paths []string
	mockService := new(MockImportService)
	mockService.On("ProcessFileAsync", "a.json", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { paths = append(paths, args.String(1)) }).
		Return()

	h := handler.NewUploadHandler(mockService, uploadDir, nil)

	for _, content := range []string{`[{"name":"First"}]`, `[{"name":"Second"}]`} {
		body, contentType := multipartBody(t, map[string]string{"a.json": content})
		req := httptest.NewRequest("POST", "/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		h.UploadJSON(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0], paths[1])

	first, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"First"}]`, string(first))
	second, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Second"}]`, string(second))
}

func TestUploadJSON_NoFiles(t *testing.T) {
	mockService := new(MockImportService)
	h := handler.NewUploadHandler(mockService, t.TempDir(), nil)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.UploadJSON(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	respBody, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(respBody), "No files uploaded")
	mockService.AssertNotCalled(t, "ProcessFileAsync", mock.Anything, mock.Anything)
}

func TestUploadJSON_NotMultipart(t *testing.T) {
	mockService := new(MockImportService)
	h := handler.NewUploadHandler(mockService, t.TempDir(), nil)

	req := httptest.NewRequest("POST", "/upload", bytes.NewBufferString(`[]`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.UploadJSON(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Result().StatusCode)
}

func TestUploadJSON_EndToEnd(t *testing.T) {
	uploadDir := t.TempDir()
	store, importer := newImportStack(t)
	h := handler.NewUploadHandler(importer, uploadDir, nil)

	body, contentType := multipartBody(t, map[string]string{
		"a.json": `[{"id":"x","name":"Xi","roll":"S9"}]`,
	})
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.UploadJSON(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	importer.Wait()
	progress := importer.GetFileProgress("a.json")
	require.NotNil(t, progress)
	assert.Equal(t, service.StatusCompleted, progress.Status)
	assert.Equal(t, "Xi", store.Records()[0].Name)
}
