package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roster/internal/database"
	"roster/internal/handler"
	"roster/internal/identity"
	"roster/internal/service"
)

func newImportStack(t *testing.T) (*service.StudentService, *service.ImportService) {
	t.Helper()
	store := service.NewStudentService(database.NewMemorySlot(), service.Options{IDs: identity.NewSequence("id")})
	return store, service.NewImportService(store, 2, nil)
}

func TestGetFileProgress(t *testing.T) {
	mockService := new(MockImportService)
	progress := &service.ProgressInfo{
		FileName:     "test.json",
		TotalRecords: 100,
		Processed:    50,
		Status:       service.StatusProcessing,
	}
	mockService.On("GetFileProgress", "test.json").Return(progress)
	mockService.On("GetFileProgress", "nonexistent.json").Return(nil)

	h := handler.NewProgressHandler(mockService, nil)
	router := mux.NewRouter()
	router.HandleFunc("/progress", h.GetFileProgress)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/progress?fileName=test.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response service.ProgressInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "test.json", response.FileName)
	assert.Equal(t, 100, response.TotalRecords)
	assert.Equal(t, 50, response.Processed)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/progress?fileName=nonexistent.json", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/progress", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockService.AssertExpectations(t)
}

func TestGetAllProgress(t *testing.T) {
	mockService := new(MockImportService)
	mockService.On("GetAllFileProgress").Return([]*service.ProgressInfo{
		{FileName: "file1.json", Status: service.StatusProcessing},
		{FileName: "file2.json", Status: service.StatusCompleted},
	})

	h := handler.NewProgressHandler(mockService, nil)
	w := httptest.NewRecorder()
	h.GetAllProgress(w, httptest.NewRequest("GET", "/progress", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response []*service.ProgressInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response, 2)
	assert.Equal(t, "file1.json", response[0].FileName)
	assert.Equal(t, service.StatusCompleted, response[1].Status)

	mockService.AssertExpectations(t)
}

func TestSSEProgress(t *testing.T) {
	_, importer := newImportStack(t)
	h := handler.NewProgressHandler(importer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/progress/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.SSEProgress(w, req)
		close(done)
	}()

	// updates sent before the handler registers are dropped, so keep sending for a while
	for i := 0; i < 20; i++ {
		importer.BroadcastProgress(&service.ProgressInfo{FileName: "test.json", Status: service.StatusProcessing})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SSE handler did not stop after client disconnect")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), `data: {"FileName":"test.json"`)
}

func TestSSEProgressUnregisters(t *testing.T) {
	mockService := new(MockImportService)
	mockService.On("RegisterProgressListener", mock.AnythingOfType("chan *service.ProgressInfo")).Return()
	mockService.On("UnregisterProgressListener", mock.AnythingOfType("chan *service.ProgressInfo")).Return()

	h := handler.NewProgressHandler(mockService, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	h.SSEProgress(w, httptest.NewRequest("GET", "/progress/stream", nil).WithContext(ctx))

	mockService.AssertExpectations(t)
}
