package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"roster/internal/codec"
	"roster/internal/logging"
	"roster/internal/model"
	"roster/internal/service"
)

const maxImportBytes = 100 << 20 // 100MB

type StudentService interface {
	ListStudents(q service.Query) service.View
	Get(id string) (model.Student, error)
	Create(input model.StudentInput) (model.Student, error)
	Edit(id string, input model.StudentInput) (model.Student, error)
	Delete(id string, c service.Confirmer) error
	Clear(c service.Confirmer) error
	Import(data []byte) (int, error)
	Export() ([]byte, error)
}

type StudentHandler struct {
	studentService StudentService
	logger         *zap.Logger
}

func NewStudentHandler(studentService StudentService, logger *zap.Logger) *StudentHandler {
	return &StudentHandler{studentService: studentService, logger: logging.OrNop(logger)}
}

func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sortKey, err := service.ParseSortKey(query.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}

	view := h.studentService.ListStudents(service.Query{
		Text: query.Get("q"),
		Sort: sortKey,
		Page: page,
	})
	writeJSON(w, http.StatusOK, view)
}

func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := h.studentService.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var input model.StudentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	student, err := h.studentService.Create(input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var input model.StudentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	student, err := h.studentService.Edit(mux.Vars(r)["id"], input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// DeleteStudent requires ?confirm=true; without it nothing is deleted.
func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.studentService.Delete(mux.Vars(r)["id"], confirmFromQuery(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearStudents requires ?confirm=true.
func (h *StudentHandler) ClearStudents(w http.ResponseWriter, r *http.Request) {
	if err := h.studentService.Clear(confirmFromQuery(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudentHandler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	data, err := h.studentService.Export()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+codec.ExportFileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Error writing export", zap.Error(err))
	}
}

// ImportStudents imports the JSON document sent as the request body.
func (h *StudentHandler) ImportStudents(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large or bad request")
		return
	}

	count, err := h.studentService.Import(data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": count,
		"message":  "Imported " + strconv.Itoa(count) + " students",
	})
}

func (h *StudentHandler) writeServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *service.ValidationError
		formatErr     *codec.FormatError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Name and Roll are required",
			"fields": validationErr.Fields,
		})
	case errors.As(err, &formatErr):
		writeError(w, http.StatusBadRequest, "Import error: "+formatErr.Reason)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotConfirmed):
		writeError(w, http.StatusConflict, "confirmation required: repeat the request with confirm=true")
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func confirmFromQuery(r *http.Request) service.Confirmer {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return service.ConfirmFunc(func(string) bool { return confirmed })
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
