package service

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"roster/internal/logging"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type ProgressInfo struct {
	FileName     string
	TotalRecords int
	Processed    int
	Status       string // "processing", "completed", "error"
	Error        string
	StartTime    time.Time
	EndTime      time.Time
}

// Importer is the part of the record store the import worker needs.
type Importer interface {
	Import(data []byte) (int, error)
}

// ImportService imports uploaded files in the background and tracks the
// progress of each file by name.
type ImportService struct {
	importer          Importer
	logger            *zap.Logger
	fileProgressMap   map[string]*ProgressInfo
	fileProgressLock  sync.RWMutex
	progressListeners map[chan *ProgressInfo]bool
	listenerLock      sync.RWMutex

	workerSemaphore chan struct{} // bounds concurrently processed files
	wg              sync.WaitGroup
}

func NewImportService(importer Importer, maxWorkers int, logger *zap.Logger) *ImportService {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ImportService{
		importer:          importer,
		logger:            logging.OrNop(logger),
		fileProgressMap:   make(map[string]*ProgressInfo),
		progressListeners: make(map[chan *ProgressInfo]bool),
		workerSemaphore:   make(chan struct{}, maxWorkers),
	}
}

func (s *ImportService) RegisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	s.progressListeners[ch] = true
}

// UnregisterProgressListener removes a client from receiving progress updates
func (s *ImportService) UnregisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	delete(s.progressListeners, ch)
}

// BroadcastProgress sends a copy of progress to every listener that is ready
// to receive it.
func (s *ImportService) BroadcastProgress(progress *ProgressInfo) {
	s.listenerLock.RLock()
	defer s.listenerLock.RUnlock()

	for listener := range s.progressListeners {
		snapshot := *progress
		select {
		case listener <- &snapshot:
		default:
		}
	}
}

func (s *ImportService) startProgress(fileName string) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	progress := &ProgressInfo{
		FileName:  fileName,
		Status:    StatusProcessing,
		StartTime: time.Now(),
	}
	s.fileProgressMap[fileName] = progress
	s.BroadcastProgress(progress)
}

func (s *ImportService) completeProgress(fileName string, imported int) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.TotalRecords = imported
		progress.Processed = imported
		progress.Status = StatusCompleted
		progress.EndTime = time.Now()
		s.BroadcastProgress(progress)
	}
}

func (s *ImportService) updateProgressError(fileName string, errorMsg string) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.Status = StatusError
		progress.Error = errorMsg
		progress.EndTime = time.Now()
		s.BroadcastProgress(progress)
	}
}

func (s *ImportService) GetFileProgress(fileName string) *ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		copyProgress := *progress
		return &copyProgress
	}
	return nil
}

func (s *ImportService) GetAllFileProgress() []*ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	result := make([]*ProgressInfo, 0, len(s.fileProgressMap))
	for _, progress := range s.fileProgressMap {
		copyProgress := *progress
		result = append(result, &copyProgress)
	}
	return result
}

// ProcessFileAsync imports filePath on a background goroutine, reporting
// progress under fileName. Use Wait to block until every queued file is done.
func (s *ImportService) ProcessFileAsync(fileName, filePath string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.processFile(fileName, filePath); err != nil {
			s.logger.Error("Error processing file", zap.String("file", fileName), zap.Error(err))
		}
	}()
}

func (s *ImportService) Wait() {
	s.wg.Wait()
}

// ProcessFile reads filePath and imports its records into the store.
// Progress is reported under the file's base name.
func (s *ImportService) ProcessFile(filePath string) error {
	return s.processFile(filepath.Base(filePath), filePath)
}

func (s *ImportService) processFile(fileName, filePath string) error {
	s.workerSemaphore <- struct{}{}
	defer func() { <-s.workerSemaphore }()

	startTime := time.Now()
	s.startProgress(fileName)

	data, err := os.ReadFile(filePath)
	if err != nil {
		s.updateProgressError(fileName, "Failed to read file: "+err.Error())
		return err
	}

	imported, err := s.importer.Import(data)
	if err != nil {
		s.updateProgressError(fileName, "Import error: "+err.Error())
		return err
	}

	s.completeProgress(fileName, imported)
	s.logger.Info("Processing completed",
		zap.String("file", fileName),
		zap.Int("imported", imported),
		zap.Duration("elapsed", time.Since(startTime)))
	return nil
}
