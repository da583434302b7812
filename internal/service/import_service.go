package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"studentsystem/internal/metrics"
	"studentsystem/internal/model"
	"studentsystem/internal/store"
)

const importBatchSize = 1000

// ProgressInfo tracks one CSV file moving through the importer.
type ProgressInfo struct {
	FileName     string
	TotalRecords int
	Processed    int
	Inserted     int
	Skipped      int    // duplicate IDs
	Invalid      int    // rows that failed parsing or validation
	Status       string // "processing", "completed", "error"
	Error        string
	StartTime    time.Time
	EndTime      time.Time
}

// ImportService bulk-loads uploaded CSV files into the record store,
// tracking per-file progress for the presentation layer.
type ImportService struct {
	store *store.Store

	fileProgressMap  map[string]*ProgressInfo
	fileProgressLock sync.RWMutex

	progressListeners map[chan *ProgressInfo]bool
	listenerLock      sync.RWMutex
}

func NewImportService(st *store.Store) *ImportService {
	return &ImportService{
		store:             st,
		fileProgressMap:   make(map[string]*ProgressInfo),
		progressListeners: make(map[chan *ProgressInfo]bool),
	}
}

// RegisterProgressListener adds a channel that receives progress updates.
func (s *ImportService) RegisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	s.progressListeners[ch] = true
}

// UnregisterProgressListener removes a previously registered channel.
func (s *ImportService) UnregisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	delete(s.progressListeners, ch)
}

// broadcastProgress sends a snapshot to all listeners. Listeners that
// are not ready are skipped rather than blocked on.
func (s *ImportService) broadcastProgress(progress *ProgressInfo) {
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

func (s *ImportService) updateProgress(fileName string, fn func(*ProgressInfo)) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	progress, exists := s.fileProgressMap[fileName]
	if !exists {
		return
	}
	fn(progress)
	s.broadcastProgress(progress)
}

func (s *ImportService) failProgress(fileName, errorMsg string) {
	s.updateProgress(fileName, func(p *ProgressInfo) {
		p.Status = "error"
		p.Error = errorMsg
		p.EndTime = time.Now()
	})
}

// GetFileProgress returns a copy of the progress for one file, or nil
// if the file is unknown.
func (s *ImportService) GetFileProgress(fileName string) *ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		copyProgress := *progress
		return &copyProgress
	}
	return nil
}

// GetAllFileProgress returns copies of the progress of every known file.
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

// ProcessCSV imports the CSV file at filePath into the store. Rows with
// duplicate IDs are skipped, rows that fail parsing or validation are
// counted and dropped, and inserts happen in batches so the backing
// file is rewritten once per batch rather than once per row.
func (s *ImportService) ProcessCSV(filePath string) error {
	fileName := filepath.Base(filePath)
	startTime := time.Now()

	s.fileProgressLock.Lock()
	s.fileProgressMap[fileName] = &ProgressInfo{
		FileName:  fileName,
		Status:    "processing",
		StartTime: startTime,
	}
	s.fileProgressLock.Unlock()

	totalRecords, err := s.countRecords(filePath)
	if err != nil {
		s.failProgress(fileName, "failed to count records: "+err.Error())
		return err
	}
	s.updateProgress(fileName, func(p *ProgressInfo) {
		p.TotalRecords = totalRecords
	})

	file, err := os.Open(filePath)
	if err != nil {
		s.failProgress(fileName, "failed to open file: "+err.Error())
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil && err != io.EOF { // header row
		s.failProgress(fileName, "failed to read header: "+err.Error())
		return err
	}

	var batch []model.Student
	processed, invalid := 0, 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, skipped, err := s.store.InsertBatch(batch)
		if err != nil {
			return err
		}
		metrics.ObserveImport("inserted", inserted)
		metrics.ObserveImport("skipped", len(skipped))
		s.updateProgress(fileName, func(p *ProgressInfo) {
			p.Inserted += inserted
			p.Skipped += len(skipped)
		})
		batch = nil
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).Warn("skipping unreadable CSV record")
			invalid++
			continue
		}
		processed++

		st, err := parseImportRow(record)
		if err == nil {
			err = st.Validate()
		}
		if err != nil {
			log.WithError(err).WithField("file", fileName).Warn("skipping invalid row")
			invalid++
			continue
		}
		batch = append(batch, st)

		if processed%100 == 0 {
			s.updateProgress(fileName, func(p *ProgressInfo) {
				p.Processed = processed
				p.Invalid = invalid
			})
		}
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				s.failProgress(fileName, "failed to insert batch: "+err.Error())
				return err
			}
		}
	}

	if err := flush(); err != nil {
		s.failProgress(fileName, "failed to insert batch: "+err.Error())
		return err
	}

	metrics.ObserveImport("invalid", invalid)
	metrics.SetRecords(s.store.Count())

	s.updateProgress(fileName, func(p *ProgressInfo) {
		p.Status = "completed"
		p.Processed = processed
		p.Invalid = invalid
		p.EndTime = time.Now()
	})

	log.WithFields(log.Fields{
		"file":     fileName,
		"rows":     processed,
		"duration": time.Since(startTime),
	}).Info("import completed")
	return nil
}

// parseImportRow converts one uploaded CSV row in backing-file column
// order into a record.
func parseImportRow(record []string) (model.Student, error) {
	var st model.Student
	if len(record) != 8 {
		return st, fmt.Errorf("expected 8 columns, got %d", len(record))
	}
	age, err := strconv.Atoi(record[3])
	if err != nil {
		return st, fmt.Errorf("bad age %q", record[3])
	}
	score, err := strconv.Atoi(record[7])
	if err != nil {
		return st, fmt.Errorf("bad score %q", record[7])
	}
	st = model.Student{
		StudentID:      record[0],
		FirstName:      record[1],
		LastName:       record[2],
		Age:            age,
		Grade:          record[4],
		Email:          record[5],
		EnrollmentDate: record[6],
		Score:          score,
	}
	return st, nil
}

func (s *ImportService) countRecords(filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil { // skip header
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
