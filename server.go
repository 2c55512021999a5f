package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const interFileDelay = 1 * time.Second

var semaphore chan int

type FileUploader interface {
	Upload(storeID string, filename string) error
}

type PluginInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// PluginServer is the HTTP surface the local datalayer drives. Handlers are
// stateless across calls; there is no cross-request locking, the storage
// API's duplicate detection is what prevents a double upload when two
// overlapping batches race.
type PluginServer struct {
	uploader FileUploader
	mux      *http.ServeMux
	server   *http.Server
}

func NewPluginServer(uploader FileUploader) *PluginServer {
	s := &PluginServer{
		uploader: uploader,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/add_missing_files", s.handleAddMissingFiles)
	s.mux.HandleFunc("/handle_upload", s.handleHandleUpload)
	s.mux.HandleFunc("/plugin_info", s.handlePluginInfo)
	s.mux.HandleFunc("/upload", s.handleUpload)

	return s
}

func (s *PluginServer) Start(addr string) error {
	// No WriteTimeout: a large add_missing_files batch legitimately holds
	// its response for minutes while files upload sequentially.
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s.server.ListenAndServe()
}

func (s *PluginServer) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

type addMissingFilesRequest struct {
	StoreID string `json:"store_id"`
	// Files is a JSON array of filenames, double-encoded by the datalayer.
	Files string `json:"files"`
}

// handleAddMissingFiles uploads each requested file one at a time with a
// pause in between so a large batch does not hammer the storage API.
// Per-file retry exhaustion is recorded and logged but the batch still
// reports uploaded; only a malformed request fails the call.
func (s *PluginServer) handleAddMissingFiles(w http.ResponseWriter, r *http.Request) {
	log.Info("add missing files request received")

	var req addMissingFilesRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		log.Error(fmt.Sprintf("Error parsing add_missing_files request: %s", decodeErr))
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"uploaded": false})
		return
	}

	var files []string
	if parseErr := json.Unmarshal([]byte(req.Files), &files); parseErr != nil {
		log.Error(fmt.Sprintf("Error parsing file list: %s", parseErr))
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"uploaded": false})
		return
	}

	results := NewUploadResults()
	for _, file := range files {
		// Full tree snapshots are never uploaded through this plugin,
		// only incremental diff files.
		if strings.Contains(file, "full") {
			continue
		}
		results.Add(file, s.uploader.Upload(req.StoreID, file))
		concreteSleepFunc(interFileDelay)
	}

	if failed := results.FailureCount(); failed > 0 {
		log.Warn(fmt.Sprintf("%d of %d files in batch failed to upload", failed, len(files)))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"uploaded": true})
}

func (s *PluginServer) handleHandleUpload(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"handle_upload": true})
}

func (s *PluginServer) handlePluginInfo(w http.ResponseWriter, r *http.Request) {
	log.Info("plugin info request received")

	writeJSON(w, http.StatusOK, PluginInfo{
		Name:        "S3 Plugin For Datalayer Storage",
		Version:     "1.0.0",
		Description: "A plugin to handle upload, for files to the Datalayer Storage System",
	})
}

type uploadRequest struct {
	StoreID          string `json:"store_id"`
	FullTreeFilename string `json:"full_tree_filename"`
	DiffFilename     string `json:"diff_filename"`
}

// handleUpload pushes the diff file through the parallel batch path. Only
// one file goes today but the fan-out stays so more can be added later.
func (s *PluginServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	log.Info("upload request received")

	var req uploadRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		log.Error(fmt.Sprintf("can not upload file: %s", decodeErr))
		writeJSON(w, http.StatusBadRequest, map[string]bool{"uploaded": false})
		return
	}

	results := NewUploadResults()
	var wg sync.WaitGroup

	// Dont upload the full files for now, diff only.
	for _, filename := range []string{req.DiffFilename} {
		wg.Add(1)
		go s.doUpload(req.StoreID, filename, &wg, results)
	}
	wg.Wait()

	if failed := results.FailureCount(); failed > 0 {
		log.Warn(fmt.Sprintf("%d files in upload request failed", failed))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"uploaded": true})
}

func (s *PluginServer) doUpload(storeID string, filename string, wg *sync.WaitGroup, results *UploadResults) {
	defer wg.Done()
	semaphore <- 1
	results.Add(filename, s.uploader.Upload(storeID, filename))
	<-semaphore
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		log.Warn(fmt.Sprintf("Error writing response body: %s", encodeErr))
	}
}
