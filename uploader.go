package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	uploadMaxAttempts = 5
	uploadRetryDelay  = 1 * time.Second
	uploadFileField   = "file"
)

type MultipartPoster interface {
	PostFile(postURL string, fields map[string]string, filePath string, filename string) error
}

type HTTPMultipartPoster struct {
	Client *http.Client
}

// PostFile streams the file at filePath to postURL as a multipart form,
// sending the presigned fields first and the file content last under the
// fixed field name the storage API expects.
func (h *HTTPMultipartPoster) PostFile(postURL string, fields map[string]string, filePath string, filename string) error {
	fd, fileErr := os.Open(filePath)
	if fileErr != nil {
		return fileErr
	}

	pipeReader, pipeWriter := io.Pipe()
	formWriter := multipart.NewWriter(pipeWriter)

	go func() {
		defer fd.Close()
		for key, value := range fields {
			if fieldErr := formWriter.WriteField(key, value); fieldErr != nil {
				pipeWriter.CloseWithError(fieldErr)
				return
			}
		}
		part, partErr := formWriter.CreateFormFile(uploadFileField, filename)
		if partErr != nil {
			pipeWriter.CloseWithError(partErr)
			return
		}
		if _, copyErr := io.Copy(part, fd); copyErr != nil {
			pipeWriter.CloseWithError(copyErr)
			return
		}
		pipeWriter.CloseWithError(formWriter.Close())
	}()

	resp, postErr := h.Client.Post(postURL, formWriter.FormDataContentType(), pipeReader)
	if postErr != nil {
		return postErr
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("Upload returned status %d", resp.StatusCode)
	}

	return nil
}

type Uploader struct {
	Presigner Presigner
	Poster    MultipartPoster
	AppConfig AppConfig
}

func NewUploader(appConfig AppConfig) *Uploader {
	return &Uploader{
		Presigner: NewPresignClient(appConfig),
		Poster:    &HTTPMultipartPoster{Client: &http.Client{}},
		AppConfig: appConfig,
	}
}

// Upload runs the whole negotiate-then-upload cycle for one file, retrying
// the cycle as a unit. A presigned destination is single-use, so a retry
// always negotiates a fresh one. Exhaustion is logged here; callers record
// the error internally but never fail a batch over it.
func (u *Uploader) Upload(storeID string, filename string) error {
	if !validSourceName(filename) {
		nameErr := fmt.Errorf("Refusing to upload invalid filename: %q", filename)
		log.Error(nameErr.Error())
		return nameErr
	}

	var uploadErr error
	for attempt := 0; attempt < uploadMaxAttempts; attempt++ {
		if attempt > 0 {
			concreteSleepFunc(uploadRetryDelay)
		}
		uploadErr = u.tryUpload(storeID, filename)
		if uploadErr == nil {
			return nil
		}
	}

	log.Error(fmt.Sprintf("Error uploading file after %d attempts: %s", uploadMaxAttempts, filename))
	return uploadErr
}

func (u *Uploader) tryUpload(storeID string, filename string) error {
	result, presignErr := u.Presigner.GetPresignedPost(storeID, filename)
	if presignErr != nil {
		return presignErr
	}

	if result.IsDuplicate {
		log.Info(fmt.Sprintf("File already exists: %s", filename))
		return nil
	}

	if result.Error != "" {
		return fmt.Errorf("Upload endpoint error for %s: %s", filename, result.Error)
	}

	if result.PresignedPost == nil {
		return fmt.Errorf("Upload endpoint returned no presigned post for %s", filename)
	}

	filePath := u.AppConfig.SourceFilePath(filename)
	if postErr := u.Poster.PostFile(result.PresignedPost.URL, result.PresignedPost.Fields, filePath, filename); postErr != nil {
		return postErr
	}

	log.Info(fmt.Sprintf("File successfully uploaded: %s", filename))
	return nil
}

// Filenames come from the local datalayer, but they index into the source
// tree so traversal is rejected outright rather than retried.
func validSourceName(filename string) bool {
	if filename == "" || filepath.IsAbs(filename) {
		return false
	}
	return !strings.Contains(filename, "..")
}
