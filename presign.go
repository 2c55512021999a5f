package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	presignMaxAttempts = 5
	presignRetryDelay  = 1 * time.Second
	presignTimeout     = 300 * time.Second
)

// PresignedPost is the one-time upload destination minted by the storage
// API: the URL to POST to plus the form fields it requires alongside the
// file.
type PresignedPost struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// PresignResult carries exactly one of the three negotiation outcomes:
// the file already exists remotely, a presigned destination to upload to,
// or an error message from the storage API.
type PresignResult struct {
	IsDuplicate   bool           `json:"isDuplicate"`
	PresignedPost *PresignedPost `json:"presignedPost"`
	Error         string         `json:"error"`
}

type Presigner interface {
	GetPresignedPost(storeID string, filename string) (*PresignResult, error)
}

type PresignClient struct {
	UploadURL string
	AccessKey string
	SecretKey string
	Client    *http.Client
}

func NewPresignClient(appConfig AppConfig) *PresignClient {
	return &PresignClient{
		UploadURL: appConfig.UploadURL,
		AccessKey: appConfig.ClientAccessKey,
		SecretKey: appConfig.ClientSecretAccessKey,
		Client:    &http.Client{Timeout: presignTimeout},
	}
}

// GetPresignedPost negotiates an upload destination for (storeID, filename)
// with the storage API, retrying internally. Callers wrap this in their own
// retry, so a single upload can negotiate more than presignMaxAttempts
// times in total.
func (p *PresignClient) GetPresignedPost(storeID string, filename string) (*PresignResult, error) {
	var result PresignResult
	var remoteMessage string

	attempt := func() error {
		payload, marshalErr := json.Marshal(map[string]string{
			"store_id": storeID,
			"filename": filename,
		})
		if marshalErr != nil {
			return marshalErr
		}

		req, reqErr := http.NewRequest(http.MethodPost, p.UploadURL, bytes.NewReader(payload))
		if reqErr != nil {
			return reqErr
		}
		req.SetBasicAuth(p.AccessKey, p.SecretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := p.Client.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			var remoteErr struct {
				Message string `json:"message"`
			}
			if decodeErr := json.NewDecoder(resp.Body).Decode(&remoteErr); decodeErr == nil && remoteErr.Message != "" {
				remoteMessage = remoteErr.Message
			}
			return fmt.Errorf("Upload endpoint returned status %d", resp.StatusCode)
		}

		result = PresignResult{}
		return json.NewDecoder(resp.Body).Decode(&result)
	}

	if retryErr := withRetry(attempt, presignMaxAttempts, presignRetryDelay); retryErr != nil {
		if remoteMessage == "" {
			remoteMessage = "No message provided"
		}
		log.Error(fmt.Sprintf("Error getting presigned URL for file: %s. Error: %s", filename, remoteMessage))
		return nil, fmt.Errorf("Error getting presigned URL: %w", retryErr)
	}

	return &result, nil
}
