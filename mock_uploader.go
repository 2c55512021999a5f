package main

type MockUploadRequest struct {
	StoreID  string
	Filename string
}

type MockUploader struct {
	Requests []MockUploadRequest
	Err      error
}

func NewMockUploader() *MockUploader {
	return &MockUploader{
		Requests: make([]MockUploadRequest, 0),
	}
}

func (m *MockUploader) Upload(storeID string, filename string) error {
	m.Requests = append(m.Requests, MockUploadRequest{StoreID: storeID, Filename: filename})
	return m.Err
}
