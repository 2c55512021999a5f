package main

import "sync"

// UploadResults collects per-file outcomes for one request. The detail is
// only ever logged; API responses stay a coarse uploaded boolean.
type UploadResults struct {
	Outcomes map[string]error
	lock     *sync.Mutex
}

func NewUploadResults() *UploadResults {
	return &UploadResults{
		Outcomes: make(map[string]error),
		lock:     new(sync.Mutex),
	}
}

func (r *UploadResults) Add(filename string, result error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Outcomes[filename] = result
}

func (r *UploadResults) FailureCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	failed := 0
	for _, result := range r.Outcomes {
		if result != nil {
			failed++
		}
	}

	return failed
}
