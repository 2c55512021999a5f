package main

type MockPresignRequest struct {
	StoreID  string
	Filename string
}

type MockPresignOutcome struct {
	Result *PresignResult
	Err    error
}

// MockPresigner replays canned outcomes in order, repeating the last one
// once the script runs out, and records every request it sees.
type MockPresigner struct {
	Requests []MockPresignRequest
	Outcomes []MockPresignOutcome
}

func NewMockPresigner(outcomes ...MockPresignOutcome) *MockPresigner {
	return &MockPresigner{
		Requests: make([]MockPresignRequest, 0),
		Outcomes: outcomes,
	}
}

func (m *MockPresigner) GetPresignedPost(storeID string, filename string) (*PresignResult, error) {
	m.Requests = append(m.Requests, MockPresignRequest{StoreID: storeID, Filename: filename})

	if len(m.Outcomes) == 0 {
		return &PresignResult{IsDuplicate: true}, nil
	}

	outcome := m.Outcomes[0]
	if len(m.Outcomes) > 1 {
		m.Outcomes = m.Outcomes[1:]
	}

	return outcome.Result, outcome.Err
}
