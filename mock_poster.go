package main

type MockPost struct {
	URL      string
	Fields   map[string]string
	FilePath string
	Filename string
}

type MockPoster struct {
	Posts []MockPost
	Errs  []error
}

func NewMockPoster(errs ...error) *MockPoster {
	return &MockPoster{
		Posts: make([]MockPost, 0),
		Errs:  errs,
	}
}

func (m *MockPoster) PostFile(postURL string, fields map[string]string, filePath string, filename string) error {
	m.Posts = append(m.Posts, MockPost{
		URL:      postURL,
		Fields:   fields,
		FilePath: filePath,
		Filename: filename,
	})

	if len(m.Errs) == 0 {
		return nil
	}

	postErr := m.Errs[0]
	if len(m.Errs) > 1 {
		m.Errs = m.Errs[1:]
	}

	return postErr
}
