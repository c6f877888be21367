package mocks

import "net/http"

// MockClient satisfies the push.HTTPClient interface so tests can
// canned-response external endpoints without a network
type MockClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}
