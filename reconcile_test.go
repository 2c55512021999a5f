package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedTransport struct {
	requests []*http.Request
	bodies   []string
	refusals int
	failWith error
	onCall   func(call int)
}

func (s *scriptedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, r)
	if r.Body != nil {
		body, _ := ioutil.ReadAll(r.Body)
		s.bodies = append(s.bodies, string(body))
	}
	call := len(s.requests)
	if s.onCall != nil {
		s.onCall(call)
	}

	if s.failWith != nil {
		return nil, s.failWith
	}
	if call <= s.refusals {
		return nil, &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
		}
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       ioutil.NopCloser(strings.NewReader(`{"success": true}`)),
	}, nil
}

func testReconciler(transport *scriptedTransport) *Reconciler {
	return &Reconciler{
		RPCHost:    "localhost",
		RPCPort:    8562,
		Client:     &http.Client{Transport: transport},
		RetryDelay: time.Millisecond,
	}
}

func TestReconcilerPostsAddMissingFiles(t *testing.T) {
	transport := &scriptedTransport{}
	reconciler := testReconciler(transport)

	reconciler.Run(context.Background())

	assert.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://localhost:8562/add_missing_files", req.URL.String())
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "{}", transport.bodies[0])
}

func TestReconcilerRetriesOnConnectionRefused(t *testing.T) {
	transport := &scriptedTransport{refusals: 3}
	reconciler := testReconciler(transport)

	reconciler.Run(context.Background())

	// Three refusals mean three rescheduled retries before the success.
	assert.Len(t, transport.requests, 4)
}

func TestReconcilerRefusalRetryIsUnbounded(t *testing.T) {
	transport := &scriptedTransport{refusals: 20}
	reconciler := testReconciler(transport)

	reconciler.Run(context.Background())

	assert.Len(t, transport.requests, 21)
}

func TestReconcilerGivesUpOnOtherErrors(t *testing.T) {
	transport := &scriptedTransport{failWith: fmt.Errorf("tls handshake failure")}
	reconciler := testReconciler(transport)

	reconciler.Run(context.Background())

	assert.Len(t, transport.requests, 1)
}

func TestReconcilerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &scriptedTransport{
		refusals: 1000,
		onCall: func(call int) {
			if call == 1 {
				cancel()
			}
		},
	}
	reconciler := testReconciler(transport)
	reconciler.RetryDelay = time.Hour

	done := make(chan struct{})
	go func() {
		reconciler.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop after context cancellation")
	}
}

func TestReconcilerDefaultRetryDelay(t *testing.T) {
	assert.Equal(t, 300*time.Second, reconcileRetryDelay)
}
