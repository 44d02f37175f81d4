package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExplorer answers submissions with submitBody and polls with pollBodies in order.
type fakeExplorer struct {
	t *testing.T

	submitStatus int
	submitBody   string
	pollStatus   int
	pollBodies   []string

	mu          sync.Mutex
	submissions int
	polls       int
	lastForm    map[string]string
	lastQuery   map[string]string
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			f.t.Errorf("ParseForm() error = %v", err)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			f.t.Errorf("Content-Type = %s, want form encoding", ct)
		}
		f.submissions++
		f.lastForm = flatten(r.PostForm)
		writeStatus(w, f.submitStatus)
		_, _ = w.Write([]byte(f.submitBody))
	case http.MethodGet:
		f.lastQuery = flatten(r.URL.Query())
		idx := f.polls
		f.polls++
		if idx >= len(f.pollBodies) {
			f.t.Errorf("unexpected poll #%d", idx+1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeStatus(w, f.pollStatus)
		_, _ = w.Write([]byte(f.pollBodies[idx]))
	default:
		f.t.Errorf("unexpected method %s", r.Method)
	}
}

type fakeSnapshot struct {
	submissions int
	polls       int
	form        map[string]string
	query       map[string]string
}

func (f *fakeExplorer) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeSnapshot{submissions: f.submissions, polls: f.polls, form: f.lastForm, query: f.lastQuery}
}

func writeStatus(w http.ResponseWriter, code int) {
	if code != 0 {
		w.WriteHeader(code)
	}
}

func flatten(v map[string][]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}

func newTestClient(opts ...Option) *Client {
	base := []Option{WithPollInterval(time.Millisecond), WithRateLimit(0, 0)}
	return New(append(base, opts...)...)
}

func TestClient_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, 3*time.Second, c.PollInterval())
	assert.Equal(t, DefaultPollInterval, c.PollInterval())
}

func TestClient_SubmitAcceptedProceedsToPolling(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		submitBody: `{"status":"1","result":"abc123guid"}`,
		pollBodies: []string{`{"status":"1","result":"Pass - Verified"}`},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient()
	resp, err := client.Verify(context.Background(), server.URL, NewVerifyRequest(testParams()))
	require.NoError(t, err)
	assert.True(t, resp.IsVerificationSuccess())

	assert.Equal(t, 1, fake.snapshot().submissions)
	assert.Equal(t, "contracts/Token.sol:Token", fake.snapshot().form["contractname"])
	assert.Equal(t, testParams().ConstructorArguments, fake.snapshot().form["constructorArguements"])
	assert.Equal(t, "abc123guid", fake.snapshot().query["guid"])
	assert.Equal(t, "checkverifystatus", fake.snapshot().query["action"])
	assert.Equal(t, "test-key", fake.snapshot().query["apikey"])
}

func TestClient_PollPendingThenVerified(t *testing.T) {
	fake := &fakeExplorer{
		t: t,
		pollBodies: []string{
			`{"status":"0","result":"Pending in queue"}`,
			`{"status":"1","result":"Pass - Verified"}`,
		},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	var attempts []int
	client := newTestClient(WithPollInterval(20*time.Millisecond), WithPollObserver(func(attempt int, _ *Response) {
		attempts = append(attempts, attempt)
	}))

	start := time.Now()
	resp, err := client.PollStatus(context.Background(), server.URL, NewCheckStatusRequest("test-key", "abc123guid"))
	require.NoError(t, err)

	assert.True(t, resp.IsVerificationSuccess())
	assert.Equal(t, 2, fake.snapshot().polls)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestClient_PollRejectedIsNotAnError(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		pollBodies: []string{`{"status":"0","result":"Fail - Unable to verify"}`},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	resp, err := newTestClient().PollStatus(context.Background(), server.URL, NewCheckStatusRequest("k", "g"))
	require.NoError(t, err)

	assert.True(t, resp.IsVerificationFailure())
	assert.False(t, resp.IsOK())
	assert.Equal(t, 1, fake.snapshot().polls)
}

func TestClient_SubmitBytecodeMissing(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		submitBody: `{"status":"0","result":"Unable to locate ContractCode at 0xabc"}`,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	resp, err := newTestClient().Verify(context.Background(), server.URL, NewVerifyRequest(testParams()))

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBytecodeNotIndexed)
	assert.Contains(t, err.Error(), testParams().ContractAddress)
	assert.Equal(t, 0, fake.snapshot().polls)
}

func TestClient_SubmitRejected(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		submitBody: `{"status":"0","result":"Fail - Unable to verify"}`,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := newTestClient().Submit(context.Background(), server.URL, NewVerifyRequest(testParams()))
	assert.ErrorIs(t, err, ErrVerificationRejected)
}

func TestClient_SubmitAlreadyVerified(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		submitBody: `{"status":"0","result":"Contract source code already verified"}`,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	resp, err := newTestClient().Submit(context.Background(), server.URL, NewVerifyRequest(testParams()))
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	require.NotNil(t, resp)
	assert.True(t, resp.IsAlreadyVerified())
}

func TestClient_SubmitProtocolError(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		submitBody: `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := newTestClient().Submit(context.Background(), server.URL, NewVerifyRequest(testParams()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestClient_SubmitHTTPError(t *testing.T) {
	fake := &fakeExplorer{
		t:            t,
		submitStatus: http.StatusBadGateway,
		submitBody:   "<html>upstream unavailable</html>",
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := newTestClient().Submit(context.Background(), server.URL, NewVerifyRequest(testParams()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "<html>upstream unavailable</html>")
	assert.Contains(t, err.Error(), server.URL)
}

func TestClient_PollHTTPError(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		pollStatus: http.StatusServiceUnavailable,
		pollBodies: []string{"maintenance"},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := newTestClient().PollStatus(context.Background(), server.URL, NewCheckStatusRequest("secret-key", "g"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrStatusUnknown)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestClient_PollUnknownFailure(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		pollBodies: []string{`{"status":"0","result":"Unknown UID"}`},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := newTestClient().PollStatus(context.Background(), server.URL, NewCheckStatusRequest("k", "g"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, ErrStatusUnknown)
	assert.Contains(t, err.Error(), "Unknown UID")
}

func TestClient_PollBytecodeMissing(t *testing.T) {
	fake := &fakeExplorer{
		t:          t,
		pollBodies: []string{`{"status":"0","result":"Unable to locate ContractCode at 0xabc"}`},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	_, err := newTestClient().PollStatus(context.Background(), server.URL, NewCheckStatusRequest("k", "g"))
	assert.ErrorIs(t, err, ErrBytecodeNotIndexed)
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient().Submit(context.Background(), url, NewVerifyRequest(testParams()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), url)
}

func TestClient_PollCancellation(t *testing.T) {
	bodies := make([]string, 1000)
	for i := range bodies {
		bodies[i] = `{"status":"0","result":"Pending in queue"}`
	}
	fake := &fakeExplorer{t: t, pollBodies: bodies}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(WithPollInterval(time.Hour), WithPollObserver(func(int, *Response) {
		cancel()
	}))

	done := make(chan error, 1)
	go func() {
		_, err := client.PollStatus(ctx, server.URL, NewCheckStatusRequest("k", "g"))
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("PollStatus did not stop after cancellation")
	}
	assert.Equal(t, 1, fake.snapshot().polls)
}
