package elastic

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qubic/go-ledger-engine/entities"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bulkServer struct {
	status   int
	response string
	mu       sync.Mutex
	requests []string
}

func (bs *bulkServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	bs.mu.Lock()
	bs.requests = append(bs.requests, r.Method+" "+r.URL.Path+"\n"+string(body))
	bs.mu.Unlock()

	// required by the client's product check
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(bs.status)
	_, _ = w.Write([]byte(bs.response))
}

func TestClient_PublishAccounts(t *testing.T) {
	bs := &bulkServer{status: http.StatusOK, response: `{"took":1,"errors":false,"items":[]}`}
	server := httptest.NewServer(bs)
	defer server.Close()

	client, err := NewClient(server.URL, "ledger-accounts", time.Second)
	require.NoError(t, err)

	err = client.PublishAccounts(context.Background(), []entities.Account{
		{Client: 1, Held: decimal.Zero, Total: decimal.NewFromInt(10)},
		{Client: 2, Held: decimal.NewFromInt(1), Total: decimal.NewFromInt(1), Locked: true},
	})
	require.NoError(t, err)

	require.Len(t, bs.requests, 1)
	scanner := bufio.NewScanner(strings.NewReader(bs.requests[0]))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	expected := []string{
		"POST /_bulk",
		`{ "index": { "_index": "ledger-accounts", "_id": "1" } }`,
		`{"client":1,"available":"10.0000","held":"0.0000","total":"10.0000","locked":false}`,
		`{ "index": { "_index": "ledger-accounts", "_id": "2" } }`,
		`{"client":2,"available":"0.0000","held":"1.0000","total":"1.0000","locked":true}`,
	}
	assert.Equal(t, expected, lines)
}

func TestClient_PublishAccountsErrors(t *testing.T) {

	testData := []struct {
		name     string
		status   int
		response string
	}{
		{
			name:     "TestPublishAccounts_ServerError",
			status:   http.StatusBadRequest,
			response: `{"error":"bad request"}`,
		},
		{
			name:     "TestPublishAccounts_FailedItems",
			status:   http.StatusOK,
			response: `{"took":1,"errors":true,"items":[{"index":{"status":400}}]}`,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			server := httptest.NewServer(&bulkServer{status: testRun.status, response: testRun.response})
			defer server.Close()

			client, err := NewClient(server.URL, "ledger-accounts", time.Second)
			require.NoError(t, err)

			err = client.PublishAccounts(context.Background(), []entities.Account{entities.NewAccount(1)})
			require.Error(t, err)
		})
	}
}

func TestClient_PublishNoAccounts(t *testing.T) {
	bs := &bulkServer{status: http.StatusOK, response: `{}`}
	server := httptest.NewServer(bs)
	defer server.Close()

	client, err := NewClient(server.URL, "ledger-accounts", time.Second)
	require.NoError(t, err)

	require.NoError(t, client.PublishAccounts(context.Background(), nil))
	require.Empty(t, bs.requests)
}
