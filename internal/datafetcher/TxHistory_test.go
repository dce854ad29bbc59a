package datafetcher

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionHistory(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"module": r.URL.Query().Get("module"),
			"action": r.URL.Query().Get("action"),
			"sort":   r.URL.Query().Get("sort"),
			"apikey": r.URL.Query().Get("apikey"),
		}
		w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [
				{"from": "0xAAA0000000000000000000000000000000000001", "to": "0xBBB0000000000000000000000000000000000002", "value": "1000000000000000000", "gasPrice": "20000000000", "timeStamp": "1690000000"},
				{"from": "0xBBB0000000000000000000000000000000000002", "to": "0xAAA0000000000000000000000000000000000001", "value": "500000000000000000", "timeStamp": "1695000000"}
			]
		}`))
	}))
	defer server.Close()

	client := NewExplorerClient(server.URL, "test-key")
	records, err := client.TransactionHistory(context.Background(), "0xAAA0000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "account", gotQuery["module"])
	assert.Equal(t, "txlist", gotQuery["action"])
	assert.Equal(t, "asc", gotQuery["sort"])
	assert.Equal(t, "test-key", gotQuery["apikey"])

	first := records[0]
	assert.Equal(t, "0xaaa0000000000000000000000000000000000001", first.From)
	assert.Equal(t, "0xbbb0000000000000000000000000000000000002", first.To)
	assert.Equal(t, 0, first.ValueWei.Cmp(big.NewInt(1_000_000_000_000_000_000)))
	assert.Equal(t, 0, first.GasPriceWei.Cmp(big.NewInt(20_000_000_000)))
	assert.Equal(t, int64(1690000000), first.Timestamp)

	// A record without a gas price keeps a nil pointer, not a zero.
	assert.Nil(t, records[1].GasPriceWei)
}

func TestTransactionHistoryNoTransactionsSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": []}`))
	}))
	defer server.Close()

	client := NewExplorerClient(server.URL, "k")
	records, err := client.TransactionHistory(context.Background(), "0xAAA0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestTransactionHistoryAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"}`))
	}))
	defer server.Close()

	client := NewExplorerClient(server.URL, "k")
	_, err := client.TransactionHistory(context.Background(), "0xAAA0000000000000000000000000000000000001")
	assert.ErrorIs(t, err, ErrExplorerAPI)
}

func TestTransactionHistoryMalformedRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [{"from": "0xa", "to": "0xb", "value": "not-a-number", "timeStamp": "1690000000"}]
		}`))
	}))
	defer server.Close()

	client := NewExplorerClient(server.URL, "k")
	_, err := client.TransactionHistory(context.Background(), "0xAAA0000000000000000000000000000000000001")
	assert.ErrorIs(t, err, ErrMalformedHistory)
}

func TestTransactionHistoryRetriesTransportFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < MAX_RETRIES {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": []}`))
	}))
	defer server.Close()

	client := NewExplorerClient(server.URL, "k")
	records, err := client.TransactionHistory(context.Background(), "0xAAA0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, MAX_RETRIES, attempts)
}

func TestTransactionHistoryExhaustsRetryBudget(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewExplorerClient(server.URL, "k")
	_, err := client.TransactionHistory(context.Background(), "0xAAA0000000000000000000000000000000000001")
	assert.ErrorIs(t, err, ErrExplorerAPI)
	assert.Equal(t, MAX_RETRIES, attempts)
}
