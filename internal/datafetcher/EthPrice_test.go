package datafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthUsdPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ethereum": {"usd": 2345.67}}`))
	}))
	defer server.Close()

	client := NewPriceClient(server.URL)
	price, err := client.EthUsdPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2345.67, price)
}

func TestEthUsdPriceRejectsNonPositive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ethereum": {"usd": 0}}`))
	}))
	defer server.Close()

	client := NewPriceClient(server.URL)
	_, err := client.EthUsdPrice(context.Background())
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestEthUsdPriceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewPriceClient(server.URL)
	_, err := client.EthUsdPrice(context.Background())
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}
