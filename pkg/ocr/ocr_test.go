package ocr_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ferraz/docqa/pkg/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ocr", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 0x50}, body)

		w.Write([]byte("recognized text"))
	}))
	defer server.Close()

	client, err := ocr.NewWithConfig(ocr.ClientConfig{BaseURL: server.URL})
	require.NoError(t, err)

	text, err := client.ExtractText(context.Background(), []byte{0x89, 0x50})

	require.NoError(t, err)
	assert.Equal(t, "recognized text", text)
}

func TestExtractTextServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := ocr.NewWithConfig(ocr.ClientConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.ExtractText(context.Background(), []byte("img"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestExtractTextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := ocr.NewWithConfig(ocr.ClientConfig{
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.ExtractText(context.Background(), []byte("img"))

	assert.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := ocr.NewWithConfig(ocr.ClientConfig{})

	assert.Error(t, err)
}
