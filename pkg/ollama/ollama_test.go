package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, apiGenerate, r.URL.Path)
		var in GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "llava", in.Model)
		require.False(t, in.Stream)
		require.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("img"))}, in.Images)
		_, _ = w.Write([]byte(`{"model":"llava","response":"  a terminal window \n","done":true}`))
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{URL: srv.URL + "/", Model: "llava"})
	out, err := e.Generate(context.Background(), "describe", [][]byte{[]byte("img")})
	require.NoError(t, err)
	require.Equal(t, "a terminal window", out)
}

func TestGenerateErrors(t *testing.T) {
	status := http.StatusOK
	body := `{"done":true}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	e := NewEngine().SetConfig(Config{URL: srv.URL, Model: "llava"})

	_, err := e.Generate(context.Background(), "p", nil)
	require.True(t, errors.Is(err, ErrInvalidResponse))

	body = `not json`
	_, err = e.Generate(context.Background(), "p", nil)
	require.True(t, errors.Is(err, ErrInvalidResponse))

	status, body = http.StatusInternalServerError, `{"error":"model not loaded"}`
	_, err = e.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInvalidResponse))
	require.Contains(t, err.Error(), "500")
}
