package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medreader/labreader-backend/internal/models"
)

func TestRelaySuccess(t *testing.T) {
	voice := []byte("OggS fake audio")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/lab/read-medication", r.URL.Path)
		assert.Equal(t, "French", r.URL.Query().Get("language"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "report.pdf", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{
			"analysis": "Your *hemoglobin* looks fine.",
			"voice":    base64.StdEncoding.EncodeToString(voice),
		})
	}))
	defer server.Close()

	relay := NewRelayService(server.URL, 5*time.Second)
	result := relay.Relay(context.Background(), models.TaskMedication, models.LanguageFrench, testDocument())

	assert.Equal(t, RelaySuccess, result.Status)
	assert.Equal(t, "Your *hemoglobin* looks fine.", result.Analysis)
	assert.Equal(t, voice, result.Voice)
}

func TestRelaySuccessWithBadVoiceKeepsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"analysis": "All good.",
			"voice":    "not!!base64!!",
		})
	}))
	defer server.Close()

	relay := NewRelayService(server.URL, 5*time.Second)
	result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

	assert.Equal(t, RelaySuccess, result.Status)
	assert.Equal(t, "All good.", result.Analysis)
	assert.Nil(t, result.Voice)
}

func TestRelayRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	relay := NewRelayService(server.URL, 5*time.Second)
	result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

	assert.Equal(t, RelayRateLimited, result.Status)
}

func TestRelayRemoteErrorDetail(t *testing.T) {
	t.Run("structured detail field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"detail": "unreadable scan"})
		}))
		defer server.Close()

		relay := NewRelayService(server.URL, 5*time.Second)
		result := relay.Relay(context.Background(), models.TaskRadiography, models.LanguageEnglish, testDocument())

		assert.Equal(t, RelayRemoteError, result.Status)
		assert.Equal(t, "unreadable scan", result.Detail)
	})

	t.Run("raw body fallback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream exploded"))
		}))
		defer server.Close()

		relay := NewRelayService(server.URL, 5*time.Second)
		result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

		assert.Equal(t, RelayRemoteError, result.Status)
		assert.Contains(t, result.Detail, "HTTP 502")
		assert.Contains(t, result.Detail, "upstream exploded")
	})

	t.Run("empty body placeholder", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		relay := NewRelayService(server.URL, 5*time.Second)
		result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

		assert.Equal(t, RelayRemoteError, result.Status)
		assert.Contains(t, result.Detail, "no detail provided")
	})
}

func TestRelayMissingAnalysisIsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	relay := NewRelayService(server.URL, 5*time.Second)
	result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

	assert.Equal(t, RelayRemoteError, result.Status)
	assert.Contains(t, result.Detail, "no analysis")
}

func TestRelayTransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // nothing listens anymore

		relay := NewRelayService(server.URL, 2*time.Second)
		result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

		assert.Equal(t, RelayTransportError, result.Status)
		assert.Contains(t, result.Detail, "connection failed")
	})

	t.Run("timeout is named as such", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer server.Close()

		relay := NewRelayService(server.URL, 50*time.Millisecond)
		result := relay.Relay(context.Background(), models.TaskAnalysis, models.LanguageEnglish, testDocument())

		assert.Equal(t, RelayTransportError, result.Status)
		assert.Contains(t, result.Detail, "timeout")
	})
}
