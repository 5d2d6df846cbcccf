package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 0, req["temperature"])

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
			return
		}

		resp := map[string]any{
			"id": "chatcmpl-test",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestExtractViaLLM(t *testing.T) {
	payload := `{"intent":"create_instance","environment":"Dev","instance_type":"T3.Micro",
		"operating_system":"Ubuntu","storage_size":20,"region":"us-east-1",
		"key_pair":null,"vpc_id":null,"subnet_id":null,"confidence":0.93}`
	srv := chatServer(t, payload, http.StatusOK)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	extractor := NewExtractor(client, "gpt-4o-mini", 5*time.Second)

	set := extractor.Extract(context.Background(), "dev ec2 t3.micro ubuntu 20gb us-east-1", "Engineering")

	require.NotNil(t, set.Environment)
	assert.Equal(t, "dev", *set.Environment)
	require.NotNil(t, set.InstanceType)
	assert.Equal(t, "t3.micro", *set.InstanceType)
	require.NotNil(t, set.OperatingSystem)
	assert.Equal(t, "ubuntu", *set.OperatingSystem)
	require.NotNil(t, set.StorageSize)
	assert.Equal(t, 20, *set.StorageSize)
	assert.Empty(t, set.Missing)
	assert.InDelta(t, 0.93, set.Confidence, 0.001)
}

func TestExtractMissingRecomputedLocally(t *testing.T) {
	// The model omits region and storage but the missing list is recomputed
	// from the canonical required-field list regardless of what it claims.
	payload := `{"intent":"create_instance","environment":"qa","instance_type":"t3.small",
		"operating_system":null,"storage_size":null,"region":null,
		"key_pair":null,"vpc_id":null,"subnet_id":null,"confidence":0.8}`
	srv := chatServer(t, payload, http.StatusOK)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	extractor := NewExtractor(client, "gpt-4o-mini", 5*time.Second)

	set := extractor.Extract(context.Background(), "qa box, t3.small", "Engineering")
	assert.Equal(t, []string{"operating_system", "storage_size", "region"}, set.Missing)
}

func TestExtractFallsBackOnServerError(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	extractor := NewExtractor(client, "gpt-4o-mini", 5*time.Second)

	set := extractor.Extract(context.Background(), "dev ec2 t3.micro ubuntu 20gb us-east-1", "Engineering")

	assert.InDelta(t, fallbackConfidence, set.Confidence, 0.001)
	require.NotNil(t, set.Environment)
	assert.Equal(t, "dev", *set.Environment)
	assert.Empty(t, set.Missing)
}

func TestExtractFallsBackOnMalformedPayload(t *testing.T) {
	srv := chatServer(t, "not json at all", http.StatusOK)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	extractor := NewExtractor(client, "gpt-4o-mini", 5*time.Second)

	set := extractor.Extract(context.Background(), "prod windows vm", "DevOps")
	assert.InDelta(t, fallbackConfidence, set.Confidence, 0.001)
}

func TestHeuristicFallback(t *testing.T) {
	extractor := NewExtractor(nil, "", time.Second)

	tests := []struct {
		name    string
		message string
		check   func(t *testing.T, set RequirementSet)
	}{
		{
			name:    "full scenario inference",
			message: "dev ec2 t3.micro ubuntu 20gb us-east-1",
			check: func(t *testing.T, set RequirementSet) {
				require.NotNil(t, set.Environment)
				assert.Equal(t, "dev", *set.Environment)
				require.NotNil(t, set.InstanceType)
				assert.Equal(t, "t3.micro", *set.InstanceType)
				require.NotNil(t, set.OperatingSystem)
				assert.Equal(t, "ubuntu", *set.OperatingSystem)
				require.NotNil(t, set.StorageSize)
				assert.Equal(t, 20, *set.StorageSize)
				require.NotNil(t, set.Region)
				assert.Equal(t, "us-east-1", *set.Region)
				assert.Empty(t, set.Missing)
			},
		},
		{
			name:    "ubuntu22 wins over ubuntu",
			message: "qa server with ubuntu22",
			check: func(t *testing.T, set RequirementSet) {
				require.NotNil(t, set.OperatingSystem)
				assert.Equal(t, "ubuntu22", *set.OperatingSystem)
			},
		},
		{
			name:    "amazon linux canonicalized",
			message: "amazon linux instance in prod",
			check: func(t *testing.T, set RequirementSet) {
				require.NotNil(t, set.OperatingSystem)
				assert.Equal(t, "amazon-linux", *set.OperatingSystem)
				require.NotNil(t, set.Environment)
				assert.Equal(t, "prod", *set.Environment)
			},
		},
		{
			name:    "nothing recognized",
			message: "hello there",
			check: func(t *testing.T, set RequirementSet) {
				assert.Nil(t, set.Environment)
				assert.Equal(t, []string{"environment", "instance_type", "operating_system", "storage_size", "region"}, set.Missing)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := extractor.Extract(context.Background(), tt.message, "Engineering")
			assert.Equal(t, "create_instance", set.Intent)
			tt.check(t, set)
		})
	}
}

func TestClientHTTPStatusError(t *testing.T) {
	srv := chatServer(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Chat(context.Background(), "gpt-4o-mini", []ChatMessage{{Role: "user", Content: "hi"}})

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestClientEmptyModel(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Chat(context.Background(), "", nil)
	assert.Error(t, err)
}
