package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumlabs/aibridge/internal/ports"
)

// newTestClient builds a remote client pointed at a test server, with the
// retry wait disabled so failure tests run instantly.
func newTestClient(t *testing.T, serverURL string, overrides map[string]any) *remoteCompletionClient {
	t.Helper()

	merged := map[string]any{
		KeyCredential: testOpenAIKey,
		KeyModel:      "gpt-4",
		KeyEndpoint:   serverURL,
	}
	for k, v := range overrides {
		merged[k] = v
	}

	built, err := newOpenAIClient(newConfig(ProviderOpenAI, nil, merged))
	require.NoError(t, err)

	client := built.(*remoteCompletionClient)
	client.dispatch.sleep = noSleep
	return client
}

func completionBody(content string) string {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func TestRemoteClient_Complete(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, chatCompletionsPath, r.URL.Path)
		assert.Equal(t, "Bearer "+testOpenAIKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionBody("Hello from the model")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, map[string]any{
		KeyTemperature: 0.4,
		KeyMaxTokens:   256,
	})

	reply, err := client.Complete(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from the model", reply)

	// The frozen configuration must be honored on the wire.
	assert.Equal(t, "gpt-4", captured.Model)
	assert.InDelta(t, 0.4, float64(captured.Temperature), 1e-6)
	assert.Equal(t, 256, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, ports.RoleUser, captured.Messages[0].Role)
	assert.Equal(t, "Say hello", captured.Messages[0].Content)
}

func TestRemoteClient_ZeroSamplingValuesReachTheWire(t *testing.T) {
	// An explicit 0.0 is a valid domain value and must not be dropped from
	// the body, or the provider would substitute its own default.
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionBody("ok")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, map[string]any{
		KeyTemperature: 0.0,
		KeyTopP:        0.0,
	})

	_, err := client.Complete(context.Background(), "hi")
	require.NoError(t, err)

	temperature, present := captured["temperature"]
	require.True(t, present, "configured temperature 0.0 must appear in the request body")
	assert.Equal(t, 0.0, temperature)

	topP, present := captured["top_p"]
	require.True(t, present, "configured top_p 0.0 must appear in the request body")
	assert.Equal(t, 0.0, topP)
}

func TestRemoteClient_Chat_MultiTurn(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionBody("Porto")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	reply, err := client.Chat(context.Background(), []ports.ChatMessage{
		{Role: ports.RoleSystem, Content: "Answer with one word."},
		{Role: ports.RoleUser, Content: "Second largest city in Portugal?"},
		{Role: ports.RoleAssistant, Content: "Porto"},
		{Role: ports.RoleUser, Content: "Repeat that."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Porto", reply)
	assert.Len(t, captured.Messages, 4)
	assert.Equal(t, ports.RoleSystem, captured.Messages[0].Role)
}

func TestRemoteClient_InputValidation(t *testing.T) {
	// No request must ever leave the process for invalid input.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	ctx := context.Background()

	_, err := client.Complete(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = client.Chat(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = client.Chat(ctx, []ports.ChatMessage{{Role: "robot", Content: "hi"}})
	var msgErr *MessageStructureError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, 0, msgErr.Index)

	_, err = client.Chat(ctx, []ports.ChatMessage{
		{Role: ports.RoleUser, Content: "hi"},
		{Role: ports.RoleUser, Content: "  "},
	})
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, 1, msgErr.Index)
}

func TestRemoteClient_RetryOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, `{"error":{"message":"upstream hiccup"}}`, http.StatusBadGateway)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, map[string]any{KeyRetryAttempts: 3})
	reply, err := client.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRemoteClient_RetryBudgetExhausted(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{name: "internal_server_error", status: 500, wantType: ErrorTypeServer},
		{name: "service_unavailable", status: 503, wantType: ErrorTypeServer},
		{name: "rate_limited", status: 429, wantType: ErrorTypeRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, `{"error":{"message":"still failing"}}`, tt.status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, map[string]any{KeyRetryAttempts: 3})
			_, err := client.Complete(context.Background(), "hi")

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantType, pe.Type)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, "still failing", pe.Message)
			assert.Equal(t, int32(3), hits.Load(), "the budget is attempts, not retries")
		})
	}
}

func TestRemoteClient_TerminalStatusesSingleAttempt(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{name: "unauthorized", status: 401, wantType: ErrorTypeAuthentication},
		{name: "not_found", status: 404, wantType: ErrorTypeUpstream},
		{name: "unprocessable", status: 422, wantType: ErrorTypeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, map[string]any{KeyRetryAttempts: 5})
			_, err := client.Complete(context.Background(), "hi")

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantType, pe.Type)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestRemoteClient_TransportFailureExhaustsAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := newTestClient(t, server.URL, map[string]any{KeyRetryAttempts: 3})
	server.Close() // every attempt now fails to connect

	var waits int
	client.dispatch.sleep = func(ctx context.Context, _ time.Duration) error {
		waits++
		return nil
	}

	_, err := client.Complete(context.Background(), "hi")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrorTypeTransport, pe.Type)
	assert.Equal(t, 2, waits, "three attempts mean two waits in between")
}

func TestRemoteClient_MalformedResponsesNotRetried(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not_json", body: "definitely not json"},
		{name: "no_choices", body: `{"choices":[]}`},
		{name: "empty_content", body: completionBody("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, map[string]any{KeyRetryAttempts: 3})
			_, err := client.Complete(context.Background(), "hi")

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, ErrorTypeMalformed, pe.Type)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestRemoteClient_TestConnection(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, modelsPath, r.URL.Path)
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		ok, err := client.TestConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("bad_status_is_unreachable_not_error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		ok, err := client.TestConnection(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("connection_refused_is_unreachable_not_error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		client := newTestClient(t, server.URL, nil)
		server.Close()

		ok, err := client.TestConnection(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("caller_cancellation_is_an_error_not_unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ok, err := client.TestConnection(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRemoteClient_Analyze(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionBody(`{"sentiment":"positive","score":0.92,"keywords":["launch"],"categories":["product"],"language":"en"}`)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	result, err := client.Analyze(context.Background(), "The launch went great!")
	require.NoError(t, err)

	assert.Equal(t, "positive", result.Sentiment)
	assert.InDelta(t, 0.92, result.Score, 1e-6)
	assert.Equal(t, []string{"launch"}, result.Keywords)
	assert.Equal(t, "en", result.Language)

	// Analysis pins its own sampling parameters regardless of the client
	// configuration.
	assert.InDelta(t, analysisTemperature, float64(captured.Temperature), 1e-6)
	assert.LessOrEqual(t, captured.MaxTokens, analysisMaxTokens)
}

func TestLocalClient_NoAuthorizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(completionBody("local says hi")))
	}))
	defer server.Close()

	built, err := newLocalClient(newConfig(ProviderLocal, nil, map[string]any{
		KeyEndpoint: server.URL,
		KeyModel:    "llama3",
	}))
	require.NoError(t, err)

	reply, err := built.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "local says hi", reply)
	assert.Equal(t, "local", built.Provider())
}
