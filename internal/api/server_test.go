package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/genserve/internal/inference"
	"github.com/samcharles93/genserve/internal/modelhost"
)

const (
	idBOS     = 1
	idEOS     = 2
	idImEnd   = 9
	idExplode = 10
)

var vocab = map[int]string{
	3: "Today", 4: "I", 5: "wrote", 6: "a", 7: "diary", 8: "<unk>",
	idImEnd: "<|im_end|>", idExplode: "explode",
}

// chainModel picks the next token from the last one, so output depends only
// on the sequence and calls can interleave.
type chainModel struct{}

func (chainModel) Forward(_ context.Context, ids []int) ([]float32, error) {
	last := ids[len(ids)-1]
	next := idEOS
	switch last {
	case idExplode:
		return nil, errors.New("device lost")
	case 4:
		next = 5
	case 5:
		next = 6
	case 6:
		next = 7
	case 7:
		next = idImEnd
	}
	row := make([]float32, 11)
	row[next] = 1
	return row, nil
}

type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) ([]int, error) {
	if text == "bad" {
		return nil, errors.New("unencodable")
	}
	ids := []int{idBOS}
	for _, f := range strings.Fields(text) {
		id := 8
		for k, w := range vocab {
			if w == f {
				id = k
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (wordTokenizer) Decode(ids []int, skipSpecial bool) (string, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == idBOS || id == idEOS {
			if skipSpecial {
				continue
			}
		}
		parts = append(parts, vocab[id])
	}
	return strings.Join(parts, " "), nil
}

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	engine := inference.NewLocalEngine(inference.LocalConfig{
		Tokenizer:  wordTokenizer{},
		Model:      chainModel{},
		StopTokens: []int{idEOS},
	})
	host, err := modelhost.New(engine, modelhost.Config{Model: "test"}, nil)
	require.NoError(t, err)
	return newEchoFor(NewServer(host))
}

func newEchoFor(s *Server) *echo.Echo {
	e := echo.New()
	s.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeGenerated(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	require.Len(t, raw, 1, rec.Body.String())
	text, ok := raw["generated_text"].(string)
	require.True(t, ok, "generated_text must be a string: %s", rec.Body.String())
	return text
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Error
}

func TestGenerateReturnsText(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/generate", `{"text":"Today I"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeGenerated(t, rec)
	assert.NotEmpty(t, got)
	assert.GreaterOrEqual(t, len(got), len("Today I"))
	assert.True(t, strings.HasPrefix(got, "Today I"), got)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestGenerateStripsControlTokens(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/generate", `{"text":"Today I"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeGenerated(t, rec)
	assert.False(t, inference.HasControlTokens(got), got)
	assert.Equal(t, "Today I wrote a diary", strings.TrimSpace(got))
}

func TestGenerateAcceptsEmptyText(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/generate", `{"text":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeGenerated(t, rec)
}

func TestGenerateRejectsBadBodies(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	bodies := map[string]string{
		"empty":        ``,
		"malformed":    `{"text": "Today`,
		"missing text": `{"prompt":"Today I"}`,
		"null text":    `{"text":null}`,
		"number text":  `{"text":42}`,
		"array body":   `["Today I"]`,
		"null body":    `null`,
		"trailing":     `{"text":"a"} {"text":"b"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := doJSON(t, e, http.MethodPost, "/generate", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, typeInvalidRequest, decodeError(t, rec).Type)
			assert.NotContains(t, rec.Body.String(), "generated_text")
		})
	}
}

func TestGenerateMissingTextIsConsistent(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	for range 3 {
		rec := doJSON(t, e, http.MethodPost, "/generate", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestGenerateRecoversAfterMalformedRequest(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	bad := doJSON(t, e, http.MethodPost, "/generate", `{not json`)
	require.Equal(t, http.StatusBadRequest, bad.Code)

	good := doJSON(t, e, http.MethodPost, "/generate", `{"text":"Today I"}`)
	require.Equal(t, http.StatusOK, good.Code, good.Body.String())
	assert.NotEmpty(t, decodeGenerated(t, good))
}

func TestGenerateHostErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/generate", `{"text":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, typeInvalidRequest, decodeError(t, rec).Type)

	rec = doJSON(t, e, http.MethodPost, "/generate", `{"text":"explode"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decodeError(t, rec)
	assert.Equal(t, typeGeneration, got.Type)
	assert.NotContains(t, got.Message, "device lost")
}

type cancelledGenerator struct{}

func (cancelledGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("acquire: %w", context.Canceled)
}

func TestGenerateCancelledIsUnavailable(t *testing.T) {
	t.Parallel()

	e := newEchoFor(NewServer(cancelledGenerator{}))
	rec := doJSON(t, e, http.MethodPost, "/generate", `{"text":"Today I"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, typeServer, decodeError(t, rec).Type)
}

func TestGenerateConcurrentRequests(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	prompts := []string{"Today I", "I"}
	results := make([]*httptest.ResponseRecorder, len(prompts))

	var wg sync.WaitGroup
	for i, p := range prompts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = doJSON(t, e, http.MethodPost, "/generate", fmt.Sprintf(`{"text":%q}`, p))
		}()
	}
	wg.Wait()

	for i, rec := range results {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasPrefix(decodeGenerated(t, rec), prompts[i]))
	}
}

func TestGenerateCORS(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"text":"Today I"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderOrigin, "https://example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	pre := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	pre.Header.Set(echo.HeaderOrigin, "https://example.com")
	pre.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestGenerateOtherMethods(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/v1/generate", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t)
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"text":"I"}`))
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestGenerateWithoutGenerator(t *testing.T) {
	t.Parallel()

	e := newEchoFor(NewServer(nil))
	rec := doJSON(t, e, http.MethodPost, "/generate", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	status, typ, _ := statusFor(fmt.Errorf("wrapped: %w", modelhost.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, typeInvalidRequest, typ)

	status, typ, _ = statusFor(context.DeadlineExceeded)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, typeServer, typ)

	status, typ, _ = statusFor(modelhost.ErrGenerationFailure)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, typeGeneration, typ)
}
