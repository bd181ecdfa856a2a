package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil, "qwen"))
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	err := &url.Error{Op: "Post", URL: "https://example.test", Err: context.DeadlineExceeded}

	got := Classify(err, "qwen")

	require.NotNil(t, got)
	assert.Equal(t, KindTimeout, got.Kind)
	assert.Equal(t, "qwen", got.Provider)
	assert.True(t, got.Retryable())
	assert.Equal(t, http.StatusGatewayTimeout, got.HTTPStatus())
}

func TestClassify_StatusCode(t *testing.T) {
	got := Classify(fmt.Errorf("wrapped: %w", statusErr{code: 503}), "deepseek")

	assert.Equal(t, KindProviderError, got.Kind)
	assert.Equal(t, 503, got.Status)
	assert.Contains(t, got.Message, "deepseek")
	assert.Contains(t, got.Message, "503")
	assert.True(t, got.Retryable())
}

func TestClassify_Network(t *testing.T) {
	err := &url.Error{Op: "Post", URL: "https://example.test", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}

	got := Classify(err, "kimi")

	assert.Equal(t, KindNetworkError, got.Kind)
	assert.Equal(t, http.StatusBadGateway, got.HTTPStatus())
}

func TestClassify_Unknown(t *testing.T) {
	got := Classify(errors.New("boom"), "qwen")

	assert.Equal(t, KindInternalError, got.Kind)
	assert.False(t, got.Retryable())
	assert.Equal(t, "boom", got.Details())
}

func TestClassify_PassThrough(t *testing.T) {
	orig := EmptyInput("prompt")

	got := Classify(fmt.Errorf("ctx: %w", orig), "qwen")

	assert.Equal(t, KindEmptyInput, got.Kind)
	assert.Equal(t, orig.Message, got.Message)
	assert.Equal(t, "qwen", got.Provider)
	assert.Equal(t, "", orig.Provider, "input must not be mutated")
}

func TestClassify_Hints(t *testing.T) {
	hints := []Hint{
		{Contains: "Model Not Exist", Message: "DeepSeek model does not exist, check the model name"},
		{Contains: "authentication", Message: "DeepSeek API key is invalid"},
	}

	got := Classify(errors.New(`{"error":{"message":"Model Not Exist"}}`), "deepseek", hints...)

	assert.Equal(t, KindInternalError, got.Kind)
	assert.Equal(t, "DeepSeek model does not exist, check the model name", got.Message)
}

func TestError_ValidationKinds(t *testing.T) {
	for _, e := range []*Error{
		UnknownProvider("x"), UnknownModel("qwen", "y"), MissingCredential("qwen", "DASHSCOPE_API_KEY"),
		EmptyInput("prompt"), InputTooLong("prompt", 10), EmptyFeedback(), InvalidInput("bad"),
	} {
		assert.True(t, e.Validation(), e.Kind)
		assert.False(t, e.Retryable(), e.Kind)
		assert.Equal(t, http.StatusBadRequest, e.HTTPStatus(), e.Kind)
	}
}
