package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMQHeaderCarrier(t *testing.T) {
	headers := map[string]interface{}{"x-trace-id": "abc", "retries": 3}
	c := NewMQHeaderCarrier(headers)

	c.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	assert.Equal(t, "abc", c.Get("x-trace-id"))
	assert.Equal(t, "", c.Get("retries"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Contains(t, headers, "traceparent")
	assert.ElementsMatch(t, []string{"x-trace-id", "retries", "traceparent"}, c.Keys())
}

func TestSamplingRatio(t *testing.T) {
	assert.Equal(t, 0.2, samplingRatio(0))
	assert.Equal(t, 0.5, samplingRatio(0.5))
	assert.Equal(t, 1.0, samplingRatio(3))
}
