package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnConfigNormalizeClamps(t *testing.T) {
	cfg := TurnConfig{TimeoutSeconds: 10, RecursionLimit: 5, ClassifyTimeout: 15}
	cfg.Normalize()
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, 10, cfg.RecursionLimit)

	cfg = TurnConfig{TimeoutSeconds: 900, RecursionLimit: 500}
	cfg.Normalize()
	assert.Equal(t, 300, cfg.TimeoutSeconds)
	assert.Equal(t, 200, cfg.RecursionLimit)
	assert.Equal(t, 15, cfg.ClassifyTimeout)

	cfg = TurnConfig{TimeoutSeconds: 120, RecursionLimit: 100, ClassifyTimeout: 5}
	cfg.Normalize()
	assert.Equal(t, 120, cfg.TimeoutSeconds)
	assert.Equal(t, 100, cfg.RecursionLimit)
	assert.Equal(t, 5, cfg.ClassifyTimeout)
}

func TestWorkflowValid(t *testing.T) {
	assert.True(t, WorkflowMedical.Valid())
	assert.True(t, WorkflowGeneral.Valid())
	assert.False(t, Workflow("other").Valid())
}

func TestFallbackClassification(t *testing.T) {
	c := FallbackClassification("model unavailable")
	assert.Equal(t, WorkflowGeneral, c.Workflow)
	assert.Equal(t, 0.5, c.Confidence)
	assert.Equal(t, MethodFallbackError, c.Method)
	assert.Equal(t, "model unavailable", c.Reason)
}
