package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/furrow/pkg/adapters/sandbox"
	"github.com/aretw0/furrow/pkg/domain"
)

func TestDryRunner_EchoesWithoutExecuting(t *testing.T) {
	marker := t.TempDir() + "/should-not-exist"
	result := sandbox.NewDryRunner().Run(context.Background(), "touch "+marker, time.Second)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "(dry run) touch "+marker, result.Stdout)
	assert.NoFileExists(t, marker)
}

func TestDryRunner_StillEnforcesDenylist(t *testing.T) {
	result := sandbox.NewDryRunner().Run(context.Background(), "rm -rf /", time.Second)

	assert.Equal(t, domain.ExitBlocked, result.ExitCode)
	assert.Contains(t, result.Stderr, "CRITICAL SECURITY")
}
