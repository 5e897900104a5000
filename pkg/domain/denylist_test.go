package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/furrow/pkg/domain"
)

func TestBlockedCommand(t *testing.T) {
	blocked := []string{
		"rm -rf /",
		"rm -rf /var/lib",
		"sudo rm -rf / --no-preserve-root",
		"RM -RF /",
		"  rm   -rf   /  ",
		"rm\t-rf\t/",
		"echo ok && format c:",
		"echo 'format c: is dangerous'", // substring matching is deliberately pessimistic
		`rd /s /q c:\`,
	}
	for _, cmd := range blocked {
		pattern, hit := domain.BlockedCommand(cmd)
		assert.True(t, hit, "expected %q to be blocked", cmd)
		assert.NotEmpty(t, pattern)
	}

	allowed := []string{
		"",
		"ls -la",
		"rm -rf ./build",
		"rm file.txt",
	}
	for _, cmd := range allowed {
		_, hit := domain.BlockedCommand(cmd)
		assert.False(t, hit, "expected %q to pass", cmd)
	}
}
