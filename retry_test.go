package haven

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/havenhome/haven.go/pkg/constants"
)

func TestBackoffDelaySaturates(t *testing.T) {
	b := Backoff{Sequence: constants.DefaultBackoff}

	assert.Equal(t, 1*time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 5*time.Second, b.Delay(2))
	assert.Equal(t, 10*time.Second, b.Delay(3))
	assert.Equal(t, 30*time.Second, b.Delay(4))
	// Exhausted sequences repeat the final value forever.
	assert.Equal(t, 30*time.Second, b.Delay(5))
	assert.Equal(t, 30*time.Second, b.Delay(1000))
}

func TestBackoffEmptySequence(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff{}.Delay(3))
}
