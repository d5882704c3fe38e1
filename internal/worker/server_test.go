package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retried int
		want    time.Duration
	}{
		{0, 10 * time.Second},
		{2, 30 * time.Second},
		{29, 5 * time.Minute},
		{100, 5 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(tt.retried, errors.New("busy"), nil), "第 %d 次重试的间隔", tt.retried)
	}
}
