package detector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocked_ConcurrentClassify(t *testing.T) {
	l, err := NewLocked(ServerProfile())
	require.NoError(t, err)

	const workers = 8
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s := l.Classify(-float64((i + w) % 7))
				assert.GreaterOrEqual(t, int(s), int(SignalNone))
				assert.LessOrEqual(t, int(s), int(SignalJump))
			}
		}(w)
	}
	wg.Wait()

	snap := l.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), snap.Calls)
	assert.Len(t, snap.Raw, 10)
	assert.Len(t, snap.Filtered, 10)
}

func TestLocked_ResetAndConfig(t *testing.T) {
	l, err := NewLocked(EmbeddedProfile())
	require.NoError(t, err)

	l.Classify(-3)
	l.Reset()

	assert.Equal(t, uint64(0), l.Snapshot().Calls)
	assert.Equal(t, EmbeddedProfile(), l.Config())

	var c Classifier = l
	assert.NotNil(t, c)
}

func TestNewLocked_InvalidConfig(t *testing.T) {
	cfg := ServerProfile()
	cfg.WindowCapacity = 0
	_, err := NewLocked(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
