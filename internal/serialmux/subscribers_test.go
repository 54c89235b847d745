package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanout_DropsWhenFull(t *testing.T) {
	f := newFanout(1)
	_, ch := f.add()

	assert.True(t, f.broadcast("a"))
	assert.True(t, f.broadcast("b"))
	assert.Equal(t, "a", <-ch)
	assert.Len(t, ch, 0)
}

func TestFanout_Shutdown(t *testing.T) {
	f := newFanout(1)
	id, ch := f.add()

	assert.True(t, f.shutdown())
	assert.False(t, f.shutdown())
	assert.False(t, f.broadcast("late"))

	_, open := <-ch
	assert.False(t, open)
	f.remove(id)

	_, after := f.add()
	_, open = <-after
	assert.False(t, open)
}
