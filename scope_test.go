package substrates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeCloseIsIdempotent(t *testing.T) {
	s := newScope(nil, zeroName, false)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.True(t, s.Closed())
}

func TestScopeClosesChildrenThenReleasesInReverse(t *testing.T) {
	root := newScope(nil, zeroName, false)
	child := root.Open()

	var order []string
	root.Register(func() error { order = append(order, "root-1"); return nil })
	root.Register(func() error { order = append(order, "root-2"); return nil })
	child.Register(func() error { order = append(order, "child"); return nil })

	require.NoError(t, root.Close())

	assert.Equal(t, []string{"child", "root-2", "root-1"}, order)
	assert.True(t, child.Closed())
}

func TestScopeRegisterOnClosedRunsSynchronously(t *testing.T) {
	s := newScope(nil, zeroName, false)
	require.NoError(t, s.Close())

	ran := false
	h := s.Register(func() error { ran = true; return nil })
	assert.True(t, ran)
	assert.NoError(t, h.Close())
}

func TestScopeRegisterDuringCloseRunsSynchronously(t *testing.T) {
	root := newScope(nil, zeroName, false)
	child := root.Open()

	childClosing := make(chan struct{})
	releaseChild := make(chan struct{})
	child.Register(func() error {
		close(childClosing)
		<-releaseChild
		return nil
	})

	closeDone := make(chan error, 1)
	go func() { closeDone <- root.Close() }()

	<-childClosing // root is now scopeClosing: children are still draining

	ran := false
	h := root.Register(func() error { ran = true; return nil })
	assert.True(t, ran, "a Register landing while the scope is closing must run immediately, not leak into a snapshot Close already passed")
	assert.NoError(t, h.Close())

	close(releaseChild)
	require.NoError(t, <-closeDone)
}

func TestScopeAggregatesReleaseFailures(t *testing.T) {
	s := newScope(nil, zeroName, false)
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	s.Register(func() error { return errA })
	s.Register(func() error { return errB })

	err := s.Close()
	require.Error(t, err)

	var closeErr *CloseError
	require.True(t, errors.As(err, &closeErr))
	assert.Len(t, closeErr.Errors, 2)
}

func TestReleaseHandleRunsExactlyOnce(t *testing.T) {
	s := newScope(nil, zeroName, false)
	count := 0
	h := s.Register(func() error { count++; return nil })

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 1, count)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, count)
}

func TestScopeOpenAfterCloseYieldsClosedChild(t *testing.T) {
	s := newScope(nil, zeroName, false)
	require.NoError(t, s.Close())

	child := s.Open()
	assert.True(t, child.Closed())
}
