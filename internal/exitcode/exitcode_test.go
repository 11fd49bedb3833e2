package exitcode_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/evanw/packcore/internal/exitcode"
	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	base := exitcode.Set(errors.New(""), exitcode.Internal)
	wrapped := fmt.Errorf("wrapping: %w", base)

	testCases := map[string]struct {
		error
		int
	}{
		"nil":     {nil, exitcode.Success},
		"default": {errors.New(""), exitcode.BuildFailed},
		"set":     {exitcode.Set(errors.New(""), exitcode.Usage), exitcode.Usage},
		"wrapped": {wrapped, exitcode.Internal},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.int, exitcode.Get(tc.error), "%v", tc.error)
		})
	}
}

func TestSet(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, exitcode.Set(nil, exitcode.Usage))
	})
	t.Run("same-message", func(t *testing.T) {
		err := errors.New("hello")
		assert.Equal(t, err.Error(), exitcode.Set(err, exitcode.Usage).Error())
	})
	t.Run("keep-chain", func(t *testing.T) {
		err := errors.New("hello")
		assert.ErrorIs(t, exitcode.Set(err, exitcode.BuildFailed), err)
	})
}
