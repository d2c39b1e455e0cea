package bufrerr

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	for k := TruncatedInput; k <= UnknownUnit; k++ {
		assert.NotContains(t, k.String(), "Kind(", "kind %d has no name", int(k))
	}
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestWrapping(t *testing.T) {
	err := errors.Wrap(Errorf(BitmapExhausted, "no more targets"), "subset 2")
	assert.True(t, Is(err, BitmapExhausted))
	assert.False(t, Is(err, TruncatedInput))
	assert.Equal(t, BitmapExhausted, KindOf(err))

	err = fmt.Errorf("reading: %w", err)
	assert.Equal(t, BitmapExhausted, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestWithOffset(t *testing.T) {
	assert.NoError(t, WithOffset(nil, 3))

	err := WithOffset(Errorf(TruncatedInput, "end of data"), 12)
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, 12, e.Offset)
	assert.Equal(t, "truncated input at offset 12: end of data", e.Error())

	// The innermost offset wins.
	err = WithOffset(errors.Wrap(err, "section 4"), 40)
	e, _ = As(err)
	assert.Equal(t, 12, e.Offset)

	err = WithOffset(errors.New("plain"), 7)
	assert.Equal(t, "at offset 7: plain", err.Error())
	assert.Equal(t, "malformed framing: bad signature", (&Error{Kind: MalformedFraming, Offset: -1, Msg: "bad signature"}).Error())
}
