package sentinel

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("get account: %w", ErrUnavailable)))
	assert.True(t, IsUnavailable(context.DeadlineExceeded))
	assert.True(t, IsUnavailable(driver.ErrBadConn))
	assert.True(t, IsUnavailable(&net.OpError{Op: "dial", Err: errors.New("refused")}))

	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(ErrNotFound))
	assert.False(t, IsUnavailable(errors.New("syntax error")))
}
