package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPingErrorsWhenClientUninitialized(t *testing.T) {
	var c *Client
	err := c.Ping(context.Background())
	assert.Error(t, err)
}

func TestImageExistsFalseWhenClientUninitialized(t *testing.T) {
	var c *Client
	assert.False(t, c.ImageExists(context.Background(), "skillforge-harness:latest"))
}

func TestCloseIsNoopWhenClientUninitialized(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
