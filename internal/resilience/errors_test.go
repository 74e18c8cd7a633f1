package resilience

import (
	"net/textproto"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient_Nil(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	err := eris.Wrap(NewTransientError(eris.New("flaky")), "ftp: connect")
	assert.True(t, IsTransient(err))
}

func TestIsTransient_FTPReplyCodes(t *testing.T) {
	assert.True(t, IsTransient(&textproto.Error{Code: 421, Msg: "service not available"}))
	assert.True(t, IsTransient(&textproto.Error{Code: 450, Msg: "file busy"}))
	assert.False(t, IsTransient(&textproto.Error{Code: 530, Msg: "not logged in"}))
	assert.False(t, IsTransient(&textproto.Error{Code: 550, Msg: "no such file"}))
}

func TestIsTransient_Syscall(t *testing.T) {
	assert.True(t, IsTransient(syscall.ECONNRESET))
	assert.True(t, IsTransient(syscall.ECONNREFUSED))
	assert.False(t, IsTransient(syscall.EACCES))
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("dial tcp: i/o timeout")))
	assert.False(t, IsTransient(eris.New("530 login incorrect")))
}
