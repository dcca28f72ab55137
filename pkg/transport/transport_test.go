package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

func startServer(t *testing.T) (*transport.Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := transport.NewServer(ln, logrus.New())
	t.Cleanup(func() { _ = srv.Close() })
	go func() { _ = srv.Serve() }()
	return srv, ln.Addr().String()
}

func TestCallRoundTrip(t *testing.T) {
	t.Parallel()

	srv, addr := startServer(t)
	srv.Handle("echo", func(msg transport.Message) (transport.Message, error) {
		var text string
		require.NoError(t, msg.Take(&text))
		return msg.WithPayload("echo:" + text)
	})

	conn, err := transport.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	req, err := transport.Message{Type: "echo"}.WithPayload("hello")
	require.NoError(t, err)

	reply, err := conn.Call(context.Background(), req)
	require.NoError(t, err)

	var got string
	require.NoError(t, reply.Take(&got))
	assert.Equal(t, "echo:hello", got)
}

func TestCallUnknownTypeReturnsProtocolError(t *testing.T) {
	t.Parallel()

	_, addr := startServer(t)

	conn, err := transport.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Call(context.Background(), transport.Message{Type: "does-not-exist"})
	require.Error(t, err)
	assert.Equal(t, errext.Protocol, errext.KindOf(err))
}

func TestCallHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	srv, addr := startServer(t)
	release := make(chan struct{})
	srv.Handle("slow", func(transport.Message) (transport.Message, error) {
		<-release
		return transport.Message{Type: "slow"}, nil
	})
	defer close(release)

	conn, err := transport.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = conn.Call(ctx, transport.Message{Type: "slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentCallsAreMatchedBySequence(t *testing.T) {
	t.Parallel()

	srv, addr := startServer(t)
	srv.Handle("double", func(msg transport.Message) (transport.Message, error) {
		var n int
		require.NoError(t, msg.Take(&n))
		return msg.WithPayload(n * 2)
	})

	conn, err := transport.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	const calls = 20
	results := make(chan int, calls)
	for i := 0; i < calls; i++ {
		i := i
		go func() {
			req, rerr := transport.Message{Type: "double"}.WithPayload(i)
			require.NoError(t, rerr)
			reply, cerr := conn.Call(context.Background(), req)
			require.NoError(t, cerr)
			var n int
			require.NoError(t, reply.Take(&n))
			results <- n
		}()
	}

	seen := make(map[int]bool)
	for i := 0; i < calls; i++ {
		select {
		case n := <-results:
			seen[n] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for concurrent calls")
		}
	}
	for i := 0; i < calls; i++ {
		assert.True(t, seen[i*2], "missing result for input %d", i)
	}
}
