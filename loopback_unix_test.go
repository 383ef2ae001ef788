//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package socol

import (
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

// loopbackFamilies returns the families the host supports on loopback.
func loopbackFamilies() []Family {
	families := []Family{IPv4}
	if nettest.SupportsIPv6() {
		families = append(families, IPv6)
	}
	return families
}

// loopbackAddress returns the loopback address of family with port.
func loopbackAddress(family Family, port uint16) Address {
	if family == IPv6 {
		return NewIPAddress6(netip.IPv6Loopback().As16(), port, 0)
	}
	return NewIPAddress(127, 0, 0, 1, port)
}

// connectedPair returns two connected blocking stream sockets.
func connectedPair(t *testing.T, family Family) (client, server *Socket) {
	cfg := NewConfig()
	listener := NewSocket(cfg, family, Stream, DefaultSLogger())
	t.Cleanup(listener.Close)
	require.True(t, listener.Listen(0))
	port := listener.LocalAddress().AddrPort().Port()
	require.NotZero(t, port)

	client = NewSocket(cfg, family, Stream, DefaultSLogger())
	t.Cleanup(client.Close)
	require.True(t, client.Connect(loopbackAddress(family, port)))

	server, peer, ok := listener.Accept()
	require.True(t, ok)
	t.Cleanup(server.Close)
	assert.Equal(t, family, peer.Family())
	assert.Equal(t, client.LocalAddress().AddrPort().Port(), peer.AddrPort().Port())
	return client, server
}

// updateUntil runs registry passes until done returns true.
func updateUntil(t *testing.T, reg *Registry, done func() bool) {
	deadline := time.Now().Add(10 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			require.FailNow(t, "timed out waiting for the registry")
		}
		reg.Update()
		time.Sleep(time.Millisecond)
	}
}

func TestLoopbackExactIO(t *testing.T) {
	for _, family := range loopbackFamilies() {
		for _, size := range []int{0, 1, 4 << 20} {
			t.Run(fmt.Sprintf("%s/%d", family, size), func(t *testing.T) {
				client, server := connectedPair(t, family)
				data := make([]byte, size)
				for idx := range data {
					data[idx] = byte(idx % 251)
				}

				sent := make(chan bool, 1)
				go func() {
					sent <- client.SendExact(data)
				}()
				buf := make([]byte, size)
				require.True(t, server.ReceiveExact(buf))
				require.True(t, <-sent)

				assert.Equal(t, data, buf)
				assert.NoError(t, client.Err())
				assert.NoError(t, server.Err())
			})
		}
	}
}

func TestLoopbackPeerClose(t *testing.T) {
	for _, family := range loopbackFamilies() {
		t.Run(family.String(), func(t *testing.T) {
			client, server := connectedPair(t, family)
			require.True(t, client.SendExact([]byte("ab")))
			client.Close()

			buf := make([]byte, 3)
			assert.False(t, server.ReceiveExact(buf))
			assert.Equal(t, "ab", string(buf[:2]))
			assert.ErrorIs(t, server.Err(), Closed)
		})
	}
}

func TestLoopbackDatagram(t *testing.T) {
	for _, family := range loopbackFamilies() {
		t.Run(family.String(), func(t *testing.T) {
			cfg := NewConfig()
			sender := NewSocket(cfg, family, Datagram, DefaultSLogger())
			defer sender.Close()
			receiver := NewSocket(cfg, family, Datagram, DefaultSLogger())
			defer receiver.Close()
			require.True(t, sender.Open(0))
			require.True(t, receiver.Open(0))
			port := receiver.LocalAddress().AddrPort().Port()

			require.Equal(t, 4, sender.SendTo(loopbackAddress(family, port), []byte("ping")))

			poller := NewPoller(cfg)
			states := poller.Wait(StateReadable, sender, receiver)
			assert.Equal(t, []State{StateNone, StateReadable}, states)

			buf := make([]byte, 2)
			count, from := receiver.ReceiveFrom(buf)
			assert.Equal(t, 2, count, "the excess bytes are discarded")
			assert.Equal(t, "pi", string(buf))
			require.NotNil(t, from)
			assert.Equal(t, sender.LocalAddress().AddrPort().Port(), from.AddrPort().Port())

			receiver.SetBlocking(false)
			count, from = receiver.ReceiveFrom(buf)
			assert.Zero(t, count)
			assert.Nil(t, from)
			assert.NoError(t, receiver.Err())
		})
	}
}

func TestLoopbackRegistryStreamEcho(t *testing.T) {
	for _, family := range loopbackFamilies() {
		t.Run(family.String(), func(t *testing.T) {
			reg := NewRegistry(NewConfig(), DefaultSLogger())
			defer reg.Close()

			listener, err := reg.AddListener(0, family)
			require.NoError(t, err)
			require.NotZero(t, listener.Port())
			var serverErrors []SocketError
			listener.OnConnection(func(l Node, sock *Socket, peer Address) {
				node, err := l.Registry().Adopt(sock)
				if err != nil {
					return
				}
				node.OnData(func(n Node, data []byte) {
					n.Socket().SendExact(data)
				})
				node.OnError(func(n Node) {
					serverErrors = append(serverErrors, n.Socket().Status())
				})
			})

			client, err := reg.AddOutbound(loopbackAddress(family, listener.Port()))
			require.NoError(t, err)
			var received []byte
			client.OnConnected(func(n Node) {
				n.Socket().SendExact([]byte("hello"))
			})
			client.OnData(func(n Node, data []byte) {
				received = append(received, data...)
			})

			updateUntil(t, reg, func() bool {
				return string(received) == "hello"
			})
			assert.Equal(t, partitionOf(StreamIPv4, family), client.Partition())
			assert.Len(t, reg.Partition(partitionOf(StreamIPv4, family)), 2)

			client.Close()
			updateUntil(t, reg, func() bool {
				return len(serverErrors) > 0
			})
			assert.Equal(t, []SocketError{Closed}, serverErrors)
			assert.Equal(t, 1, reg.Len())
		})
	}
}

func TestLoopbackRegistryListenersShareThePort(t *testing.T) {
	if !nettest.SupportsIPv6() {
		t.Skip("IPv6 not supported")
	}
	reg := NewRegistry(NewConfig(), DefaultSLogger())
	defer reg.Close()

	listener4, err := reg.AddListener(0, IPv4)
	require.NoError(t, err)
	port := listener4.Port()
	require.NotZero(t, port)
	listener6, err := reg.AddListener(port, IPv6)
	require.NoError(t, err)

	assert.Equal(t, port, listener6.Port())
	assert.Equal(t, []Node{listener4}, reg.Partition(ListeningIPv4))
	assert.Equal(t, []Node{listener6}, reg.Partition(ListeningIPv6))

	// Both datagram partitions also share the port
	datagram4, err := reg.AddDatagram(0, IPv4)
	require.NoError(t, err)
	_, err = reg.AddDatagram(datagram4.Port(), IPv6)
	require.NoError(t, err)
}

func TestLoopbackRegistryConnectRefused(t *testing.T) {
	for _, family := range loopbackFamilies() {
		t.Run(family.String(), func(t *testing.T) {
			// Borrow a port from the system and release it
			borrowed := NewSocket(NewConfig(), family, Stream, DefaultSLogger())
			require.True(t, borrowed.Listen(0))
			port := borrowed.LocalAddress().AddrPort().Port()
			borrowed.Close()

			reg := NewRegistry(NewConfig(), DefaultSLogger())
			defer reg.Close()
			node, err := reg.AddOutbound(loopbackAddress(family, port))
			require.NoError(t, err)
			var reported []SocketError
			node.OnConnected(func(Node) { t.Error("unexpected on-connected") })
			node.OnError(func(n Node) {
				reported = append(reported, n.Socket().Status())
			})

			updateUntil(t, reg, func() bool {
				return len(reported) > 0
			})
			assert.Equal(t, []SocketError{ConnectFailed}, reported)
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestLoopbackRegistryDatagram(t *testing.T) {
	for _, family := range loopbackFamilies() {
		t.Run(family.String(), func(t *testing.T) {
			reg := NewRegistry(NewConfig(), DefaultSLogger())
			defer reg.Close()

			server, err := reg.AddDatagram(0, family)
			require.NoError(t, err)
			server.OnData(func(n Node, data []byte) {
				n.Socket().SendTo(n.Sender(), data)
			})

			client, err := reg.AddDatagram(0, family)
			require.NoError(t, err)
			var (
				got   []string
				ports []uint16
			)
			client.OnData(func(n Node, data []byte) {
				got = append(got, string(data))
				ports = append(ports, n.Sender().AddrPort().Port())
			})

			require.Equal(t, 4, client.Socket().SendTo(loopbackAddress(family, server.Port()), []byte("ping")))
			updateUntil(t, reg, func() bool {
				return len(got) > 0
			})

			assert.Equal(t, []string{"ping"}, got)
			assert.Equal(t, []uint16{server.Port()}, ports)
		})
	}
}
