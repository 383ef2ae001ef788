// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSocketOpen(t *testing.T) {
	t.Run("binds the wildcard address with the flow label", func(t *testing.T) {
		var got Address
		ops := newStubOps()
		ops.BindFunc = func(h Handle, addr Address) error {
			got = addr
			return nil
		}
		s := NewUDPSocket6(newStubConfig(ops), DefaultSLogger())

		assert.True(t, s.OpenFlow(5353, 0xbeef))
		assert.Equal(t, IPAddress6{Port: 5353, FlowLabel: 0xbeef}, got)
	})

	t.Run("ipv4", func(t *testing.T) {
		var got Address
		ops := newStubOps()
		ops.BindFunc = func(h Handle, addr Address) error {
			got = addr
			return nil
		}
		s := NewUDPSocket(newStubConfig(ops), DefaultSLogger())

		assert.True(t, s.Open(53))
		assert.Equal(t, IPAddress{Port: 53}, got)
	})

	t.Run("failure", func(t *testing.T) {
		ops := newStubOps()
		ops.BindFunc = func(h Handle, addr Address) error {
			return errors.New("address in use")
		}
		s := NewUDPSocket(newStubConfig(ops), DefaultSLogger())

		assert.False(t, s.Open(53))
		assert.ErrorIs(t, s.Err(), BindFailed)
	})
}

func TestSocketSendTo(t *testing.T) {
	type testcase struct {
		// name is the name of the test case
		name string

		// addr is the destination
		addr Address

		// count is the byte count returned by the platform
		count int

		// err is the error returned by the platform
		err error

		// want is the expected return value
		want int

		// wantStatus is the expected latched status
		wantStatus SocketError
	}

	cases := []testcase{
		{"success", NewIPAddress(127, 0, 0, 1, 53), 4, nil, 4, NoError},
		{"would block", NewIPAddress(127, 0, 0, 1, 53), 0, ErrWouldBlock, 0, NoError},
		{"failure", NewIPAddress(127, 0, 0, 1, 53), 0, errors.New("mocked error"), 0, SendFailed},
		{"family mismatch", IPAddress6{Port: 53}, 0, nil, 0, SendFailed},
		{"nil address", nil, 0, nil, 0, SendFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := newStubOps()
			ops.SendToFunc = func(h Handle, addr Address, data []byte) (int, error) {
				return tc.count, tc.err
			}
			s := NewUDPSocket(newStubConfig(ops), DefaultSLogger())

			assert.Equal(t, tc.want, s.SendTo(tc.addr, []byte("abcd")))
			assert.Equal(t, tc.wantStatus, s.Status())
		})
	}
}

func TestSocketReceiveFrom(t *testing.T) {
	peer := NewIPAddress(192, 168, 1, 1, 9999)

	type testcase struct {
		// name is the name of the test case
		name string

		// count is the byte count returned by the platform
		count int

		// sender is the sender returned by the platform
		sender Address

		// err is the error returned by the platform
		err error

		// wantCount is the expected byte count
		wantCount int

		// wantSender is the expected sender
		wantSender Address

		// wantStatus is the expected latched status
		wantStatus SocketError
	}

	cases := []testcase{
		{"datagram", 3, peer, nil, 3, peer, NoError},
		{"empty datagram", 0, peer, nil, 0, peer, NoError},
		{"would block", 0, nil, ErrWouldBlock, 0, nil, NoError},
		{"failure", 0, nil, errors.New("mocked error"), 0, nil, ReceiveFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := newStubOps()
			ops.RecvFromFunc = func(h Handle, buf []byte) (int, Address, error) {
				return tc.count, tc.sender, tc.err
			}
			s := NewUDPSocket(newStubConfig(ops), DefaultSLogger())

			count, sender := s.ReceiveFrom(make([]byte, 8))

			assert.Equal(t, tc.wantCount, count)
			assert.Equal(t, tc.wantSender, sender)
			assert.Equal(t, tc.wantStatus, s.Status())
		})
	}
}
