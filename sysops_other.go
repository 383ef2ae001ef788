//go:build !unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package socol

// NewSocketOps returns the [SocketOps] for the current platform.
//
// This platform has no implementation yet: every operation fails with
// [ErrUnsupported] and sockets latch [SubsystemFailure] on creation.
func NewSocketOps() SocketOps {
	return unsupportedSocketOps{}
}

// unsupportedSocketOps is the [SocketOps] of platforms without an implementation.
type unsupportedSocketOps struct{}

var _ SocketOps = unsupportedSocketOps{}

func (unsupportedSocketOps) Socket(Family, Kind) (Handle, error) {
	return InvalidHandle, ErrUnsupported
}

func (unsupportedSocketOps) SetNonblock(Handle, bool) error { return ErrUnsupported }

func (unsupportedSocketOps) SetReuseAddr(Handle) error { return ErrUnsupported }

func (unsupportedSocketOps) Bind(Handle, Address) error { return ErrUnsupported }

func (unsupportedSocketOps) Listen(Handle) error { return ErrUnsupported }

func (unsupportedSocketOps) Accept(Handle) (Handle, Address, error) {
	return InvalidHandle, nil, ErrUnsupported
}

func (unsupportedSocketOps) Connect(Handle, Address) error { return ErrUnsupported }

func (unsupportedSocketOps) ConnectError(Handle) error { return ErrUnsupported }

func (unsupportedSocketOps) LocalAddr(Handle) (Address, error) { return nil, ErrUnsupported }

func (unsupportedSocketOps) Send(Handle, []byte) (int, error) { return 0, ErrUnsupported }

func (unsupportedSocketOps) Recv(Handle, []byte) (int, error) { return 0, ErrUnsupported }

func (unsupportedSocketOps) SendTo(Handle, Address, []byte) (int, error) {
	return 0, ErrUnsupported
}

func (unsupportedSocketOps) RecvFrom(Handle, []byte) (int, Address, error) {
	return 0, nil, ErrUnsupported
}

func (unsupportedSocketOps) Shutdown(Handle, ShutdownHow) error { return ErrUnsupported }

func (unsupportedSocketOps) Close(Handle) error { return ErrUnsupported }

func (unsupportedSocketOps) Poll(handles []Handle, interest State, states []State, block bool) error {
	return ErrUnsupported
}
