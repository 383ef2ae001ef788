// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the messages of the captured records in order.
func recordMessages(records []slog.Record) []string {
	var messages []string
	for _, record := range records {
		messages = append(messages, record.Message)
	}
	return messages
}

// countingAllocator is an [Allocator] that tracks outstanding buffers.
//
// Setting fail makes Allocate return nil.
type countingAllocator struct {
	allocs      int
	deallocs    int
	fail        bool
	outstanding map[*byte]int
}

func newCountingAllocator() *countingAllocator {
	return &countingAllocator{outstanding: map[*byte]int{}}
}

func (a *countingAllocator) Allocate(size int) []byte {
	if a.fail {
		return nil
	}
	a.allocs++
	buf := make([]byte, size, size+1) // never zero capacity so SliceData is unique
	a.outstanding[unsafe.SliceData(buf)]++
	return buf
}

func (a *countingAllocator) Deallocate(buf []byte) {
	a.deallocs++
	key := unsafe.SliceData(buf)
	a.outstanding[key]--
	if a.outstanding[key] == 0 {
		delete(a.outstanding, key)
	}
}

// funcSocketOps is a [SocketOps] whose methods call the corresponding
// func field. Calling a method whose func is nil panics, which lets tests
// assert that no platform call happens.
type funcSocketOps struct {
	SocketFunc       func(family Family, kind Kind) (Handle, error)
	SetNonblockFunc  func(h Handle, nonblocking bool) error
	SetReuseAddrFunc func(h Handle) error
	BindFunc         func(h Handle, addr Address) error
	ListenFunc       func(h Handle) error
	AcceptFunc       func(h Handle) (Handle, Address, error)
	ConnectFunc      func(h Handle, addr Address) error
	ConnectErrorFunc func(h Handle) error
	LocalAddrFunc    func(h Handle) (Address, error)
	SendFunc         func(h Handle, data []byte) (int, error)
	RecvFunc         func(h Handle, buf []byte) (int, error)
	SendToFunc       func(h Handle, addr Address, data []byte) (int, error)
	RecvFromFunc     func(h Handle, buf []byte) (int, Address, error)
	ShutdownFunc     func(h Handle, how ShutdownHow) error
	CloseFunc        func(h Handle) error
	PollFunc         func(handles []Handle, interest State, states []State, block bool) error
}

var _ SocketOps = &funcSocketOps{}

func (o *funcSocketOps) Socket(family Family, kind Kind) (Handle, error) {
	return o.SocketFunc(family, kind)
}

func (o *funcSocketOps) SetNonblock(h Handle, nonblocking bool) error {
	return o.SetNonblockFunc(h, nonblocking)
}

func (o *funcSocketOps) SetReuseAddr(h Handle) error {
	return o.SetReuseAddrFunc(h)
}

func (o *funcSocketOps) Bind(h Handle, addr Address) error {
	return o.BindFunc(h, addr)
}

func (o *funcSocketOps) Listen(h Handle) error {
	return o.ListenFunc(h)
}

func (o *funcSocketOps) Accept(h Handle) (Handle, Address, error) {
	return o.AcceptFunc(h)
}

func (o *funcSocketOps) Connect(h Handle, addr Address) error {
	return o.ConnectFunc(h, addr)
}

func (o *funcSocketOps) ConnectError(h Handle) error {
	return o.ConnectErrorFunc(h)
}

func (o *funcSocketOps) LocalAddr(h Handle) (Address, error) {
	return o.LocalAddrFunc(h)
}

func (o *funcSocketOps) Send(h Handle, data []byte) (int, error) {
	return o.SendFunc(h, data)
}

func (o *funcSocketOps) Recv(h Handle, buf []byte) (int, error) {
	return o.RecvFunc(h, buf)
}

func (o *funcSocketOps) SendTo(h Handle, addr Address, data []byte) (int, error) {
	return o.SendToFunc(h, addr, data)
}

func (o *funcSocketOps) RecvFrom(h Handle, buf []byte) (int, Address, error) {
	return o.RecvFromFunc(h, buf)
}

func (o *funcSocketOps) Shutdown(h Handle, how ShutdownHow) error {
	return o.ShutdownFunc(h, how)
}

func (o *funcSocketOps) Close(h Handle) error {
	return o.CloseFunc(h)
}

func (o *funcSocketOps) Poll(handles []Handle, interest State, states []State, block bool) error {
	return o.PollFunc(handles, interest, states, block)
}

// newStubOps returns a [*funcSocketOps] where creating sockets, toggling
// blocking mode, and closing succeed, handing out increasing handles.
func newStubOps() *funcSocketOps {
	next := Handle(100)
	return &funcSocketOps{
		SocketFunc: func(family Family, kind Kind) (Handle, error) {
			next++
			return next, nil
		},
		SetNonblockFunc: func(h Handle, nonblocking bool) error {
			return nil
		},
		CloseFunc: func(h Handle) error {
			return nil
		},
	}
}

// newStubConfig returns a [*Config] using ops.
func newStubConfig(ops SocketOps) *Config {
	cfg := NewConfig()
	cfg.Ops = ops
	return cfg
}

// funcResolver adapts a function to the [Resolver] interface.
type funcResolver func(ctx context.Context, family Family, domain, port string) (Address, error)

var _ Resolver = funcResolver(nil)

func (f funcResolver) Resolve(ctx context.Context, family Family, domain, port string) (Address, error) {
	return f(ctx, family, domain, port)
}

// newErroredSocket returns a socket with a latched error whose ops panic
// on any call.
func newErroredSocket(kind Kind, code SocketError) *Socket {
	cfg := newStubConfig(&funcSocketOps{})
	cfg.Resolver = funcResolver(func(ctx context.Context, family Family, domain, port string) (Address, error) {
		panic("unexpected call to Resolve")
	})
	s := newSocket(cfg, IPv4, kind, DefaultSLogger(), 3)
	s.latch(code, nil)
	return s
}
