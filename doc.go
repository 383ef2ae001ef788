// SPDX-License-Identifier: GPL-3.0-or-later

// Package socol provides non-blocking TCP and UDP sockets and a
// callback-driven registry that multiplexes them on a single goroutine.
//
// # Sockets
//
// A [*Socket] wraps a native handle and a latched [SocketError]. Operations
// never return errors: a failure latches an error that [*Socket.Err]
// reports, and from then on every operation is a no-op returning zero or
// false without calling into the platform. A result of zero bytes with no
// latched error means the operation would have blocked.
//
// Stream sockets support [*Socket.Connect], [*Socket.Listen],
// [*Socket.Accept], [*Socket.Send], [*Socket.Receive], and their exact
// variants. Datagram sockets support [*Socket.Open], [*Socket.SendTo], and
// [*Socket.ReceiveFrom]. A [*Poller] checks the readiness of many sockets
// at once.
//
// # Registry
//
// A [*Registry] owns a set of nodes, each pairing a socket with optional
// callbacks and an optional payload. Nodes live in partitions by role
// (listening, connecting, stream, datagram) and address family. Calling
// [*Registry.Update] polls every partition once and invokes the callbacks:
//
//	reg := socol.NewRegistry(socol.NewConfig(), logger)
//	listener, err := reg.AddListener(8080, socol.IPv4)
//	if err != nil {
//		return err
//	}
//	listener.OnConnection(func(l socol.Node, sock *socol.Socket, peer socol.Address) {
//		node, err := l.Registry().Adopt(sock)
//		if err != nil {
//			return
//		}
//		node.OnData(func(n socol.Node, data []byte) {
//			n.Socket().SendExact(data)
//		})
//	})
//	for {
//		reg.Update()
//		time.Sleep(time.Millisecond)
//	}
//
// Errors latched during a pass, including errors latched from callbacks and
// by [Node.Close], are delivered to the on-error callback exactly once, after
// which the registry tears the node down and returns its memory to the
// configured [Allocator]. Nodes added from an on-error callback, for
// example to retry a failed connection, are handled by the next Update.
//
// # Concurrency
//
// Sockets and registries are not safe for concurrent use. Every callback
// runs on the goroutine calling [*Registry.Update]. Only [*Metrics] may be
// read concurrently.
//
// # Observability
//
// Sockets and registries accept an [SLogger] (compatible with [log/slog]).
// Socket and node lifecycle events are emitted at [slog.LevelInfo] while
// per-I/O events and update passes use [slog.LevelDebug]. Completion events
// include t0, t, err, and errClass. Registry events include the node spanID
// generated with [NewSpanID], which correlates all the events of a node.
package socol
