//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
//

package socol

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// observeConn wraps conn such that reads, writes, deadline changes, and
// close are logged at debug level.
//
// Close is idempotent and returns [net.ErrClosed] after the first call,
// so the wrapper may be closed both by a deferred call and by a context
// watcher running in another goroutine.
func observeConn(conn net.Conn, classifier ErrClassifier, logger SLogger, timeNow func() time.Time) net.Conn {
	return &observedConn{
		classifier: classifier,
		conn:       conn,
		laddr:      safeconn.LocalAddr(conn),
		logger:     logger,
		protocol:   safeconn.Network(conn),
		raddr:      safeconn.RemoteAddr(conn),
		timeNow:    timeNow,
	}
}

type observedConn struct {
	classifier ErrClassifier
	closeonce  sync.Once
	conn       net.Conn
	laddr      string
	logger     SLogger
	protocol   string
	raddr      string
	timeNow    func() time.Time
}

var _ net.Conn = &observedConn{}

func (c *observedConn) logDone(msg string, t0 time.Time, err error, attrs ...any) {
	attrs = append(attrs,
		slog.Any("err", err),
		slog.String("errClass", c.classifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.timeNow()),
	)
	c.logger.Debug(msg, attrs...)
}

func (c *observedConn) Close() error {
	err := net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.timeNow()
		err = c.conn.Close()
		c.logDone("closeDone", t0, err)
	})
	return err
}

func (c *observedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.timeNow()
	count, err := c.conn.Read(buf)
	c.logDone("readDone", t0, err, slog.Int("ioBufferSize", len(buf)), slog.Int("ioBytesCount", count))
	return count, err
}

func (c *observedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *observedConn) SetDeadline(t time.Time) error {
	t0 := c.timeNow()
	err := c.conn.SetDeadline(t)
	c.logDone("setDeadlineDone", t0, err, slog.Time("deadline", t))
	return err
}

func (c *observedConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *observedConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.timeNow()
	count, err := c.conn.Write(data)
	c.logDone("writeDone", t0, err, slog.Int("ioBufferSize", len(data)), slog.Int("ioBytesCount", count))
	return count, err
}
