// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSLogger(t *testing.T) {
	logger := DefaultSLogger()

	// Should discard without panicking
	assert.NotNil(t, logger)
	logger.Debug("receiveDone", "ioBytesCount", 4)
	logger.Info("nodeAdd", "partition", "stream_ipv4")
}

func TestSLoggerIsSatisfiedBySlogLogger(t *testing.T) {
	logger, records := newCapturingLogger()

	var slogger SLogger = logger
	slogger.Info("nodeAdd", slog.String("spanID", "x"))
	slogger.Debug("updateStart")

	assert.Equal(t, []string{"nodeAdd", "updateStart"}, recordMessages(*records))
}
