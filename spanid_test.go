// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpanID(t *testing.T) {
	spanID := NewSpanID()

	parsed, err := uuid.Parse(spanID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewSpanIDIsUniqueAndOrdered(t *testing.T) {
	const count = 100
	seen := make(map[string]struct{}, count)
	var previous string

	for range count {
		spanID := NewSpanID()
		_, duplicate := seen[spanID]
		require.False(t, duplicate, "duplicate span ID generated: %s", spanID)
		seen[spanID] = struct{}{}

		// UUIDv7 strings sort by generation time
		require.Less(t, previous, spanID)
		previous = spanID
	}
}
