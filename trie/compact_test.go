// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		n    Nibbles
	}{
		{"even-extension", Nibbles{1, 2, 3, 4}},
		{"odd-extension", Nibbles{1, 2, 3}},
		{"even-leaf", Nibbles{1, 2, 3, 4, terminator}},
		{"odd-leaf", Nibbles{1, 2, 3, terminator}},
		{"empty-leaf", Nibbles{terminator}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			enc := c.n.CompactEncode()
			dec := CompactDecode(enc)
			require.Equal(t, c.n, dec)
			require.Equal(t, c.n.IsLeaf(), dec.IsLeaf())
		})
	}
}
