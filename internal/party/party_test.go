package party

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSplitsOnCommaThenEquals(t *testing.T) {
	n := Parse("O=PLTeam1, L=Singapore, C=SG")
	require.Equal(t, "PLTeam1", n.Organisation())
	require.Equal(t, "Singapore", n.Attrs["L"])
	require.Equal(t, "SG", n.Attrs["C"])
	require.True(t, n.IsPlatformLead())
	require.False(t, n.IsSponsor())
	require.Equal(t, "platform lead", n.Role())
}

func TestParseIgnoresMalformedPairs(t *testing.T) {
	n := Parse("garbage, O=Sponsor,,=x")
	require.Equal(t, map[string]string{"O": "Sponsor"}, n.Attrs)
	require.True(t, n.IsSponsor())
}

func TestRoles(t *testing.T) {
	require.True(t, Parse("O=DLTeam2, L=Singapore, C=SG").IsDeliveryTeam())
	require.True(t, Parse("O=COO, L=Singapore, C=SG").IsCOO())
	require.True(t, Parse("O=CIO, L=Singapore, C=SG").IsCIO())
	require.Equal(t, "observer", Parse("O=Bank, L=Paris, C=FR").Role())
	require.Equal(t, "observer", Parse("").Role())
}

func TestSameIgnoresOrderAndSpacing(t *testing.T) {
	require.True(t, Same("O=PLTeam1, L=Singapore, C=SG", "C=SG,O=PLTeam1,L=Singapore"))
	require.False(t, Same("O=PLTeam1, L=Singapore, C=SG", "O=PLTeam2, L=Singapore, C=SG"))
	require.True(t, Same("plain", " plain "))
}
