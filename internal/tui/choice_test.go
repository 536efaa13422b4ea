package tui

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var teams = []string{
	"O=DLTeam1, L=Singapore, C=SG",
	"O=DLTeam2, L=Singapore, C=SG",
	"O=PLTeam1, L=Singapore, C=SG",
}

func TestRankEmptyQueryKeepsOrder(t *testing.T) {
	require.Equal(t, teams, rank("  ", teams))
}

func TestRankPrefersFuzzyMatches(t *testing.T) {
	got := rank("team2", teams)
	require.Equal(t, []string{"O=DLTeam2, L=Singapore, C=SG"}, got)

	got = rank("dlteam", teams)
	require.Len(t, got, 2)
	require.ElementsMatch(t, teams[:2], got)

	got = rank("dl2", teams)
	require.Equal(t, []string{"O=DLTeam2, L=Singapore, C=SG"}, got)
}

func TestRankFallsBackToEditDistance(t *testing.T) {
	got := rank("DLTeem1", teams)
	require.NotEmpty(t, got)
	require.Equal(t, "O=DLTeam1, L=Singapore, C=SG", got[0])
}

func TestResolveChoice(t *testing.T) {
	matches := rank("dl", teams)
	require.Equal(t, "", resolveChoice(" ", matches, 0, false))
	require.Equal(t, "dl", resolveChoice("dl", matches, 1, false))
	require.Equal(t, teams[1], resolveChoice("dl", matches, 1, true))
	require.Equal(t, teams[0], resolveChoice("O=DLTeam1,L=Singapore,C=SG", matches, 1, false))
}

func TestResolveChoiceKeepsUnknownTextOverFallback(t *testing.T) {
	matches := rank("Acme", teams)
	require.NotEmpty(t, matches, "edit-distance fallback still offers suggestions")
	require.Equal(t, "Acme", resolveChoice("Acme", matches, 0, false))
}
