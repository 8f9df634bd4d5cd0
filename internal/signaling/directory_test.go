package signaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_PublicListing_SortedByCodeAndExcludesFull(t *testing.T) {
	d := NewDirectory()

	full := NewLobby("ZZZZZZ", LobbyOptions{Game: "chess", Kind: LobbyPublic, MaxPeers: 1, IsMesh: true}, time.Now())
	full.AddHost(&Peer{ID: 1})
	d.Insert(full)

	a := NewLobby("BBBBBB", LobbyOptions{Game: "chess", Kind: LobbyPublic, MaxPeers: 4, IsMesh: true}, time.Now())
	a.AddHost(&Peer{ID: 2})
	d.Insert(a)

	b := NewLobby("AAAAAA", LobbyOptions{Game: "chess", Kind: LobbyPublic, MaxPeers: 4, IsMesh: true}, time.Now())
	b.AddHost(&Peer{ID: 3})
	d.Insert(b)

	private := NewLobby("CCCCCC", LobbyOptions{Game: "chess", Kind: LobbyPrivate, MaxPeers: 4, IsMesh: true}, time.Now())
	private.AddHost(&Peer{ID: 4})
	d.Insert(private)

	listing := d.PublicListing("chess")
	require.Len(t, listing, 2)
	assert.Equal(t, "AAAAAA", listing[0].Code)
	assert.Equal(t, "BBBBBB", listing[1].Code)
}

func TestDirectory_MatchingQueueLobbies_RequiresExactTuple(t *testing.T) {
	d := NewDirectory()
	tagA := "ranked"
	tagB := "casual"

	l1 := NewLobby("AAAAAA", LobbyOptions{Game: "chess", Kind: LobbyQueue, MaxPeers: 2, IsMesh: true, Tags: &tagA}, time.Now())
	l1.AddHost(&Peer{ID: 1})
	d.Insert(l1)

	l2 := NewLobby("BBBBBB", LobbyOptions{Game: "chess", Kind: LobbyQueue, MaxPeers: 2, IsMesh: true, Tags: &tagB}, time.Now())
	l2.AddHost(&Peer{ID: 2})
	d.Insert(l2)

	matches := d.MatchingQueueLobbies("chess", 2, &tagA)
	require.Len(t, matches, 1)
	assert.Equal(t, "AAAAAA", matches[0].Code)
}

func TestDirectory_Remove_CancelsTimersAndDrops(t *testing.T) {
	d := NewDirectory()
	l := NewLobby("AAAAAA", LobbyOptions{Game: "chess", Kind: LobbyPrivate, MaxPeers: 4, IsMesh: true}, time.Now())
	l.AddHost(&Peer{ID: 1})
	l.reapTimer = time.AfterFunc(time.Hour, func() {})
	d.Insert(l)

	d.Remove("AAAAAA")

	_, ok := d.Get("AAAAAA")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), l.reapEpoch)
}

func TestDirectory_ActiveByCode_ExcludesInactive(t *testing.T) {
	d := NewDirectory()
	l := NewLobby("AAAAAA", LobbyOptions{Game: "chess", Kind: LobbyPrivate, MaxPeers: 4, IsMesh: true}, time.Now())
	l.AddHost(&Peer{ID: 1})
	l.IsActive = false
	d.Insert(l)

	_, ok := d.ActiveByCode("AAAAAA")
	assert.False(t, ok)
}
