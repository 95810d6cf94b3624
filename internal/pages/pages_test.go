package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRanges(t *testing.T) {
	got, err := ResolveRanges("1-3,5", 10)
	require.NoError(t, err)
	assert.Equal(t, []Range{{1, 3}, {5, 5}}, got)

	// resolving again yields the identical list
	again, err := ResolveRanges("1-3,5", 10)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestResolveRangesClampsEnd(t *testing.T) {
	got, err := ResolveRanges("5-100", 10)
	require.NoError(t, err)
	assert.Equal(t, []Range{{5, 10}}, got)
}

func TestResolveRangesClampsStart(t *testing.T) {
	got, err := ResolveRanges("0-3", 10)
	require.NoError(t, err)
	assert.Equal(t, []Range{{1, 3}}, got)
}

func TestResolveRangesDropsOutOfRangeSingle(t *testing.T) {
	got, err := ResolveRanges("1,50,3", 10)
	require.NoError(t, err)
	assert.Equal(t, []Range{{1, 1}, {3, 3}}, got)
}

func TestResolveRangesDropsInvertedRange(t *testing.T) {
	got, err := ResolveRanges("20-30,2", 10)
	require.NoError(t, err)
	assert.Equal(t, []Range{{2, 2}}, got)
}

func TestResolveRangesEmptyExpression(t *testing.T) {
	got, err := ResolveRanges("  ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveRangesRejectsMalformedToken(t *testing.T) {
	_, err := ResolveRanges("1-3,abc,5", 10)
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = ResolveRanges("1-x", 10)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestResolveSingles(t *testing.T) {
	got, err := ResolveSingles("1,3,5", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, got)
}

func TestResolveSinglesDropsOutOfRange(t *testing.T) {
	got, err := ResolveSingles("1,50,3", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got)
}

func TestResolveSinglesRejectsRangeTokens(t *testing.T) {
	_, err := ResolveSingles("1-3", 10)
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = ResolveSingles("2,4-6", 10)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestKeepAfterRemoval(t *testing.T) {
	keep, err := KeepAfterRemoval("1-9", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, keep)
}

func TestKeepAfterRemovalRejectsRemoveAll(t *testing.T) {
	_, err := KeepAfterRemoval("1-10", 10)
	assert.ErrorIs(t, err, ErrRemoveAll)

	_, err = KeepAfterRemoval("1-5,6-100", 10)
	assert.ErrorIs(t, err, ErrRemoveAll)
}

func TestPermutation(t *testing.T) {
	got, err := Permutation("3,1,2", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, got)
}

func TestPermutationDropsUnlistedAndDuplicates(t *testing.T) {
	// unlisted pages are omitted, repeats appear once
	got, err := Permutation("2,2,9", 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "3", Range{3, 3}.String())
	assert.Equal(t, "3-5", Range{3, 5}.String())
}
