package sharedtest

import (
	"sort"
	"testing"

	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DurableStoreTestSuite runs the same set of behavioral tests against any DurableStore implementation.
//
// MakeStore creates a store that uses the given key prefix; ClearData removes everything stored under a
// prefix, so that each test starts from an empty database. If PrefixesAreIgnored is true, the tests of
// prefix isolation are skipped.
type DurableStoreTestSuite struct {
	MakeStore          func(prefix string) st.DurableStore
	ClearData          func(prefix string) error
	PrefixesAreIgnored bool
}

const (
	durableStoreTestPrefix      = "testprefix"
	durableStoreOtherTestPrefix = "otherprefix"
)

// Run runs all of the tests.
func (s DurableStoreTestSuite) Run(t *testing.T) {
	t.Run("not initialized before init", s.runNotInitializedBeforeInit)
	t.Run("init", s.runInit)
	t.Run("init replaces previous data", s.runInitReplacesData)
	t.Run("get unknown key", s.runGetUnknownKey)
	t.Run("upsert", s.runUpsert)
	t.Run("delete", s.runDelete)
	t.Run("store is available", s.runIsAvailable)
	t.Run("prefixes are independent", s.runPrefixIsolation)
}

func (s DurableStoreTestSuite) withStore(t *testing.T, prefix string, action func(st.DurableStore)) {
	require.NoError(t, s.ClearData(prefix))
	store := s.MakeStore(prefix)
	defer store.Close() //nolint:errcheck
	action(store)
}

func (s DurableStoreTestSuite) runNotInitializedBeforeInit(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		assert.False(t, store.IsInitialized())
	})
}

func (s DurableStoreTestSuite) runInit(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		require.NoError(t, store.Init(st.SerializeAll(MakeAllData(
			[]ldmodel.FeatureFlag{Flag1, Flag2}, []ldmodel.Segment{Segment1}))))
		assert.True(t, store.IsInitialized())

		assertStoredVersion(t, store, datakinds.Features, Flag1.Key, Flag1.Version)
		assertStoredVersion(t, store, datakinds.Segments, Segment1.Key, Segment1.Version)

		flags, err := store.GetAll(datakinds.Features)
		require.NoError(t, err)
		assert.Equal(t, []string{Flag1.Key, Flag2.Key}, keysOf(flags))
	})
}

func (s DurableStoreTestSuite) runInitReplacesData(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		require.NoError(t, store.Init(st.SerializeAll(MakeAllData([]ldmodel.FeatureFlag{Flag1, Flag2}, nil))))
		flag3 := MakeFlag("flag3", 5)
		require.NoError(t, store.Init(st.SerializeAll(MakeAllData([]ldmodel.FeatureFlag{flag3}, nil))))

		flags, err := store.GetAll(datakinds.Features)
		require.NoError(t, err)
		assert.Equal(t, []string{flag3.Key}, keysOf(flags))

		item, err := store.Get(datakinds.Features, Flag1.Key)
		require.NoError(t, err)
		assert.Equal(t, -1, item.Version)
	})
}

func (s DurableStoreTestSuite) runGetUnknownKey(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		require.NoError(t, store.Init(st.SerializeAll(MakeAllData(nil, nil))))
		item, err := store.Get(datakinds.Features, "no-such-key")
		require.NoError(t, err)
		assert.Equal(t, -1, item.Version)
		assert.Nil(t, item.SerializedItem)
	})
}

func (s DurableStoreTestSuite) runUpsert(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		require.NoError(t, store.Init(st.SerializeAll(MakeAllData([]ldmodel.FeatureFlag{MakeFlag("flag", 10)}, nil))))

		updated, err := store.Upsert(datakinds.Features, "flag", SerializedFlag(MakeFlag("flag", 11)))
		require.NoError(t, err)
		assert.True(t, updated)
		assertStoredVersion(t, store, datakinds.Features, "flag", 11)

		updated, err = store.Upsert(datakinds.Features, "flag", SerializedFlag(MakeFlag("flag", 11)))
		require.NoError(t, err)
		assert.False(t, updated, "same version should not overwrite")

		updated, err = store.Upsert(datakinds.Features, "flag", SerializedFlag(MakeFlag("flag", 9)))
		require.NoError(t, err)
		assert.False(t, updated, "lower version should not overwrite")
		assertStoredVersion(t, store, datakinds.Features, "flag", 11)

		updated, err = store.Upsert(datakinds.Features, "new-flag", SerializedFlag(MakeFlag("new-flag", 1)))
		require.NoError(t, err)
		assert.True(t, updated)
		assertStoredVersion(t, store, datakinds.Features, "new-flag", 1)
	})
}

func (s DurableStoreTestSuite) runDelete(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		require.NoError(t, store.Init(st.SerializeAll(MakeAllData([]ldmodel.FeatureFlag{MakeFlag("flag", 10)}, nil))))

		tombstone := st.Serialize(datakinds.Features, "flag", DeletedItem(11))
		updated, err := store.Upsert(datakinds.Features, "flag", tombstone)
		require.NoError(t, err)
		assert.True(t, updated)

		item, err := store.Get(datakinds.Features, "flag")
		require.NoError(t, err)
		decoded, err := st.Deserialize(datakinds.Features, item)
		require.NoError(t, err)
		assert.Equal(t, DeletedItem(11), decoded)

		updated, err = store.Upsert(datakinds.Features, "flag", SerializedFlag(MakeFlag("flag", 10)))
		require.NoError(t, err)
		assert.False(t, updated, "tombstone should block older versions")
	})
}

func (s DurableStoreTestSuite) runIsAvailable(t *testing.T) {
	s.withStore(t, durableStoreTestPrefix, func(store st.DurableStore) {
		assert.True(t, store.IsStoreAvailable())
	})
}

func (s DurableStoreTestSuite) runPrefixIsolation(t *testing.T) {
	if s.PrefixesAreIgnored {
		t.Skip("store does not support prefixes")
	}
	require.NoError(t, s.ClearData(durableStoreOtherTestPrefix))
	s.withStore(t, durableStoreTestPrefix, func(store1 st.DurableStore) {
		store2 := s.MakeStore(durableStoreOtherTestPrefix)
		defer store2.Close() //nolint:errcheck

		require.NoError(t, store1.Init(st.SerializeAll(MakeAllData([]ldmodel.FeatureFlag{MakeFlag("flag", 1)}, nil))))
		assert.False(t, store2.IsInitialized())

		require.NoError(t, store2.Init(st.SerializeAll(MakeAllData([]ldmodel.FeatureFlag{MakeFlag("flag", 2)}, nil))))
		assertStoredVersion(t, store1, datakinds.Features, "flag", 1)
		assertStoredVersion(t, store2, datakinds.Features, "flag", 2)
	})
}

func assertStoredVersion(t *testing.T, store st.DurableStore, kind st.DataKind, key string, version int) {
	item, err := store.Get(kind, key)
	require.NoError(t, err)
	decoded, err := st.Deserialize(kind, item)
	require.NoError(t, err)
	assert.Equal(t, version, decoded.Version)
	assert.NotNil(t, decoded.Item)
}

func keysOf(items []st.KeyedSerializedItemDescriptor) []string {
	ret := make([]string, 0, len(items))
	for _, item := range items {
		ret = append(ret, item.Key)
	}
	sort.Strings(ret)
	return ret
}
