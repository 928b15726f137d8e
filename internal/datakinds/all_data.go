package datakinds

import (
	"encoding/json"
	"fmt"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// AllData is the JSON shape of a full data set, as returned by the polling endpoint and as the "data"
// property of a stream "put" event. Unrecognized collections are ignored.
type AllData map[string]map[string]json.RawMessage

func errDecodingItem(kind st.DataKind, key string, err error) error {
	return fmt.Errorf("malformed %s item %q: %w", kind.Name, key, err)
}

// ParseAllData parses a full data set.
func ParseAllData(data []byte) ([]st.Collection, error) {
	var allData AllData
	if err := json.Unmarshal(data, &allData); err != nil {
		return nil, err
	}
	return allData.ToCollections()
}

// ToCollections decodes every item. A kind that is missing from the data set is returned as an empty
// collection, so that a bulk init clears it.
func (a AllData) ToCollections() ([]st.Collection, error) {
	ret := make([]st.Collection, 0, len(AllDataKinds()))
	for _, kind := range AllDataKinds() {
		rawItems := a[kind.PutName]
		items := make([]st.KeyedItemDescriptor, 0, len(rawItems))
		for key, rawItem := range rawItems {
			item, err := kind.Decode(rawItem)
			if err != nil {
				return nil, errDecodingItem(kind, key, err)
			}
			items = append(items, st.KeyedItemDescriptor{Key: key, Item: item})
		}
		ret = append(ret, st.Collection{Kind: kind, Items: items})
	}
	return ret, nil
}
