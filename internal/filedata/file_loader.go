package filedata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldbuilders"
	"gopkg.in/yaml.v3"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// fileContents is the schema of a data file. "flagValues" is a shorthand for flags that always return
// one value.
type fileContents struct {
	Flags      map[string]json.RawMessage `json:"flags"`
	FlagValues map[string]json.RawMessage `json:"flagValues"`
	Segments   map[string]json.RawMessage `json:"segments"`
}

// loadFiles reads and merges all of the files. A key may only be defined once across all files.
func loadFiles(paths []string) ([]st.Collection, error) {
	flags := make(map[string]json.RawMessage)
	segments := make(map[string]json.RawMessage)

	for _, path := range paths {
		contents, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for key, data := range contents.Flags {
			if _, exists := flags[key]; exists {
				return nil, errDuplicateKey("flag", key, path)
			}
			flags[key] = data
		}
		for key, value := range contents.FlagValues {
			if _, exists := flags[key]; exists {
				return nil, errDuplicateKey("flag", key, path)
			}
			flags[key] = makeFlagWithValue(key, ldvalue.Parse(value))
		}
		for key, data := range contents.Segments {
			if _, exists := segments[key]; exists {
				return nil, errDuplicateKey("segment", key, path)
			}
			segments[key] = data
		}
	}

	allData := datakinds.AllData{
		datakinds.Features.PutName: flags,
		datakinds.Segments.PutName: segments,
	}
	return allData.ToCollections()
}

func readFile(path string) (fileContents, error) {
	var contents fileContents
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return contents, errCannotReadFile(path, err)
	}
	if isYAML(path) {
		if data, err = yamlToJSON(data); err != nil {
			return contents, errCannotParseFile(path, err)
		}
	}
	if err := json.Unmarshal(data, &contents); err != nil {
		return contents, errCannotParseFile(path, err)
	}
	return contents, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func yamlToJSON(data []byte) ([]byte, error) {
	var parsed interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return json.Marshal(parsed)
}

func makeFlagWithValue(key string, value ldvalue.Value) json.RawMessage {
	flag := ldbuilders.NewFlagBuilder(key).
		Version(1).
		On(true).
		Variations(value).
		OffVariation(0).
		FallthroughVariation(0).
		Build()
	return datakinds.Features.Encode(key, st.ItemDescriptor{Version: flag.Version, Item: &flag})
}
