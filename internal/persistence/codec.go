package persistence

import (
	"bytes"

	"github.com/stephenfire/go-rtl"

	"github.com/joachimaross/zeekyflow/internal/types"
)

// Opaque payloads (configs, trigger data, result trails) are stored as rtl
// blobs; columns only carry what the store needs to query on.

func encodeConfig(config map[string]string) ([]byte, error) {
	if config == nil {
		config = map[string]string{}
	}
	buf := new(bytes.Buffer)
	if err := rtl.Encode(config, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeConfig(data []byte) (map[string]string, error) {
	config := map[string]string{}
	if len(data) == 0 {
		return config, nil
	}
	if err := rtl.Decode(bytes.NewBuffer(data), &config); err != nil {
		return nil, err
	}
	return config, nil
}

func encodeActions(actions []types.ActionSpec) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := rtl.Encode(actions, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeActions(data []byte) ([]types.ActionSpec, error) {
	actions := []types.ActionSpec{}
	if len(data) == 0 {
		return actions, nil
	}
	if err := rtl.Decode(bytes.NewBuffer(data), &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func encodeResults(results []types.ActionResult) ([]byte, error) {
	if results == nil {
		results = []types.ActionResult{}
	}
	buf := new(bytes.Buffer)
	if err := rtl.Encode(results, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResults(data []byte) ([]types.ActionResult, error) {
	results := []types.ActionResult{}
	if len(data) == 0 {
		return results, nil
	}
	if err := rtl.Decode(bytes.NewBuffer(data), &results); err != nil {
		return nil, err
	}
	return results, nil
}
