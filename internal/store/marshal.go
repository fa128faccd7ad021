package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/waveguide/internal/jit"
)

// layout is the JSON form of everything in a jit.Artifact except the code.
type layout struct {
	Patches     []int      `json:"patches"`
	StorageSize int        `json:"storage_size"`
	Inputs      []jit.Slot `json:"inputs"`
	Outputs     []jit.Slot `json:"outputs"`
}

// marshalLayout converts the artifact layout to JSON TEXT for storage.
func marshalLayout(a jit.Artifact) (string, error) {
	data, err := json.Marshal(layout{
		Patches:     a.Patches,
		StorageSize: a.StorageSize,
		Inputs:      a.Inputs,
		Outputs:     a.Outputs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal layout: %w", err)
	}
	return string(data), nil
}

// unmarshalLayout rebuilds an artifact from stored code and layout JSON.
func unmarshalLayout(code []byte, text string) (jit.Artifact, error) {
	var l layout
	if err := json.Unmarshal([]byte(text), &l); err != nil {
		return jit.Artifact{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	return jit.Artifact{
		Code:        code,
		Patches:     l.Patches,
		StorageSize: l.StorageSize,
		Inputs:      l.Inputs,
		Outputs:     l.Outputs,
	}, nil
}

// marshalValues converts named values to JSON TEXT. Keys are sorted by
// encoding/json and HTML escaping is disabled so the text is stable.
func marshalValues(values map[string]string) (string, error) {
	if values == nil {
		values = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func unmarshalValues(text string) (map[string]string, error) {
	values := map[string]string{}
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return values, nil
}
