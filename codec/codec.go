package codec

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/wippyai/fsplugin/errors"
	"github.com/wippyai/fsplugin/filesystem"
)

// fileInfoWire is the boundary form of FileInfo. ModTime travels as an
// RFC3339 string; a zero time renders the "0001-01-01T00:00:00Z"
// placeholder, and unparseable timestamps decode to the zero time rather
// than failing the record.
type fileInfoWire struct {
	Name    string               `json:"Name"`
	Size    int64                `json:"Size"`
	Mode    uint32               `json:"Mode"`
	ModTime string               `json:"ModTime"`
	IsDir   bool                 `json:"IsDir"`
	Meta    *filesystem.MetaData `json:"Meta,omitempty"`
}

func toWire(fi filesystem.FileInfo) fileInfoWire {
	return fileInfoWire{
		Name:    fi.Name,
		Size:    fi.Size,
		Mode:    fi.Mode,
		ModTime: fi.ModTime.UTC().Format(time.RFC3339),
		IsDir:   fi.IsDir,
		Meta:    fi.Meta,
	}
}

func fromWire(w fileInfoWire) filesystem.FileInfo {
	fi := filesystem.FileInfo{
		Name:  w.Name,
		Size:  w.Size,
		Mode:  w.Mode,
		IsDir: w.IsDir,
		Meta:  w.Meta,
	}
	if t, err := time.Parse(time.RFC3339, w.ModTime); err == nil {
		fi.ModTime = t
	}
	return fi
}

// EncodeFileInfo encodes one FileInfo to its wire form.
func EncodeFileInfo(fi filesystem.FileInfo) ([]byte, error) {
	return marshal(toWire(fi))
}

// DecodeFileInfo decodes one FileInfo from its wire form.
func DecodeFileInfo(data []byte) (filesystem.FileInfo, error) {
	var w fileInfoWire
	if err := unmarshal(data, &w); err != nil {
		return filesystem.FileInfo{}, err
	}
	return fromWire(w), nil
}

// EncodeFileInfos encodes a directory listing. A nil slice encodes as an
// empty array, never null.
func EncodeFileInfos(infos []filesystem.FileInfo) ([]byte, error) {
	wire := make([]fileInfoWire, len(infos))
	for i, fi := range infos {
		wire[i] = toWire(fi)
	}
	return marshal(wire)
}

// DecodeFileInfos decodes a directory listing.
func DecodeFileInfos(data []byte) ([]filesystem.FileInfo, error) {
	var wire []fileInfoWire
	if err := unmarshal(data, &wire); err != nil {
		return nil, err
	}
	infos := make([]filesystem.FileInfo, len(wire))
	for i, w := range wire {
		infos[i] = fromWire(w)
	}
	return infos, nil
}

// EncodeConfigParams encodes parameter descriptors. A nil slice encodes
// as an empty array.
func EncodeConfigParams(params []filesystem.ConfigParam) ([]byte, error) {
	if params == nil {
		params = []filesystem.ConfigParam{}
	}
	return marshal(params)
}

// DecodeConfigParams decodes parameter descriptors.
func DecodeConfigParams(data []byte) ([]filesystem.ConfigParam, error) {
	var params []filesystem.ConfigParam
	if err := unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// DecodeConfig decodes a plugin configuration. Absent configuration
// (empty input) decodes to an empty map; malformed text is an
// invalid-input error, never a silent default.
func DecodeConfig(data []byte) (filesystem.Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return filesystem.Config{}, nil
	}
	var cfg filesystem.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.InvalidInput("invalid config JSON: %v", err)
	}
	if cfg == nil {
		cfg = filesystem.Config{}
	}
	return cfg, nil
}

// EncodeConfig encodes a configuration map.
func EncodeConfig(cfg filesystem.Config) ([]byte, error) {
	if cfg == nil {
		cfg = filesystem.Config{}
	}
	return marshal(cfg)
}

// handleInfoWire is the boundary form of a handle's identity.
type handleInfoWire struct {
	Path  string `json:"path"`
	Flags uint32 `json:"flags"`
}

// EncodeHandleInfo encodes the path and flags of an open handle.
func EncodeHandleInfo(path string, flags filesystem.OpenFlag) ([]byte, error) {
	return marshal(handleInfoWire{Path: path, Flags: uint32(flags)})
}

// DecodeHandleInfo decodes a handle identity.
func DecodeHandleInfo(data []byte) (string, filesystem.OpenFlag, error) {
	var w handleInfoWire
	if err := unmarshal(data, &w); err != nil {
		return "", 0, err
	}
	return w.Path, filesystem.OpenFlag(w.Flags), nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Other("JSON serialization failed: %v", err)
	}
	return data, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.InvalidInput("invalid JSON: %v", err)
	}
	return nil
}
