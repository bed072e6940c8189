package mapping

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

type codec interface {
	Unmarshal(data []byte, v any) error
	Marshal(v any) ([]byte, error)
}

type yamlCodec struct{}

func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }
func (yamlCodec) Marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }

type jsonCodec struct{}

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.MarshalIndent(v, "", "  ") }

func codecForPath(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}, nil
	case ".json":
		return jsonCodec{}, nil
	default:
		return nil, gwerrors.Newf(gwerrors.KindConfigLoad, "unsupported template file extension: %s", path)
	}
}

func remarshal(c codec, raw any, target any) error {
	data, err := c.Marshal(raw)
	if err != nil {
		return fmt.Errorf("remarshal: %w", err)
	}
	return c.Unmarshal(data, target)
}
