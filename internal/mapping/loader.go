package mapping

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

// rawVariable captures a variable's protocol-specific mapping generically
// before Protocol tells us which concrete struct to remarshal into — the
// same generic-decode-then-remarshal trick configstore uses for
// DeviceConfig's connection block.
type rawVariable struct {
	OCPPName string           `yaml:"ocpp_name" json:"ocpp_name"`
	Protocol VariableProtocol `yaml:"protocol" json:"protocol"`
	ReadOnly bool             `yaml:"read_only" json:"read_only"`
	Mapping  any              `yaml:"mapping" json:"mapping"`
}

type rawTemplate struct {
	ID          string        `yaml:"id" json:"id"`
	Parent      string        `yaml:"parent" json:"parent"`
	Description string        `yaml:"description" json:"description"`
	Variables   []rawVariable `yaml:"variables" json:"variables"`
}

// templateFile mirrors configstore's systemFile/csmsFile/deviceFile wrapper
// handling: a template file's fields live under a top-level `template` key
// (spec §6 "each file carries `template: {id, description, parent?,
// variables: [...]}`"), not at the document root.
type templateFile struct {
	Template rawTemplate `yaml:"template" json:"template"`
}

// loadDirectory reads every *.{yaml,yml,json} file in dir into one
// unflattened MappingTemplate each, failing the whole load on the first
// parse error or duplicate id (spec §4.3 "on any parse or invariant
// failure, the catalog is left unchanged" — the caller is responsible for
// not installing a partial result).
func loadDirectory(dir string) (map[string]MappingTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]MappingTemplate{}, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to list templates directory").WithFile(dir)
	}

	templates := make(map[string]MappingTemplate)
	for _, e := range entries {
		if e.IsDir() || !isTemplateExt(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := loadTemplateFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := templates[t.ID]; dup {
			return nil, gwerrors.Newf(gwerrors.KindConfigValidation, "duplicate template id %q", t.ID).WithFile(path).WithField("id")
		}
		templates[t.ID] = t
	}
	return templates, nil
}

func loadTemplateFile(path string) (MappingTemplate, error) {
	c, err := codecForPath(path)
	if err != nil {
		return MappingTemplate{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return MappingTemplate{}, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to read template file").WithFile(path)
	}
	var f templateFile
	if err := c.Unmarshal(data, &f); err != nil {
		return MappingTemplate{}, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to parse template file").WithFile(path)
	}
	raw := f.Template
	if raw.ID == "" {
		return MappingTemplate{}, gwerrors.New(gwerrors.KindConfigValidation, "template missing id").WithFile(path)
	}

	t := MappingTemplate{ID: raw.ID, Parent: raw.Parent, Description: raw.Description}
	for _, rv := range raw.Variables {
		v, err := resolveVariable(c, rv)
		if err != nil {
			return MappingTemplate{}, err.(*gwerrors.Error).WithFile(path)
		}
		t.Variables = append(t.Variables, v)
	}
	return t, nil
}

func resolveVariable(c codec, r rawVariable) (OcppVariable, error) {
	v := OcppVariable{OCPPName: r.OCPPName, Protocol: r.Protocol, ReadOnly: r.ReadOnly}
	if v.OCPPName == "" {
		return v, gwerrors.New(gwerrors.KindConfigValidation, "variable missing ocpp_name").WithField("ocpp_name")
	}
	if r.Mapping == nil {
		return v, gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: missing mapping block", r.OCPPName).WithField("mapping")
	}
	switch r.Protocol {
	case VariableProtocolModbus:
		var m ModbusVariableMapping
		if err := remarshal(c, r.Mapping, &m); err != nil {
			return v, gwerrors.Newf(gwerrors.KindConfigLoad, "variable %q: invalid modbus mapping: %v", r.OCPPName, err).WithField("mapping")
		}
		v.Modbus = &m
	case VariableProtocolEchonetLite:
		var m EchonetLiteVariableMapping
		if err := remarshal(c, r.Mapping, &m); err != nil {
			return v, gwerrors.Newf(gwerrors.KindConfigLoad, "variable %q: invalid echonet_lite mapping: %v", r.OCPPName, err).WithField("mapping")
		}
		v.EchonetLite = &m
	default:
		return v, gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: unknown protocol %q", r.OCPPName, r.Protocol).WithField("protocol")
	}
	return v, nil
}

func isTemplateExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}
