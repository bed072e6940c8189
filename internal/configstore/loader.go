package configstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

type systemFile struct {
	System SystemConfig `yaml:"system" json:"system"`
}

type csmsFile struct {
	Csms CsmsConfig `yaml:"csms" json:"csms"`
}

// rawDevice captures the connection block generically before the
// protocol discriminant tells us which concrete struct to remarshal into.
type rawDevice struct {
	ID         string   `yaml:"id" json:"id"`
	Template   string   `yaml:"template" json:"template"`
	Protocol   Protocol `yaml:"protocol" json:"protocol"`
	OCPPID     string   `yaml:"ocpp_id" json:"ocpp_id"`
	Connection any      `yaml:"connection" json:"connection"`
}

type deviceFile struct {
	Device  *rawDevice  `yaml:"device" json:"device"`
	Devices []rawDevice `yaml:"devices" json:"devices"`
}

// LoadSystemConfig reads system.{yaml,yml,json} from root.
func LoadSystemConfig(root string) (SystemConfig, error) {
	path, err := findOne(root, "system")
	if err != nil {
		return SystemConfig{}, err
	}
	c, err := codecForPath(path)
	if err != nil {
		return SystemConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SystemConfig{}, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to read system config").WithFile(path)
	}
	var f systemFile
	if err := c.Unmarshal(data, &f); err != nil {
		return SystemConfig{}, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to parse system config").WithFile(path)
	}
	return f.System, nil
}

// SaveSystemConfig writes SystemConfig back to path, inferring format from
// extension (spec §8 round-trip law).
func SaveSystemConfig(path string, sys SystemConfig) error {
	c, err := codecForPath(path)
	if err != nil {
		return err
	}
	data, err := c.Marshal(systemFile{System: sys})
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to serialize system config").WithFile(path)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCsmsConfig reads csms.{yaml,yml,json} from root.
func LoadCsmsConfig(root string) (CsmsConfig, error) {
	path, err := findOne(root, "csms")
	if err != nil {
		return CsmsConfig{}, err
	}
	c, err := codecForPath(path)
	if err != nil {
		return CsmsConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CsmsConfig{}, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to read csms config").WithFile(path)
	}
	var f csmsFile
	if err := c.Unmarshal(data, &f); err != nil {
		return CsmsConfig{}, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to parse csms config").WithFile(path)
	}
	f.Csms.ApplyDefaults()
	return f.Csms, nil
}

// SaveCsmsConfig writes CsmsConfig back to path.
func SaveCsmsConfig(path string, csms CsmsConfig) error {
	c, err := codecForPath(path)
	if err != nil {
		return err
	}
	data, err := c.Marshal(csmsFile{Csms: csms})
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to serialize csms config").WithFile(path)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDevices reads every file under <root>/devices/*.{yaml,yml,json}.
func LoadDevices(root string) (DeviceMap, error) {
	dir := filepath.Join(root, "devices")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return DeviceMap{}, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to list devices directory").WithFile(dir)
	}

	devices := make(DeviceMap)
	for _, e := range entries {
		if e.IsDir() || !isConfigExt(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		found, err := loadDeviceFile(path)
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if _, dup := devices[d.ID]; dup {
				return nil, gwerrors.Newf(gwerrors.KindConfigValidation, "duplicate device id %q", d.ID).WithFile(path).WithField("id")
			}
			devices[d.ID] = d
		}
	}
	return devices, nil
}

func loadDeviceFile(path string) ([]DeviceConfig, error) {
	c, err := codecForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to read device file").WithFile(path)
	}
	var f deviceFile
	if err := c.Unmarshal(data, &f); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to parse device file").WithFile(path)
	}

	var raws []rawDevice
	if f.Device != nil {
		raws = append(raws, *f.Device)
	}
	raws = append(raws, f.Devices...)

	devices := make([]DeviceConfig, 0, len(raws))
	for _, r := range raws {
		d, err := resolveDeviceConnection(c, r)
		if err != nil {
			return nil, err.(*gwerrors.Error).WithFile(path)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// resolveDeviceConnection remarshals the generically-decoded connection
// block into the concrete struct selected by Protocol.
func resolveDeviceConnection(c codec, r rawDevice) (DeviceConfig, error) {
	d := DeviceConfig{ID: r.ID, Template: r.Template, Protocol: r.Protocol, OCPPID: r.OCPPID}
	if r.Connection == nil {
		return d, gwerrors.Newf(gwerrors.KindConfigValidation, "device %q: missing connection block", r.ID).WithField("connection")
	}
	switch r.Protocol {
	case ProtocolModbusTCP:
		var conn ModbusTCPConnection
		if err := remarshal(c, r.Connection, &conn); err != nil {
			return d, gwerrors.Newf(gwerrors.KindConfigLoad, "device %q: invalid modbus_tcp connection: %v", r.ID, err).WithField("connection")
		}
		d.ModbusTCP = &conn
	case ProtocolModbusRTU:
		var conn ModbusRTUConnection
		if err := remarshal(c, r.Connection, &conn); err != nil {
			return d, gwerrors.Newf(gwerrors.KindConfigLoad, "device %q: invalid modbus_rtu connection: %v", r.ID, err).WithField("connection")
		}
		d.ModbusRTU = &conn
	case ProtocolEchonetLite:
		var conn EchonetLiteConnection
		if err := remarshal(c, r.Connection, &conn); err != nil {
			return d, gwerrors.Newf(gwerrors.KindConfigLoad, "device %q: invalid echonet_lite connection: %v", r.ID, err).WithField("connection")
		}
		d.EchonetLite = &conn
	default:
		return d, gwerrors.Newf(gwerrors.KindConfigValidation, "device %q: unknown protocol %q", r.ID, r.Protocol).WithField("protocol")
	}
	return d, nil
}

// SaveDevice writes a single device's file (spec §4.2 upsert_device
// "persist to the corresponding file"). An existing single-device file under
// <root>/devices that defines d.ID is overwritten in its own format,
// whatever its basename; otherwise <root>/devices/<id><ext> is written, in
// the format ext selects. Devices listed in a multi-device file are not
// matched, so such a device gets a new <id><ext> file.
func SaveDevice(root string, d DeviceConfig, ext string) error {
	dir := filepath.Join(root, "devices")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to create devices directory").WithFile(dir)
	}
	path := filepath.Join(dir, d.ID+ext)
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if e.IsDir() || !isConfigExt(e.Name()) {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if found, err := loadDeviceFile(p); err == nil && len(found) == 1 && found[0].ID == d.ID {
				path = p
				break
			}
		}
	}
	c, err := codecForPath(path)
	if err != nil {
		return err
	}

	raw := rawDevice{ID: d.ID, Template: d.Template, Protocol: d.Protocol, OCPPID: d.OCPPID}
	switch d.Protocol {
	case ProtocolModbusTCP:
		raw.Connection = d.ModbusTCP
	case ProtocolModbusRTU:
		raw.Connection = d.ModbusRTU
	case ProtocolEchonetLite:
		raw.Connection = d.EchonetLite
	}

	data, err := c.Marshal(deviceFile{Device: &raw})
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to serialize device").WithFile(path)
	}
	return os.WriteFile(path, data, 0o644)
}

// RemoveDeviceFile deletes the on-disk file that defines device id, by
// scanning <root>/devices for a single-device file whose id matches (file
// basename need not equal device id per spec §6).
func RemoveDeviceFile(root, id string) error {
	dir := filepath.Join(root, "devices")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to list devices directory").WithFile(dir)
	}
	for _, e := range entries {
		if e.IsDir() || !isConfigExt(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		found, err := loadDeviceFile(path)
		if err != nil {
			continue
		}
		if len(found) == 1 && found[0].ID == id {
			return os.Remove(path)
		}
	}
	return nil
}

func isConfigExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}

// findOne locates the single base.{yaml,yml,json} file under root.
func findOne(root, base string) (string, error) {
	candidates := []string{base + ".yaml", base + ".yml", base + ".json"}
	var found []string
	for _, c := range candidates {
		p := filepath.Join(root, c)
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	sort.Strings(found)
	if len(found) == 0 {
		return "", gwerrors.Newf(gwerrors.KindConfigLoad, "no %s.{yaml,yml,json} found under %s", base, root).WithFile(root)
	}
	if len(found) > 1 {
		return "", gwerrors.Newf(gwerrors.KindConfigLoad, "ambiguous config: multiple %s files found: %s", base, strings.Join(found, ", ")).WithFile(root)
	}
	return found[0], nil
}
