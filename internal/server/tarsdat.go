package server

import (
	"os"
	"path/filepath"

	"github.com/zhenshangxin/tars-go/pkg/tarsconf"
)

// StateFile is the persisted `${datapath}/${server}.tarsdat` key-value
// state (spec §6), reusing the config parser's own flat key=value grammar
// per SPEC_FULL's supplemented-feature note grounded on
// original_source/cpp/util/src/tc_config.cpp.
type StateFile struct {
	path   string
	order  []string
	Values map[string]string
}

// stateFileKeyOrder is the stable key order spec §6 lists: logLevel,
// closeCout, then anything else set at runtime (locator metadata).
var stateFileKeyOrder = []string{"logLevel", "closeCout", "locator"}

// LoadStateFile reads the existing .tarsdat file, if any, returning an
// empty StateFile when absent (first run).
func LoadStateFile(dataPath, server string) (*StateFile, error) {
	path := filepath.Join(dataPath, server+".tarsdat")
	sf := &StateFile{path: path, order: append([]string(nil), stateFileKeyOrder...), Values: make(map[string]string)}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sf, nil
		}
		return nil, wrapf("tarsdat: read %s: %w", path, err)
	}
	values, err := tarsconf.ParseFlat(string(b))
	if err != nil {
		return nil, wrapf("tarsdat: parse %s: %w", path, err)
	}
	sf.Values = values
	return sf, nil
}

// Set updates a key and persists the file, appending unseen keys to the
// stable order so the file stays diff-friendly across restarts.
func (sf *StateFile) Set(key, value string) error {
	if _, known := sf.Values[key]; !known {
		if !containsStr(sf.order, key) {
			sf.order = append(sf.order, key)
		}
	}
	sf.Values[key] = value
	return sf.save()
}

func (sf *StateFile) save() error {
	text := tarsconf.DumpFlat(sf.order, sf.Values)
	return os.WriteFile(sf.path, []byte(text), 0o644)
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
