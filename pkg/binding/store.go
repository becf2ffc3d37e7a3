package binding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedVersion is returned when loading a store file written by a
// newer format.
var ErrUnsupportedVersion = errors.New("binding: unsupported store version")

const storeVersion = 1

// Store persists the binding table.
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// FileStore keeps the binding table in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

type storeFile struct {
	Version  int           `yaml:"version"`
	Bindings []storeRecord `yaml:"bindings"`
}

type storeRecord struct {
	Kind          string `yaml:"kind"`
	Fabric        uint8  `yaml:"fabric"`
	LocalEndpoint uint16 `yaml:"local_endpoint"`
	Cluster       uint32 `yaml:"cluster"`
	Node          uint64 `yaml:"node,omitempty"`
	Endpoint      uint16 `yaml:"endpoint,omitempty"`
	Group         uint16 `yaml:"group,omitempty"`
}

// ParseKind maps "unicast" or "group" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "unicast":
		return KindUnicast, nil
	case "group", "multicast":
		return KindMulticast, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func toRecord(e Entry) storeRecord {
	return storeRecord{
		Kind:          e.Kind.String(),
		Fabric:        uint8(e.FabricIndex),
		LocalEndpoint: uint16(e.LocalEndpoint),
		Cluster:       uint32(e.Cluster),
		Node:          uint64(e.NodeID),
		Endpoint:      uint16(e.RemoteEndpoint),
		Group:         uint16(e.GroupID),
	}
}

func (r storeRecord) entry() (Entry, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Kind:           kind,
		FabricIndex:    fabric.FabricIndex(r.Fabric),
		LocalEndpoint:  datamodel.EndpointID(r.LocalEndpoint),
		Cluster:        datamodel.ClusterID(r.Cluster),
		NodeID:         fabric.NodeID(r.Node),
		RemoteEndpoint: datamodel.EndpointID(r.Endpoint),
		GroupID:        fabric.GroupID(r.Group),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e.normalized(), nil
}

// Load reads the stored entries. A missing file yields no entries.
func (s *FileStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("binding: read store: %w", err)
	}

	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("binding: parse store %s: %w", s.path, err)
	}
	if f.Version > storeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	entries := make([]Entry, 0, len(f.Bindings))
	for i, r := range f.Bindings {
		e, err := r.entry()
		if err != nil {
			return nil, fmt.Errorf("binding: store entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Save replaces the stored entries. The file is written to a temporary
// name and renamed into place.
func (s *FileStore) Save(entries []Entry) error {
	f := storeFile{Version: storeVersion, Bindings: make([]storeRecord, 0, len(entries))}
	for _, e := range entries {
		f.Bindings = append(f.Bindings, toRecord(e))
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("binding: encode store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("binding: create store dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("binding: write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("binding: write store: %w", err)
	}
	return nil
}

// Restore adds entries to t in order and returns how many were added.
// Entries that no longer fit or already exist are skipped.
func Restore(t *Table, entries []Entry) (int, error) {
	var errs []error
	n := 0
	for _, e := range entries {
		if _, err := t.Add(e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
