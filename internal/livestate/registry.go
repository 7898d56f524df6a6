package livestate

import (
	"sort"
	"sync"
	"sync/atomic"

	"intifacectl/internal/protocol"
)

// DeviceRecord describes a peripheral attached to the engine.
type DeviceRecord struct {
	Index       uint32 `json:"index" yaml:"index"`
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Address     string `json:"address" yaml:"address"`
}

// Label is the name to show for the device, preferring the user-assigned one.
func (d DeviceRecord) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

type deviceTable map[uint32]DeviceRecord

// Registry holds the engine's live state: the connected client and the
// device table. Readers never take a lock; each field is an immutable value
// swapped atomically, and device writers are serialized among themselves.
type Registry struct {
	client atomic.Pointer[string]

	mu      sync.Mutex
	devices atomic.Pointer[deviceTable]
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := deviceTable{}
	r.devices.Store(&empty)
	return r
}

// CurrentClientName returns the connected client, if any.
func (r *Registry) CurrentClientName() (string, bool) {
	name := r.client.Load()
	if name == nil {
		return "", false
	}
	return *name, true
}

// SetClient records the connected client, replacing any previous one.
func (r *Registry) SetClient(name string) {
	r.client.Store(&name)
}

// ClearClient forgets the connected client.
func (r *Registry) ClearClient() {
	r.client.Store(nil)
}

// AddDevice inserts or replaces the device at d.Index.
func (r *Registry) AddDevice(d DeviceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.devices.Load()
	next := make(deviceTable, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[d.Index] = d
	r.devices.Store(&next)
}

// RemoveDevice deletes the device at index and returns the removed record.
func (r *Registry) RemoveDevice(index uint32) (DeviceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.devices.Load()
	d, ok := cur[index]
	if !ok {
		return DeviceRecord{}, false
	}
	next := make(deviceTable, len(cur))
	for k, v := range cur {
		if k != index {
			next[k] = v
		}
	}
	r.devices.Store(&next)
	return d, true
}

// Device looks up a single device.
func (r *Registry) Device(index uint32) (DeviceRecord, bool) {
	d, ok := (*r.devices.Load())[index]
	return d, ok
}

// ConnectedDevices returns a point-in-time copy of the device table ordered
// by index.
func (r *Registry) ConnectedDevices() []DeviceRecord {
	table := *r.devices.Load()
	out := make([]DeviceRecord, 0, len(table))
	for _, d := range table {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Clear resets both the client and the device table.
func (r *Registry) Clear() {
	r.client.Store(nil)

	r.mu.Lock()
	empty := deviceTable{}
	r.devices.Store(&empty)
	r.mu.Unlock()
}

// Apply updates the registry from an engine message. It reports whether the
// message affected live state.
func (r *Registry) Apply(msg protocol.EngineMessage) bool {
	switch m := msg.(type) {
	case protocol.ClientConnected:
		r.SetClient(m.Name)
	case protocol.ClientDisconnected:
		r.ClearClient()
	case protocol.DeviceConnected:
		r.AddDevice(DeviceRecord{
			Index:       m.Index,
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Address:     m.Address,
		})
	case protocol.DeviceDisconnected:
		r.RemoveDevice(m.Index)
	default:
		return false
	}
	return true
}
