package main

import (
	"fmt"
	"log/slog"
	"sync"

	"i4.energy/across/blegw/ble"
)

// Characteristic describes one GATT characteristic to define on the module.
type Characteristic struct {
	// Name identifies the characteristic in the HTTP and MQTT APIs.
	Name string
	// UUID is the 128-bit UUID in the module's 32-hex-digit form.
	UUID string
	// Property is the module's property bitmap for the characteristic.
	Property uint8
	// MaxLen is the maximum payload length in octets.
	MaxLen uint8
}

// Profile is the GATT profile the gateway provisions on the module.
type Profile struct {
	DeviceName      string
	ServiceUUID     string
	Characteristics []Characteristic
	AdvInterval     uint16
	AdvPower        uint8
}

// Gateway exposes a provisioned BLE module to the HTTP and MQTT surfaces.
// The module's protocol engine handles one exchange at a time, so every
// device operation runs under the gateway mutex.
type Gateway struct {
	Logger *slog.Logger
	Device *ble.Device

	mu      sync.Mutex
	handles map[string]uint16
}

// Provision brings the module into a known state and installs the profile:
// name, service, characteristics, then a reboot so the module assigns
// handles, which are discovered and cached for the serving surfaces.
// Advertising starts last. The module is left in command mode.
func (g *Gateway) Provision(p Profile) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.Device.SoftInit() {
		return fmt.Errorf("module not responding to reboot")
	}
	if !g.Device.EnterCommandMode() {
		return fmt.Errorf("module did not enter command mode")
	}
	if !g.Device.StopAdvertising() {
		return fmt.Errorf("stop advertising not acknowledged")
	}
	if !g.Device.ClearAllServices() {
		return fmt.Errorf("clear services not acknowledged")
	}
	if !g.Device.SetSerializedName(p.DeviceName) {
		return fmt.Errorf("set device name %q not acknowledged", p.DeviceName)
	}
	if !g.Device.SetServiceUUID(p.ServiceUUID) {
		return fmt.Errorf("define service %s not acknowledged", p.ServiceUUID)
	}
	for _, c := range p.Characteristics {
		if !g.Device.SetCharacteristicUUID(c.UUID, c.Property, c.MaxLen) {
			return fmt.Errorf("define characteristic %s not acknowledged", c.Name)
		}
	}

	// Handles are assigned on reboot.
	if !g.Device.Reboot() {
		return fmt.Errorf("reboot after provisioning not confirmed")
	}
	if !g.Device.EnterCommandMode() {
		return fmt.Errorf("module did not re-enter command mode")
	}

	g.handles = make(map[string]uint16, len(p.Characteristics))
	for _, c := range p.Characteristics {
		handle := g.Device.FindHandle(c.UUID, c.Property)
		if handle == 0 {
			return fmt.Errorf("no handle found for characteristic %s", c.Name)
		}
		g.handles[c.Name] = handle
		g.Logger.Info("characteristic provisioned", "name", c.Name, "handle", fmt.Sprintf("%04X", handle))
	}

	if !g.Device.SetAdvPower(p.AdvPower) {
		g.Logger.Warn("advertising power not acknowledged", "power", p.AdvPower)
	}
	if !g.Device.StartCustomAdvertising(p.AdvInterval) {
		return fmt.Errorf("start advertising not acknowledged")
	}
	return nil
}

// Status reports the module's connection state: 1 connected, 0 not
// connected, -1 unresponsive.
func (g *Gateway) Status() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Device.ConnectionStatus()
}

func (g *Gateway) handle(name string) (uint16, error) {
	h, ok := g.handles[name]
	if !ok {
		return 0, fmt.Errorf("unknown characteristic %q", name)
	}
	return h, nil
}

// ReadCharacteristic reads the named characteristic's value from the
// module's GATT table.
func (g *Gateway) ReadCharacteristic(name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.handle(name)
	if err != nil {
		return "", err
	}
	if !g.Device.ReadLocalCharacteristic(h) {
		return "", fmt.Errorf("characteristic %q: no reply from module", name)
	}
	return g.Device.LastResponse(), nil
}

// WriteCharacteristic writes an ASCII-hex value to the named
// characteristic in the module's GATT table.
func (g *Gateway) WriteCharacteristic(name, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.handle(name)
	if err != nil {
		return err
	}
	if !g.Device.WriteLocalCharacteristic(h, value) {
		return fmt.Errorf("characteristic %q: write not acknowledged", name)
	}
	return nil
}
