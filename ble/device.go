package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/blegw/rn"
)

// OperationMode tracks which textual protocol the module currently
// expects. It is only changed by operations known to change the module's
// actual mode; the engine never re-synchronizes it on its own, so callers
// must not issue command-mode operations while in DataMode.
type OperationMode int

const (
	// DataMode passes bytes transparently over the wireless link.
	DataMode OperationMode = iota
	// CommandMode accepts configuration commands.
	CommandMode
)

func (m OperationMode) String() string {
	switch m {
	case DataMode:
		return "data"
	case CommandMode:
		return "command"
	default:
		return fmt.Sprintf("OperationMode(%d)", int(m))
	}
}

const (
	// lineBufferSize is the fixed size of the response scratch buffer.
	lineBufferSize = 128

	// After the escape sequence the module gets promptWaitDefault to
	// produce at least promptMinBytes of prompt.
	promptWaitDefault = 30 * time.Millisecond
	promptMinBytes    = 5
)

// Device drives an RN487x BLE module through its ASCII command protocol
// over a ring-buffered transport.
//
// A Device is not safe for concurrent use: there is exactly one logical
// caller, and every operation owns the transport for its full duration.
// Fallible protocol operations return booleans or sentinel values, never
// errors; a failed exchange is a protocol outcome, not an I/O fault.
type Device struct {
	transport *Transport
	config    Config
	logger    *slog.Logger
	closed    bool

	mode OperationMode

	// line holds the most recently read response line. Every read
	// operation overwrites it; no history is kept.
	line    [lineBufferSize]byte
	lineLen int

	// name caches the serialized device name set via SetSerializedName.
	name string
}

// New dials the module's port through the configured Dialer and starts the
// transport pumps. The module is assumed to be in data mode, its power-on
// state; call SoftInit to force a known state.
func New(ctx context.Context, config Config) (*Device, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	port, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	config.setDefaults()
	d := &Device{
		transport: NewTransport(port),
		config:    config,
		logger:    config.logger,
		mode:      DataMode,
	}
	d.transport.Start()
	return d, nil
}

// Close shuts down the transport and releases the port. After Close the
// device cannot be reused.
func (d *Device) Close() error {
	if d.closed {
		return ErrAlreadyClosed
	}
	d.closed = true
	return d.transport.Close()
}

// Mode returns the tracked operation mode.
func (d *Device) Mode() OperationMode {
	return d.mode
}

// DeviceName returns the serialized name cached by SetSerializedName.
func (d *Device) DeviceName() string {
	return d.name
}

// LastResponse returns the most recently read response line. Its content
// is only as valid as the last operation's result said it was.
func (d *Device) LastResponse() string {
	return string(d.line[:d.lineLen])
}

func (d *Device) clearLine() {
	d.lineLen = 0
}

// SendCommand flushes both buffers and writes command followed by a CR.
// No LF is sent; the module's replies are LF-terminated.
func (d *Device) SendCommand(command string) {
	d.transport.FlushTx()
	d.transport.FlushRx()
	d.transport.WriteString(command)
	d.transport.WriteByte(rn.CR)
	d.logger.Debug("sent command", "command", command)
}

// SendData writes raw bytes for transparent passthrough in data mode,
// retrying per byte while the TX ring is full.
func (d *Device) SendData(p []byte) {
	for _, b := range p {
		for !d.transport.WriteByte(b) {
			time.Sleep(pollInterval)
		}
	}
}

// Expect collects one LF-terminated line into the scratch buffer and
// reports whether it contains expected. The terminating LF is not stored.
// A deadline with no complete line fails regardless of buffered content,
// which distinguishes a timeout from a terminated line that didn't match.
func (d *Device) Expect(expected string, timeout time.Duration) bool {
	d.transport.FlushRx()
	d.clearLine()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b, ok := d.transport.ReadByte()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		if b == rn.LF {
			line := string(d.line[:d.lineLen])
			if strings.Contains(line, expected) {
				return true
			}
			d.logger.Debug("unexpected response", "want", expected, "got", line)
			return false
		}
		if d.lineLen < len(d.line) {
			d.line[d.lineLen] = b
			d.lineLen++
		}
	}
	d.logger.Debug("response timeout", "want", expected)
	return false
}

// command sends cmd and checks for the generic acknowledgment token.
func (d *Device) command(cmd string, timeout time.Duration) bool {
	d.SendCommand(cmd)
	ok := d.Expect(rn.AOK, timeout)
	if !ok {
		d.logger.Warn("command not acknowledged", "command", cmd)
	}
	return ok
}

// EnterCommandMode sends the escape sequence and looks for the command
// prompt. The mode is only updated on a recognized prompt; a failed
// attempt leaves it unchanged.
func (d *Device) EnterCommandMode() bool {
	time.Sleep(d.config.guardDelay)
	d.clearLine()
	d.transport.FlushTx()
	d.transport.FlushRx()
	d.transport.WriteString(rn.EnterCommand)

	wait := time.Now().Add(d.config.promptWait)
	for time.Now().Before(wait) && d.transport.Available() < promptMinBytes {
		time.Sleep(pollInterval)
	}

	d.lineLen = d.transport.ReadBytes(d.line[:], time.Now())
	resp := string(d.line[:d.lineLen])
	if strings.Contains(resp, rn.Prompt) || strings.Contains(resp, rn.PromptCR) {
		d.mode = CommandMode
		return true
	}
	d.logger.Warn("command mode prompt not seen", "got", resp)
	return false
}

// EnterDataMode sends the exit command and unconditionally records data
// mode. The exit command has no acknowledgment to verify.
func (d *Device) EnterDataMode() {
	d.SendCommand(rn.ExitCommand)
	d.mode = DataMode
}

// Reboot restarts the module. On a confirmed reboot it additionally sleeps
// through the restart window before returning true.
func (d *Device) Reboot() bool {
	d.SendCommand(rn.Reboot)
	if d.Expect(rn.Rebooting, d.config.rebootTimeout) {
		time.Sleep(d.config.rebootTimeout)
		return true
	}
	return false
}

// SoftInit brings the module into a known state: a direct reboot, or
// failing that, a reboot from command mode. Either success path leaves the
// module in data mode. If both fail, nothing useful can proceed and the
// caller must treat the device as unusable.
func (d *Device) SoftInit() bool {
	if d.Reboot() {
		d.mode = DataMode
		return true
	}
	if d.EnterCommandMode() && d.Reboot() {
		d.mode = DataMode
		return true
	}
	return false
}

// ClearAllServices removes every GATT service defined on the module.
func (d *Device) ClearAllServices() bool {
	return d.command(rn.ClearAllServices, d.config.commandTimeout)
}

// StopAdvertising stops the module from advertising.
func (d *Device) StopAdvertising() bool {
	return d.command(rn.StopAdvertising, d.config.commandTimeout)
}

// ClearPermanentAdvertising clears stored permanent advertising data.
func (d *Device) ClearPermanentAdvertising() bool {
	return d.command(rn.ClearPermanentAdvertising, d.config.commandTimeout)
}

// ClearPermanentBeacon clears stored permanent beacon data.
func (d *Device) ClearPermanentBeacon() bool {
	return d.command(rn.ClearPermanentBeacon, d.config.commandTimeout)
}

// ClearImmediateAdvertising clears immediate advertising data.
func (d *Device) ClearImmediateAdvertising() bool {
	return d.command(rn.ClearImmediateAdvertising, d.config.commandTimeout)
}

// ClearImmediateBeacon clears immediate beacon data.
func (d *Device) ClearImmediateBeacon() bool {
	return d.command(rn.ClearImmediateBeacon, d.config.commandTimeout)
}

// SetSerializedName sets the module's serialized name, truncated to the
// documented maximum, and caches it for DeviceName.
func (d *Device) SetSerializedName(name string) bool {
	if len(name) > rn.MaxSerializedNameLen {
		name = name[:rn.MaxSerializedNameLen]
	}
	d.name = name
	return d.command(rn.SetSerializedName+name, d.config.commandTimeout)
}

// SetSupportedFeatures configures the feature bitmap.
func (d *Device) SetSupportedFeatures(bitmap uint16) bool {
	return d.command(rn.SetSupportedFeatures+rn.Hex4(bitmap), d.config.commandTimeout)
}

// SetDefaultServices configures the default services bitmap.
func (d *Device) SetDefaultServices(bitmap uint8) bool {
	return d.command(rn.SetDefaultServices+rn.Hex2(bitmap), d.config.commandTimeout)
}

// SetAdvPower sets the advertising power level, clamped to the documented
// maximum. The level is encoded as a bare decimal digit.
func (d *Device) SetAdvPower(level uint8) bool {
	if level > rn.MaxAdvPower {
		level = rn.MaxAdvPower
	}
	return d.command(rn.SetAdvPower+strconv.Itoa(int(level)), d.config.commandTimeout)
}

// SetServiceUUID defines a service. The UUID must have one of the two
// accepted lengths; anything else fails immediately without sending.
func (d *Device) SetServiceUUID(uuid string) bool {
	if !rn.ValidUUID(uuid) {
		d.logger.Warn("invalid service UUID length", "uuid", uuid)
		return false
	}
	return d.command(rn.DefineServiceUUID+uuid, d.config.commandTimeout)
}

// SetCharacteristicUUID defines a characteristic under the current
// service. The payload length is clamped to the documented range and the
// UUID must have one of the two accepted lengths. Characteristic
// definitions use the shorter define timeout.
func (d *Device) SetCharacteristicUUID(uuid string, property uint8, octetLen uint8) bool {
	if octetLen < rn.MinCharacteristicLen {
		octetLen = rn.MinCharacteristicLen
	} else if octetLen > rn.MaxCharacteristicLen {
		octetLen = rn.MaxCharacteristicLen
	}
	if !rn.ValidUUID(uuid) {
		d.logger.Warn("invalid characteristic UUID length", "uuid", uuid)
		return false
	}
	cmd := rn.DefineCharacteristicUUID + uuid + "," + rn.Hex2(property) + "," + rn.Hex2(octetLen)
	return d.command(cmd, d.config.defineTimeout)
}

// StartPermanentAdvertising configures and starts permanent advertising
// with the given AD type and payload.
func (d *Device) StartPermanentAdvertising(adType uint8, adData string) bool {
	return d.command(rn.StartPermanentAdvertising+rn.Hex2(adType)+","+adData, d.config.commandTimeout)
}

// StartCustomAdvertising starts advertising at the given interval.
func (d *Device) StartCustomAdvertising(interval uint16) bool {
	return d.command(rn.StartCustomAdvertising+rn.Hex4(interval), d.config.commandTimeout)
}

// StartAdvertising starts the default advertising mode.
func (d *Device) StartAdvertising() bool {
	return d.command(rn.StartAdvertising, d.config.commandTimeout)
}

// StartScanning starts a default scan.
func (d *Device) StartScanning() bool {
	d.SendCommand(rn.StartScan)
	return d.Expect(rn.Scanning, d.config.commandTimeout)
}

// ConnectionStatus queries whether a peer is connected: 1 connected, 0 not
// connected, -1 when the module produced no usable line before the
// deadline. The reply to this query is CR-terminated, unlike most others.
func (d *Device) ConnectionStatus() int {
	d.SendCommand(rn.ConnectionStatus)
	deadline := time.Now().Add(d.config.commandTimeout)
	for time.Now().Before(deadline) {
		if d.transport.Available() > 0 && d.readUntilCR() > 0 {
			if strings.Contains(d.LastResponse(), rn.NoConnection) {
				return 0
			}
			return 1
		}
		time.Sleep(pollInterval)
	}
	return -1
}

// WriteLocalCharacteristic writes an ASCII value to the characteristic
// identified by handle.
func (d *Device) WriteLocalCharacteristic(handle uint16, value string) bool {
	return d.command(rn.WriteLocalCharacteristic+rn.Hex4(handle)+","+value, d.config.commandTimeout)
}

// ReadLocalCharacteristic requests the value of the characteristic
// identified by handle. Success means a line arrived, nothing more; the
// line is left in the scratch buffer for the caller to interpret.
func (d *Device) ReadLocalCharacteristic(handle uint16) bool {
	d.SendCommand(rn.ReadLocalCharacteristic + rn.Hex4(handle))
	return d.awaitLine()
}

// FirmwareVersion queries the module's firmware banner into the scratch
// buffer.
func (d *Device) FirmwareVersion() bool {
	d.SendCommand(rn.FirmwareVersion)
	return d.awaitLine()
}

// awaitLine succeeds as soon as any CR-terminated line arrives before the
// default deadline.
func (d *Device) awaitLine() bool {
	deadline := time.Now().Add(d.config.commandTimeout)
	for time.Now().Before(deadline) {
		if d.transport.Available() > 0 && d.readUntilCR() > 0 {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}

// readUntilCR fills the scratch buffer up to the next CR. The CR itself is
// consumed but not stored. Bounded by the line timeout.
func (d *Device) readUntilCR() int {
	d.clearLine()
	deadline := time.Now().Add(d.config.lineTimeout)
	for d.lineLen < len(d.line)-1 {
		if !time.Now().Before(deadline) {
			break
		}
		b, ok := d.transport.ReadByte()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		if b == rn.CR {
			break
		}
		d.line[d.lineLen] = b
		d.lineLen++
	}
	return d.lineLen
}
