package ble_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"i4.energy/across/blegw/ble"
	"i4.energy/across/blegw/rn"
)

// respDelay spaces scripted responses past the flushes a command exchange
// performs before listening.
const respDelay = 20 * time.Millisecond

func newTestDevice(t *testing.T, port *ble.FakePort) *ble.Device {
	t.Helper()
	config, err := ble.NewConfigBuilder().
		WithDialer(ble.DialerFunc(func(ctx context.Context) (ble.Port, error) {
			return port, nil
		})).
		WithCommandTimeout(300 * time.Millisecond).
		WithDefineTimeout(200 * time.Millisecond).
		WithRebootTimeout(80 * time.Millisecond).
		WithLineTimeout(200 * time.Millisecond).
		WithGuardDelay(time.Millisecond).
		WithPromptWait(250 * time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error building config: %v", err)
	}
	device, err := ble.New(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error creating device: %v", err)
	}
	t.Cleanup(func() { device.Close() })
	return device
}

func TestNew(t *testing.T) {
	t.Run("dialer is required", func(t *testing.T) {
		_, err := ble.NewConfigBuilder().Build()
		if !errors.Is(err, ble.ErrNoDialer) {
			t.Errorf("Build() error = %v, want ErrNoDialer", err)
		}
	})

	t.Run("dial failure propagates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		dialErr := errors.New("no such device")
		dialer := ble.NewMockDialer(ctrl)
		dialer.EXPECT().Dial(gomock.Any()).Return(nil, dialErr)

		config, err := ble.NewConfigBuilder().WithDialer(dialer).Build()
		if err != nil {
			t.Fatalf("unexpected error building config: %v", err)
		}
		if _, err := ble.New(context.Background(), config); !errors.Is(err, dialErr) {
			t.Errorf("New() error = %v, want %v", err, dialErr)
		}
	})

	t.Run("close releases the port once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		unblock := make(chan struct{})
		port := ble.NewMockPort(ctrl)
		port.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-unblock
			return 0, io.EOF
		}).AnyTimes()
		port.EXPECT().Close().DoAndReturn(func() error {
			close(unblock)
			return nil
		})
		dialer := ble.NewMockDialer(ctrl)
		dialer.EXPECT().Dial(gomock.Any()).Return(port, nil)

		config, err := ble.NewConfigBuilder().WithDialer(dialer).Build()
		if err != nil {
			t.Fatalf("unexpected error building config: %v", err)
		}
		device, err := ble.New(context.Background(), config)
		if err != nil {
			t.Fatalf("unexpected error creating device: %v", err)
		}
		if err := device.Close(); err != nil {
			t.Errorf("unexpected error from Close(): %v", err)
		}
		if err := device.Close(); !errors.Is(err, ble.ErrAlreadyClosed) {
			t.Errorf("second Close() = %v, want ErrAlreadyClosed", err)
		}
	})
}

func TestAcknowledgedCommands(t *testing.T) {
	t.Run("acknowledged", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond("PZ", "AOK\r\n", respDelay)

		if !device.ClearAllServices() {
			t.Error("ClearAllServices() = false, want true")
		}
		if !strings.Contains(port.Written(), "PZ\r") {
			t.Errorf("port saw %q, want a CR-terminated PZ command", port.Written())
		}
	})

	t.Run("error reply", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond("Y", "Err\r\n", respDelay)

		if device.StopAdvertising() {
			t.Error("StopAdvertising() = true on an Err reply")
		}
	})

	t.Run("no reply", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		start := time.Now()
		if device.ClearPermanentAdvertising() {
			t.Error("ClearPermanentAdvertising() = true with a silent module")
		}
		if time.Since(start) < 300*time.Millisecond {
			t.Error("command gave up before its deadline")
		}
	})
}

func TestEnterCommandMode(t *testing.T) {
	t.Run("prompt recognized", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.EnterCommand, rn.Prompt, respDelay)

		if !device.EnterCommandMode() {
			t.Fatal("EnterCommandMode() = false, want true")
		}
		if device.Mode() != ble.CommandMode {
			t.Errorf("Mode() = %v, want CommandMode", device.Mode())
		}
	})

	t.Run("CR-terminated prompt recognized", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.EnterCommand, rn.PromptCR, respDelay)

		if !device.EnterCommandMode() {
			t.Error("EnterCommandMode() = false on the CR prompt form")
		}
	})

	t.Run("silence leaves mode unchanged", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if device.EnterCommandMode() {
			t.Error("EnterCommandMode() = true with a silent module")
		}
		if device.Mode() != ble.DataMode {
			t.Errorf("Mode() = %v after failed attempt, want DataMode", device.Mode())
		}
	})

	t.Run("garbage leaves mode unchanged", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.EnterCommand, "ERROR", respDelay)

		if device.EnterCommandMode() {
			t.Error("EnterCommandMode() = true on an unrecognized reply")
		}
		if device.Mode() != ble.DataMode {
			t.Errorf("Mode() = %v after failed attempt, want DataMode", device.Mode())
		}
	})
}

func TestEnterDataMode(t *testing.T) {
	port := ble.NewFakePort()
	device := newTestDevice(t, port)
	port.Respond(rn.EnterCommand, rn.Prompt, respDelay)
	if !device.EnterCommandMode() {
		t.Fatal("EnterCommandMode() = false, want true")
	}

	device.EnterDataMode()
	if device.Mode() != ble.DataMode {
		t.Errorf("Mode() = %v, want DataMode", device.Mode())
	}
	if !strings.Contains(port.Written(), rn.ExitCommand+"\r") {
		t.Errorf("port saw %q, want the exit command", port.Written())
	}
}

func TestReboot(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.Reboot, "Rebooting\r\n", respDelay)

		start := time.Now()
		if !device.Reboot() {
			t.Fatal("Reboot() = false, want true")
		}
		// The restart window is slept through after the confirmation.
		if time.Since(start) < 80*time.Millisecond {
			t.Error("Reboot() returned before the restart window elapsed")
		}
	})

	t.Run("unconfirmed", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if device.Reboot() {
			t.Error("Reboot() = true with a silent module")
		}
	})
}

func TestSoftInit(t *testing.T) {
	t.Run("direct reboot", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.Reboot, "Rebooting\r\n", respDelay)

		if !device.SoftInit() {
			t.Fatal("SoftInit() = false, want true")
		}
		if device.Mode() != ble.DataMode {
			t.Errorf("Mode() = %v, want DataMode", device.Mode())
		}
	})

	t.Run("reboot via command mode", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		// First reboot attempt goes unanswered, the escape sequence gets
		// the prompt, and the reboot repeated from command mode succeeds.
		port.Respond(rn.Reboot, "", 0)
		port.Respond(rn.EnterCommand, rn.Prompt, respDelay)
		port.Respond(rn.Reboot, "Rebooting\r\n", respDelay)

		if !device.SoftInit() {
			t.Fatal("SoftInit() = false, want true")
		}
		if device.Mode() != ble.DataMode {
			t.Errorf("Mode() = %v, want DataMode", device.Mode())
		}
	})

	t.Run("unresponsive module", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if device.SoftInit() {
			t.Error("SoftInit() = true with a silent module")
		}
	})
}

func TestSetSerializedName(t *testing.T) {
	port := ble.NewFakePort()
	device := newTestDevice(t, port)
	port.Respond(rn.SetSerializedName, "AOK\r\n", respDelay)

	if !device.SetSerializedName("AveryLongDeviceNameXYZ") {
		t.Fatal("SetSerializedName() = false, want true")
	}
	if !strings.Contains(port.Written(), "S-,AveryLongDevice\r") {
		t.Errorf("port saw %q, want the name truncated to %d bytes", port.Written(), rn.MaxSerializedNameLen)
	}
	if got := device.DeviceName(); got != "AveryLongDevice" {
		t.Errorf("DeviceName() = %q, want the truncated name", got)
	}
}

func TestSetAdvPower(t *testing.T) {
	port := ble.NewFakePort()
	device := newTestDevice(t, port)
	port.Respond(rn.SetAdvPower, "AOK\r\n", respDelay)

	if !device.SetAdvPower(9) {
		t.Fatal("SetAdvPower() = false, want true")
	}
	if !strings.Contains(port.Written(), "SGA,5\r") {
		t.Errorf("port saw %q, want the level clamped to 5", port.Written())
	}
}

func TestUUIDValidation(t *testing.T) {
	t.Run("service UUID with a bad length sends nothing", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if device.SetServiceUUID("12345") {
			t.Error("SetServiceUUID() = true for a 5-digit UUID")
		}
		if strings.Contains(port.Written(), rn.DefineServiceUUID) {
			t.Errorf("port saw %q, want no PS command", port.Written())
		}
	})

	t.Run("characteristic UUID with a bad length sends nothing", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if device.SetCharacteristicUUID("AD11CF40", rn.PropRead, 2) {
			t.Error("SetCharacteristicUUID() = true for an 8-digit UUID")
		}
		if strings.Contains(port.Written(), rn.DefineCharacteristicUUID) {
			t.Errorf("port saw %q, want no PC command", port.Written())
		}
	})

	t.Run("16-bit UUID accepted", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.DefineServiceUUID, "AOK\r\n", respDelay)

		if !device.SetServiceUUID("180A") {
			t.Error("SetServiceUUID() = false for a 4-digit UUID")
		}
		if !strings.Contains(port.Written(), "PS,180A\r") {
			t.Errorf("port saw %q, want PS,180A", port.Written())
		}
	})
}

func TestSetCharacteristicUUID(t *testing.T) {
	uuid := "AD11CF40063F11E5BE3E0002A5D5C51B"

	t.Run("length clamped low", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.DefineCharacteristicUUID, "AOK\r\n", respDelay)

		if !device.SetCharacteristicUUID(uuid, rn.PropRead, 0) {
			t.Fatal("SetCharacteristicUUID() = false, want true")
		}
		if !strings.Contains(port.Written(), "PC,"+uuid+",02,01\r") {
			t.Errorf("port saw %q, want octet length clamped to 01", port.Written())
		}
	})

	t.Run("length clamped high", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.DefineCharacteristicUUID, "AOK\r\n", respDelay)

		property := rn.PropWrite | rn.PropIndicate
		if !device.SetCharacteristicUUID(uuid, property, 0x99) {
			t.Fatal("SetCharacteristicUUID() = false, want true")
		}
		if !strings.Contains(port.Written(), "PC,"+uuid+","+rn.Hex2(property)+",14\r") {
			t.Errorf("port saw %q, want octet length clamped to 14", port.Written())
		}
	})
}

func TestStartScanning(t *testing.T) {
	port := ble.NewFakePort()
	device := newTestDevice(t, port)
	port.Respond(rn.StartScan, "Scanning\r\n", respDelay)

	if !device.StartScanning() {
		t.Error("StartScanning() = false, want true")
	}
}

func TestConnectionStatus(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.ConnectionStatus, "none\r", respDelay)

		if got := device.ConnectionStatus(); got != 0 {
			t.Errorf("ConnectionStatus() = %d, want 0", got)
		}
	})

	t.Run("connected", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.ConnectionStatus, "69AABBCC,0\r", respDelay)

		if got := device.ConnectionStatus(); got != 1 {
			t.Errorf("ConnectionStatus() = %d, want 1", got)
		}
	})

	t.Run("no reply", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if got := device.ConnectionStatus(); got != -1 {
			t.Errorf("ConnectionStatus() = %d, want -1", got)
		}
	})
}

func TestLocalCharacteristics(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.WriteLocalCharacteristic, "AOK\r\n", respDelay)

		if !device.WriteLocalCharacteristic(0x0012, "4F4E") {
			t.Fatal("WriteLocalCharacteristic() = false, want true")
		}
		if !strings.Contains(port.Written(), "SHW,0012,4F4E\r") {
			t.Errorf("port saw %q, want SHW,0012,4F4E", port.Written())
		}
	})

	t.Run("read", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)
		port.Respond(rn.ReadLocalCharacteristic, "4A\r", respDelay)

		if !device.ReadLocalCharacteristic(0x0034) {
			t.Fatal("ReadLocalCharacteristic() = false, want true")
		}
		if got := device.LastResponse(); got != "4A" {
			t.Errorf("LastResponse() = %q, want %q", got, "4A")
		}
		if !strings.Contains(port.Written(), "SHR,0034\r") {
			t.Errorf("port saw %q, want SHR,0034", port.Written())
		}
	})

	t.Run("read timeout", func(t *testing.T) {
		port := ble.NewFakePort()
		device := newTestDevice(t, port)

		if device.ReadLocalCharacteristic(0x0034) {
			t.Error("ReadLocalCharacteristic() = true with a silent module")
		}
	})
}

func TestFirmwareVersion(t *testing.T) {
	port := ble.NewFakePort()
	device := newTestDevice(t, port)
	port.Respond(rn.FirmwareVersion, "RN4871 V1.40 7/9/2019\r", respDelay)

	if !device.FirmwareVersion() {
		t.Fatal("FirmwareVersion() = false, want true")
	}
	if !strings.Contains(device.LastResponse(), "V1.40") {
		t.Errorf("LastResponse() = %q, want the firmware banner", device.LastResponse())
	}
}
