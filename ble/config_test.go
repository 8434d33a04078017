package ble_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"i4.energy/across/blegw/ble"
)

func TestConfigBuilder(t *testing.T) {
	t.Run("rejects a missing dialer", func(t *testing.T) {
		_, err := ble.NewConfigBuilder().
			WithCommandTimeout(time.Second).
			Build()
		if !errors.Is(err, ble.ErrNoDialer) {
			t.Errorf("Build() error = %v, want ErrNoDialer", err)
		}
	})

	t.Run("accepts a dialer alone", func(t *testing.T) {
		dialer := ble.DialerFunc(func(ctx context.Context) (ble.Port, error) {
			return ble.NewFakePort(), nil
		})
		if _, err := ble.NewConfigBuilder().WithDialer(dialer).Build(); err != nil {
			t.Errorf("unexpected error building config: %v", err)
		}
	})
}
