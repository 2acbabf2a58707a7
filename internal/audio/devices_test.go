package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromListPrimaryDefault(t *testing.T) {
	devices := []Device{
		{ID: "blue", Description: "Blue Yeti", Available: true, Default: true},
		{ID: "webcam", Description: "Logitech C920", Available: true},
	}

	selection, err := selectDeviceFromList(devices, "default", "")
	require.NoError(t, err)
	require.Equal(t, "blue", selection.Device.ID)
	require.Empty(t, selection.Warning)
	require.False(t, selection.Fallback)
}

func TestSelectDeviceFromListByDescription(t *testing.T) {
	devices := []Device{
		{ID: "blue", Description: "Blue Yeti", Available: true, Default: true},
		{ID: "webcam", Description: "Logitech C920", Available: true},
	}

	selection, err := selectDeviceFromList(devices, "C920", "default")
	require.NoError(t, err)
	require.Equal(t, "webcam", selection.Device.ID)
}

func TestSelectDeviceFromListMutedPrimaryUsesFallback(t *testing.T) {
	devices := []Device{
		{ID: "blue", Description: "Blue Yeti", Available: true, Muted: true, Default: true},
		{ID: "webcam", Description: "Logitech C920", Available: true},
	}

	selection, err := selectDeviceFromList(devices, "blue", "webcam")
	require.NoError(t, err)
	require.Equal(t, "webcam", selection.Device.ID)
	require.Contains(t, selection.Warning, "muted")
	require.True(t, selection.Fallback)
}

func TestSelectDeviceFromListUnavailablePrimaryFallsBackToDefault(t *testing.T) {
	devices := []Device{
		{ID: "blue", Description: "Blue Yeti", Available: true, Default: true},
		{ID: "webcam", Description: "Logitech C920", Available: false},
	}

	selection, err := selectDeviceFromList(devices, "webcam", "")
	require.NoError(t, err)
	require.Equal(t, "blue", selection.Device.ID)
	require.Contains(t, selection.Warning, "unavailable")
}

func TestSelectDeviceFromListFailsWhenSelectedAndFallbackMuted(t *testing.T) {
	devices := []Device{
		{ID: "blue", Description: "Blue Yeti", Available: true, Muted: true, Default: true},
	}

	_, err := selectDeviceFromList(devices, "default", "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "muted")
}

func TestSelectDeviceFromListErrors(t *testing.T) {
	_, err := selectDeviceFromList(nil, "", "")
	require.ErrorContains(t, err, "no audio input devices")

	devices := []Device{{ID: "blue", Description: "Blue Yeti", Available: true, Default: true}}
	_, err = selectDeviceFromList(devices, "missing", "default")
	require.ErrorContains(t, err, "did not match")

	muted := []Device{{ID: "blue", Available: true, Muted: true, Default: true}}
	_, err = selectDeviceFromList(muted, "", "missing")
	require.ErrorContains(t, err, `fallback "missing" not found`)

	noDefault := []Device{{ID: "blue", Available: true}}
	_, err = selectDeviceFromList(noDefault, "", "")
	require.ErrorContains(t, err, "default audio source is unavailable")
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-blue_yeti", Description: "Blue Yeti"}
	require.True(t, deviceMatches(dev, "yeti"))
	require.True(t, deviceMatches(dev, "usb-blue"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestDeviceDescribe(t *testing.T) {
	require.Equal(t, "Blue Yeti (blue)", Device{ID: "blue", Description: "Blue Yeti"}.Describe())
	require.Equal(t, "blue", Device{ID: "blue"}.Describe())
	require.Equal(t, "Blue Yeti", Device{Description: " Blue Yeti "}.Describe())
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSelectDeviceFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(7)", sourceStateString(7))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	unknown := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, unknown, []sourcePort{{name: "mic", available: 0}})
	require.True(t, sourceAvailable(unknown))

	unplugged := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, unplugged, []sourcePort{{name: "line", available: 2}, {name: "mic", available: 1}})
	require.False(t, sourceAvailable(unplugged))
}

type sourcePort struct {
	name      string
	available uint32
}

// setSourcePorts fills the anonymous port struct slice on a Pulse reply.
func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))
	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
