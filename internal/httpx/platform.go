package httpx

import (
	"net/http"
	"strings"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformMac     Platform = "mac"
	PlatformWindows Platform = "win"
	PlatformLinux   Platform = "linux"
	PlatformWeb     Platform = "web"
)

const (
	HeaderDeviceID   = "X-Device-Id"
	HeaderDeviceName = "X-Device-Name"
	HeaderPlatform   = "X-Client-Platform"
	HeaderAppVersion = "X-App-Version"
	HeaderRequestID  = "X-Request-Id"
)

// DeviceMeta identifies this console to the backend on every outbound call.
type DeviceMeta struct {
	DeviceID   string   `header:"X-Device-Id"       validate:"omitempty,min=8,max=128"`
	DeviceName string   `header:"X-Device-Name"     validate:"omitempty,min=1,max=64"`
	Platform   Platform `header:"X-Client-Platform" validate:"omitempty,oneof=ios android mac win linux web"`
	AppVersion string   `header:"X-App-Version"     validate:"omitempty,min=1,max=32"`
}

// Apply sets the non-empty fields on h without touching other headers.
func (d DeviceMeta) Apply(h http.Header) {
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			h.Set(k, v)
		}
	}
	set(HeaderDeviceID, d.DeviceID)
	set(HeaderDeviceName, d.DeviceName)
	set(HeaderPlatform, string(d.Platform))
	set(HeaderAppVersion, d.AppVersion)
}
