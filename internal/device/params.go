package device

// DefaultMaxMessages is the default per-Ksock inbound queue capacity,
// counted together with outstanding-requests (spec.md §3's reserved-slots
// invariant) against max_messages.
const DefaultMaxMessages = 64

// DefaultSetAsideMax bounds the device-wide set-aside list (spec.md §4.7)
// before it is declared tragic and further events collapse into a single
// UnbindEventsLost marker per affected Listener.
const DefaultSetAsideMax = 256

// Params configures a new Device. Grounded on go-ublk's DeviceParams /
// DefaultParams shape (backend.go): a plain struct with a constructor
// supplying sensible defaults, no config file or env-driven knobs beyond
// one debug toggle.
type Params struct {
	DefaultMaxMessages int
	SetAsideMax        int
	Verbose            bool
	ReportReplierBinds bool
}

// DefaultParams returns sensible defaults for a new device.
func DefaultParams() Params {
	return Params{
		DefaultMaxMessages: DefaultMaxMessages,
		SetAsideMax:        DefaultSetAsideMax,
	}
}
