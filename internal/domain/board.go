package domain

type BoardProfile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Chip     string   `json:"chip"`
	PinCount int      `json:"pinCount"`
	Pins     []string `json:"pins"`
	Features []string `json:"features"`
}

func (b BoardProfile) HasFeature(feature string) bool {
	for _, f := range b.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// GenericLinuxBoard is the profile the virtual runtime boots with when no
// explicit board has been configured. Pin roster matches the Blinka
// generic-PC shim.
func GenericLinuxBoard() BoardProfile {
	return BoardProfile{
		ID:       "generic_linux_pc",
		Name:     "Generic Linux PC",
		Chip:     "GENERIC_X86",
		PinCount: 19,
		Pins: []string{
			"D0", "D1", "D2", "D3", "D4", "D5", "D6", "D7", "D8", "D9",
			"D10", "D11", "D12", "D13", "D14", "D15", "LED", "SDA", "SCL",
		},
		Features: []string{"digitalio", "busio"},
	}
}
