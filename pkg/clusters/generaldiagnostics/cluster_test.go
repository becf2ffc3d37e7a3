package generaldiagnostics

import "testing"

func TestParseInterfaceType(t *testing.T) {
	tests := []struct {
		in   string
		want InterfaceType
		ok   bool
	}{
		{"", InterfaceUnspecified, true},
		{"wifi", InterfaceWiFi, true},
		{"Wi-Fi", InterfaceWiFi, true},
		{"ethernet", InterfaceEthernet, true},
		{"lte", InterfaceCellular, true},
		{" Thread ", InterfaceThread, true},
		{"zigbee", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseInterfaceType(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Errorf("expected (%s, %v), got (%s, %v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}

func TestInterfaceType_String(t *testing.T) {
	tests := map[InterfaceType]string{
		InterfaceUnspecified: "Unspecified",
		InterfaceWiFi:        "Wi-Fi",
		InterfaceEthernet:    "Ethernet",
		InterfaceCellular:    "LTE",
		InterfaceThread:      "Thread",
		InterfaceType(9):     "Unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}
