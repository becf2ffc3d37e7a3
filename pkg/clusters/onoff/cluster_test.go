package onoff

import "testing"

func TestCommand_Apply(t *testing.T) {
	tests := []struct {
		cmd     Command
		current bool
		want    bool
	}{
		{Off, true, false},
		{Off, false, false},
		{On, false, true},
		{On, true, true},
		{Toggle, false, true},
		{Toggle, true, false},
		{Command(0x40), true, true},
	}
	for _, tc := range tests {
		t.Run(tc.cmd.String(), func(t *testing.T) {
			if got := tc.cmd.Apply(tc.current); got != tc.want {
				t.Errorf("%s.Apply(%t): expected %t, got %t", tc.cmd, tc.current, tc.want, got)
			}
		})
	}
}

func TestCommand_ID(t *testing.T) {
	if Toggle.ID() != CmdToggle {
		t.Errorf("expected 0x%02X, got 0x%02X", CmdToggle, Toggle.ID())
	}
	if Command(0x40).String() != "Unknown" {
		t.Errorf("expected Unknown, got %s", Command(0x40))
	}
}
