package model

import "testing"

func TestUnitStatus_Streamable(t *testing.T) {
	tests := []struct {
		status UnitStatus
		want   bool
	}{
		{UnitOnline, true},
		{UnitOffline, false},
		{UnitPending, false},
		{UnitUnknown, false},
		{UnitStatus("rebooting"), false},
		{UnitStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Streamable(); got != tt.want {
				t.Errorf("Streamable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnit_DisplayName(t *testing.T) {
	u := Unit{Serial: "APIS-0042", Name: "North apiary"}
	if got := u.DisplayName(); got != "North apiary" {
		t.Errorf("DisplayName() = %q, want %q", got, "North apiary")
	}

	u.Name = ""
	if got := u.DisplayName(); got != "APIS-0042" {
		t.Errorf("DisplayName() = %q, want %q", got, "APIS-0042")
	}
}
