package crier

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"quiet", Quiet, false},
		{"brief", Brief, false},
		{"verbose", Verbose, false},
		{"debug", Debug, false},
		{"trace", Trace, false},
		{"TRACE", Trace, false},
		{" Brief ", Brief, false},
		{"", Brief, true},
		{"loud", Brief, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	for _, m := range allModes {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("round trip of %v failed: %v", m, err)
		}
		if parsed != m {
			t.Errorf("round trip of %v gave %v", m, parsed)
		}
	}
}

func TestModeOrdering(t *testing.T) {
	if !(Quiet < Brief && Brief < Verbose && Verbose < Debug && Debug < Trace) {
		t.Error("mode ordering broken")
	}
}
