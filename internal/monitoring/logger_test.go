package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("sensing loop: gyro bias calibrated to %.4f", 0.0125)

	if len(got) != 1 || got[0] != "sensing loop: gyro bias calibrated to 0.0125" {
		t.Errorf("captured %q", got)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(got) != 1 {
		t.Errorf("muted logger still captured: %q", got)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	Logf("motion.report test: %s", "default logger")
}
