package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("camera %s offline", "lot-a")
	if got != "camera %s offline" {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// nil installs a no-op, not a nil function
	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	SetLogger(nil)
	Logf("muted")
	if called {
		t.Error("previous logger invoked after SetLogger(nil)")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf is nil by default")
	}
	Logf("default logger message: %s", "ok")
}
