package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommandWiring(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	if root.Use != "viewgrid" {
		t.Errorf("root use = %q", root.Use)
	}

	want := map[string]bool{
		"serve": false, "layout": false, "export": false,
		"watch": false, "completion": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)

	c.Logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Error("debug logged at info level")
	}

	c.SetLogLevel(log.DebugLevel)
	c.Logger.Debug("visible")
	if buf.Len() == 0 {
		t.Error("debug not logged at debug level")
	}
}
