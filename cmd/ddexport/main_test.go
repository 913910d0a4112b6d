package main

import (
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/receiver"
)

// TestMain lets scripts run the binary as "ddexport" without building it.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"ddexport": func() int {
			main()
			return 0
		},
	}))
}

func TestScripts(t *testing.T) {
	// A receiver running in the test process stands in for the trace agent.
	rec := receiver.NewRecorder()
	agent := httptest.NewServer(receiver.New(rec).Handler())

	// Scripts run as parallel subtests, which finish after this function
	// returns.
	t.Cleanup(func() {
		agent.Close()
		if len(rec.Spans()) == 0 {
			t.Error("no spans reached the agent")
		}
	})

	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			env.Setenv("DDEXPORT_AGENT_ADDR", strings.TrimPrefix(agent.URL, "http://"))
			env.Setenv("AGENT_ENDPOINT", agent.URL+datadog.TracesPath)
			return nil
		},
	})
}
