//go:build integration

package integration

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/serial"
	"github.com/buckleypaul/dct/internal/session"
)

// testerPort returns the port of an attached tester from the environment,
// or skips the test if it is not set.
func testerPort(t *testing.T) (string, int) {
	t.Helper()
	port := os.Getenv("DCT_TEST_PORT")
	if port == "" {
		t.Skip("DCT_TEST_PORT not set; skipping hardware tests")
	}
	baud := 9600
	if v, err := strconv.Atoi(os.Getenv("DCT_TEST_BAUD")); err == nil && v > 0 {
		baud = v
	}
	return port, baud
}

func connect(t *testing.T) *engine.Engine {
	t.Helper()
	port, baud := testerPort(t)

	eng := engine.New(serial.NewLink(), engine.Options{})
	eng.Subscribe(func(n engine.Notification) { t.Logf("[%s] %s", n.Kind, n.Message) })

	if err := eng.Connect(port, baud); err != nil {
		t.Fatalf("connect %s: %v", port, err)
	}
	t.Cleanup(eng.Disconnect)
	return eng
}

// pollUntil drains the device until cond holds or the deadline passes.
func pollUntil(eng *engine.Engine, timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		eng.Poll()
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// TestIntegrationPrimingResolves connects to the tester and waits for the
// detect issued on connect to be answered.
func TestIntegrationPrimingResolves(t *testing.T) {
	eng := connect(t)

	ok := pollUntil(eng, 5*time.Second, func() bool {
		return eng.Session().PendingDetects() == 0
	})
	if !ok {
		t.Fatal("detect not answered within 5s")
	}
	if eng.Session().LogicChip() == "" {
		t.Fatal("expected a chip label after detect")
	}
}

// TestIntegrationLogicRun starts the built-in test for the detected chip
// and waits for the summary.
func TestIntegrationLogicRun(t *testing.T) {
	eng := connect(t)
	pollUntil(eng, 5*time.Second, func() bool { return eng.Session().PendingDetects() == 0 })

	if err := eng.StartTest(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ok := pollUntil(eng, 20*time.Second, func() bool {
		_, done := eng.Session().Summary()
		return done
	})
	if !ok {
		t.Fatal("no summary within 20s")
	}
	sum, _ := eng.Session().Summary()
	t.Logf("%s: %d pass / %d fail (%.1f%%)", sum.Test, sum.Passes, sum.Fails, sum.PassRate)
}

// TestIntegrationOpampDetect routes a detect to the op-amp page.
func TestIntegrationOpampDetect(t *testing.T) {
	eng := connect(t)
	pollUntil(eng, 5*time.Second, func() bool { return eng.Session().PendingDetects() == 0 })

	if err := eng.RequestDetect(session.TargetOpamp); err != nil {
		t.Fatalf("detect: %v", err)
	}
	ok := pollUntil(eng, 5*time.Second, func() bool { return eng.Session().OpampChip() != "" })
	if !ok {
		t.Fatal("op-amp detect not answered within 5s")
	}
}
