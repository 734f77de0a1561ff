package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/thingy-gateway/internal/device"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("THINGY_CONFIG", path)
	return path
}

// startRun runs the gateway in the background and waits for its API to
// answer. The returned function cancels it and returns run's error.
func startRun(t *testing.T, apiPort int) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", apiPort)
	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case err := <-errCh:
			cancel()
			t.Fatalf("run() exited during startup: %v", err)
		default:
		}

		resp, err := http.Get(url) //nolint:noctx // Test helper
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API did not become ready on port %d", apiPort)
		}
		time.Sleep(20 * time.Millisecond)
	}

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("run() did not return after cancellation")
			return nil
		}
	}
}

// TestRun_InvalidConfig verifies run fails with an explicit config path
// that does not exist.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("THINGY_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ValidationFailure verifies run refuses a config that fails
// validation.
func TestRun_ValidationFailure(t *testing.T) {
	writeConfig(t, `
gateway:
  id: test-gateway
stream:
  queue_size: 0
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with zero stream.queue_size")
	}
	if !strings.Contains(err.Error(), "queue_size") {
		t.Errorf("run() error = %v, want mention of queue_size", err)
	}
}

// TestRun_MQTTUnreachable verifies startup fails when the broker cannot be
// reached.
func TestRun_MQTTUnreachable(t *testing.T) {
	writeConfig(t, fmt.Sprintf(`
gateway:
  id: test-gateway
database:
  enabled: false
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: %d
    client_id: "test-unreachable"
logging:
  level: error
  format: text
api:
  host: "127.0.0.1"
  port: %d
`, freePort(t), freePort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when MQTT is unreachable")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("THINGY_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("THINGY_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestLoadConfig_DefaultsWhenDefaultFileMissing verifies the built-in
// defaults are used when the default config file is absent.
func TestLoadConfig_DefaultsWhenDefaultFileMissing(t *testing.T) {
	t.Setenv("THINGY_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if path != "(defaults)" {
		t.Errorf("loadConfig() path = %q, want (defaults)", path)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

type failingCheck struct{ err error }

func (f failingCheck) HealthCheck(context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	if err := healthCheck(ctx, nil); err != nil {
		t.Errorf("healthCheck(nil) = %v, want nil", err)
	}

	checks := []healthCheckTarget{
		{name: "ok", target: failingCheck{}},
		{name: "mqtt", target: failingCheck{err: fmt.Errorf("not connected")}},
	}
	err := healthCheck(ctx, checks)
	if err == nil || !strings.HasPrefix(err.Error(), "mqtt:") {
		t.Errorf("healthCheck() = %v, want mqtt failure", err)
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the gateway with a database
// and no MQTT, drives an LED over HTTP and checks the state survives a
// restart.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	apiPort := freePort(t)
	writeConfig(t, fmt.Sprintf(`
gateway:
  id: test-gateway
database:
  enabled: true
  path: %q
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  format: text
api:
  host: "127.0.0.1"
  port: %d
`, dbPath, apiPort))

	ledURL := fmt.Sprintf("http://127.0.0.1:%d/api/v1/things/lab-1/actuators/led", apiPort)

	stop := startRun(t, apiPort)
	req, err := http.NewRequest(http.MethodPut, ledURL, strings.NewReader(`{"color":255,"intensity":50,"delay":0}`))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT led: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT led status = %d, want 200", resp.StatusCode)
	}
	if err := stop(); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	stop = startRun(t, apiPort)
	defer func() {
		if err := stop(); err != nil {
			t.Errorf("run() returned error: %v", err)
		}
	}()

	resp, err = http.Get(ledURL) //nolint:noctx // Test
	if err != nil {
		t.Fatalf("GET led: %v", err)
	}
	defer resp.Body.Close()

	var got device.LEDState
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding led: %v", err)
	}
	want := device.LEDState{Color: 255, Intensity: 50}
	if got != want {
		t.Errorf("restored LED = %+v, want %+v", got, want)
	}
}

// TestRun_EmbeddedBroker starts the gateway with its own broker and the
// MQTT bridge connected to it.
func TestRun_EmbeddedBroker(t *testing.T) {
	apiPort := freePort(t)
	mqttPort := freePort(t)
	writeConfig(t, fmt.Sprintf(`
gateway:
  id: test-gateway
database:
  enabled: false
mqtt:
  enabled: true
  topic_prefix: "thingy"
  broker:
    host: "127.0.0.1"
    port: %d
    client_id: "test-embedded"
  embedded:
    enabled: true
    address: "127.0.0.1:%d"
logging:
  level: error
  format: text
api:
  host: "127.0.0.1"
  port: %d
`, mqttPort, mqttPort, apiPort))

	stop := startRun(t, apiPort)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/metrics", apiPort)) //nolint:noctx // Test
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	var metrics struct {
		MQTT struct {
			Enabled       bool `json:"enabled"`
			Connected     bool `json:"connected"`
			Subscriptions int  `json:"subscriptions"`
		} `json:"mqtt"`
	}
	err = json.NewDecoder(resp.Body).Decode(&metrics)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if !metrics.MQTT.Enabled || !metrics.MQTT.Connected {
		t.Errorf("metrics mqtt = %+v, want enabled and connected", metrics.MQTT)
	}
	if metrics.MQTT.Subscriptions != 3 {
		t.Errorf("metrics mqtt subscriptions = %d, want the bridge's 3 device topics", metrics.MQTT.Subscriptions)
	}

	if err := stop(); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
}
