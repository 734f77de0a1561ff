package broker

import (
	"fmt"
	"net"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/thingy-gateway/internal/infrastructure/config"
)

// freeAddress returns a loopback address with a currently unused port.
func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func startBroker(t *testing.T, creds config.MQTTAuthConfig) *Broker {
	t.Helper()
	b, err := New(config.EmbeddedBrokerConfig{Enabled: true, Address: freeAddress(t)}, creds, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func connect(t *testing.T, addr, user, pass string) (pahomqtt.Client, error) {
	t.Helper()
	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", addr)).
		SetClientID(fmt.Sprintf("test-%d", time.Now().UnixNano())).
		SetUsername(user).
		SetPassword(pass).
		SetConnectTimeout(2 * time.Second)
	c := pahomqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(3 * time.Second) {
		return nil, fmt.Errorf("connect timeout")
	}
	return c, tok.Error()
}

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(config.EmbeddedBrokerConfig{Enabled: true}, config.MQTTAuthConfig{}, nil); err == nil {
		t.Error("New() with empty address should fail")
	}
}

func TestBroker_PublishBeforeStart(t *testing.T) {
	b, err := New(config.EmbeddedBrokerConfig{Address: "127.0.0.1:0"}, config.MQTTAuthConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Publish("thingy/x", nil, false, 0); err != ErrNotStarted {
		t.Errorf("Publish() error = %v, want ErrNotStarted", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}

func TestBroker_RetainedDelivery(t *testing.T) {
	b := startBroker(t, config.MQTTAuthConfig{})

	if err := b.Publish("thingy/d1/actuators/led", []byte(`{"color":5}`), true, 0); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	c, err := connect(t, b.Address(), "", "")
	if err != nil {
		t.Fatalf("connect error = %v", err)
	}
	defer c.Disconnect(100)

	got := make(chan string, 1)
	tok := c.Subscribe("thingy/+/actuators/led", 0, func(_ pahomqtt.Client, m pahomqtt.Message) {
		got <- string(m.Payload())
	})
	if !tok.WaitTimeout(2*time.Second) || tok.Error() != nil {
		t.Fatalf("subscribe failed: %v", tok.Error())
	}

	select {
	case payload := <-got:
		if payload != `{"color":5}` {
			t.Errorf("payload = %q", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("retained message not delivered")
	}
}

func TestBroker_CredentialsEnforced(t *testing.T) {
	b := startBroker(t, config.MQTTAuthConfig{Username: "thingy", Password: "secret"})

	// Loopback clients are trusted, so only the credential rule is
	// exercised by a correct login here.
	c, err := connect(t, b.Address(), "thingy", "secret")
	if err != nil {
		t.Fatalf("connect with valid credentials error = %v", err)
	}
	c.Disconnect(100)
}
