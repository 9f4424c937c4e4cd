package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeChannel is an in-memory Channel for dispatcher tests.
type fakeChannel struct {
	mu      sync.Mutex
	inbound chan Message
	sent    []Message
	closed  bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbound: make(chan Message, 16)}
}

func (f *fakeChannel) Listen(ctx context.Context) <-chan Message {
	ch := make(chan Message)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-f.inbound:
				if !ok {
					return
				}
				select {
				case ch <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func (f *fakeChannel) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) sentMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeChannel) Status() ChannelStatus {
	return ChannelStatus{Connected: true, Platform: "fake"}
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fakeFactory(ch *fakeChannel) ChannelFactory {
	return func(name string, config json.RawMessage) (Channel, error) {
		return ch, nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestDispatcherRoutesInboundToHandler(t *testing.T) {
	fake := newFakeChannel()
	var handled atomic.Int32

	handler := func(ctx context.Context, msg Message) ([]Message, error) {
		handled.Add(1)
		return []Message{{Text: "echo: " + msg.Text, RecipientID: msg.SenderID}}, nil
	}

	d := NewDispatcher(handler)
	defer d.Close()
	d.RegisterPlatform("fake", fakeFactory(fake))

	if err := d.Apply([]Spec{{Name: "test", Platform: "fake", Enabled: true}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	fake.inbound <- Message{Text: "hello", SenderID: "u1"}

	waitFor(t, func() bool { return len(fake.sentMessages()) == 1 })
	if handled.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", handled.Load())
	}
	sent := fake.sentMessages()[0]
	if sent.Text != "echo: hello" {
		t.Errorf("response text = %q", sent.Text)
	}
	if sent.Direction != Outbound || sent.ChannelName != "test" {
		t.Errorf("response stamped %+v", sent)
	}
}

func TestDispatcherSerializesWithMaxConcurrentOne(t *testing.T) {
	fake := newFakeChannel()
	var inFlight, maxInFlight atomic.Int32

	handler := func(ctx context.Context, msg Message) ([]Message, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}

	d := NewDispatcher(handler, WithMaxConcurrent(1))
	defer d.Close()
	d.RegisterPlatform("fake", fakeFactory(fake))
	if err := d.Apply([]Spec{{Name: "serial", Platform: "fake", Enabled: true}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for i := 0; i < 5; i++ {
		fake.inbound <- Message{Text: "m"}
	}

	// All five messages pass through one dispatch goroutine gated by the
	// semaphore, so concurrency must never exceed 1.
	time.Sleep(200 * time.Millisecond)
	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("max concurrent handler calls = %d, want 1", got)
	}
}

func TestDispatcherApplyReconciles(t *testing.T) {
	a, b := newFakeChannel(), newFakeChannel()
	d := NewDispatcher(func(ctx context.Context, msg Message) ([]Message, error) {
		return nil, nil
	})
	defer d.Close()
	d.RegisterPlatform("a", fakeFactory(a))
	d.RegisterPlatform("b", fakeFactory(b))

	if err := d.Apply([]Spec{
		{Name: "one", Platform: "a", Enabled: true},
		{Name: "two", Platform: "b", Enabled: true},
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := d.Status("one"); !ok {
		t.Fatal("channel one not active")
	}
	if got := len(d.Active()); got != 2 {
		t.Fatalf("Active = %d, want 2", got)
	}

	// Disable one, drop the other.
	if err := d.Apply([]Spec{{Name: "one", Platform: "a", Enabled: false}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := d.Status("one"); ok {
		t.Error("disabled channel still active")
	}
	if _, ok := d.Status("two"); ok {
		t.Error("removed channel still active")
	}
	if !a.closed || !b.closed {
		t.Error("closed channels were not shut down")
	}
}

func TestDispatcherSendUnknownChannel(t *testing.T) {
	d := NewDispatcher(func(ctx context.Context, msg Message) ([]Message, error) {
		return nil, nil
	})
	defer d.Close()

	err := d.Send(context.Background(), Message{ChannelName: "ghost"})
	var notFound *ErrChannelNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("got %v, want ErrChannelNotFound", err)
	}
}

func TestWebhookFactoryValidation(t *testing.T) {
	f := WebhookFactory()
	if _, err := f("w", json.RawMessage(`{}`)); err == nil {
		t.Error("missing listen_addr accepted")
	}
	ch, err := f("w", json.RawMessage(`{"listen_addr": ":0"}`))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	wh := ch.(*webhookChannel)
	if wh.config.Path != "/" {
		t.Errorf("default path = %q", wh.config.Path)
	}
	if wh.config.MaxBodyBytes != 1<<20 {
		t.Errorf("default max body = %d", wh.config.MaxBodyBytes)
	}
}

func TestWebhookVerifyHMAC(t *testing.T) {
	c := newWebhookChannel("w", WebhookConfig{Secret: "test-secret"})
	body := []byte(`{"text":"hi"}`)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.verifyHMAC(body, sig) {
		t.Error("valid signature rejected")
	}
	if !c.verifyHMAC(body, "sha256="+sig) {
		t.Error("valid prefixed signature rejected")
	}
	if c.verifyHMAC(body, "") {
		t.Error("missing signature accepted")
	}
	if c.verifyHMAC(body, "deadbeef") {
		t.Error("wrong signature accepted")
	}
	if c.verifyHMAC(body, "not-hex!") {
		t.Error("malformed signature accepted")
	}

	open := newWebhookChannel("w", WebhookConfig{})
	if !open.verifyHMAC(body, "") {
		t.Error("unsigned request rejected without configured secret")
	}
}

func TestWebhookSendRejectsPrivateCallback(t *testing.T) {
	c := newWebhookChannel("w", WebhookConfig{ListenAddr: ":0"})
	err := c.Send(context.Background(), Message{
		Metadata: map[string]string{"callback_url": "http://169.254.169.254/meta"},
	})
	if err == nil {
		t.Fatal("private callback URL accepted")
	}
}

func TestWebhookSendWithoutCallbackDropsSilently(t *testing.T) {
	c := newWebhookChannel("w", WebhookConfig{ListenAddr: ":0"})
	if err := c.Send(context.Background(), Message{Text: "reply"}); err != nil {
		t.Fatalf("Send without callback: %v", err)
	}
}

func TestDiscordFactoryValidation(t *testing.T) {
	f := DiscordFactory()
	if _, err := f("d", json.RawMessage(`{}`)); err == nil {
		t.Error("missing bot_token accepted")
	}
	ch, err := f("d", json.RawMessage(`{"bot_token": "Bot x"}`))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer ch.Close()
	if st := ch.Status(); st.Platform != "discord" {
		t.Errorf("platform = %q", st.Platform)
	}
}

func TestDirectionString(t *testing.T) {
	if Inbound.String() != "inbound" || Outbound.String() != "outbound" {
		t.Error("Direction.String mismatch")
	}
}
