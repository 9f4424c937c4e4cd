package channels

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Spec is the desired configuration of one channel, as loaded from the
// assistant's config file.
type Spec struct {
	Name     string          `yaml:"name" json:"name"`
	Platform string          `yaml:"platform" json:"platform"`
	Enabled  bool            `yaml:"enabled" json:"enabled"`
	Config   json.RawMessage `yaml:"-" json:"config"`
}

// fingerprint changes when anything that requires a restart changes.
func (s Spec) fingerprint() string {
	return s.Platform + "|" + string(s.Config)
}

// channelEntry holds a running channel and its config fingerprint.
type channelEntry struct {
	channel     Channel
	cancel      context.CancelFunc
	wg          sync.WaitGroup // tracks the dispatch goroutine
	platform    string
	fingerprint string
}

// Dispatcher manages active channels and routes inbound messages through
// the InboundHandler. Apply reconciles the active set against a list of
// Specs; calling it again with a changed list restarts only the channels
// whose config changed.
type Dispatcher struct {
	mu        sync.RWMutex
	channels  map[string]*channelEntry
	factories map[string]ChannelFactory
	handler   InboundHandler
	logger    *slog.Logger

	// lifecycleCtx is a long-lived context that parents all channel listen
	// contexts. It is independent of any request context passed to Apply,
	// so that channels survive beyond a single Apply call.
	lifecycleCtx    context.Context
	lifecycleCancel context.CancelFunc

	// sem is a semaphore channel used when maxConcurrent > 0 to limit
	// concurrent InboundHandler calls.
	sem chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMaxConcurrent sets the maximum number of concurrent InboundHandler
// calls across all channels. The assistant sets this to 1: its handler
// drives a single browser session that has no safe concurrent-access
// mode, so messages must be processed one at a time in arrival order.
// Zero or negative means unlimited.
func WithMaxConcurrent(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a Dispatcher with the given inbound handler.
// Register platform factories before calling Apply.
func NewDispatcher(handler InboundHandler, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		channels:        make(map[string]*channelEntry),
		factories:       make(map[string]ChannelFactory),
		handler:         handler,
		logger:          slog.Default(),
		lifecycleCtx:    ctx,
		lifecycleCancel: cancel,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RegisterPlatform registers a ChannelFactory for a platform name.
// Must be called before Apply.
func (d *Dispatcher) RegisterPlatform(platform string, f ChannelFactory) {
	d.mu.Lock()
	d.factories[platform] = f
	d.mu.Unlock()
}

// Send sends an outbound message through the named channel.
// Returns ErrChannelNotFound if the channel is not active.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	entry, ok := d.channels[msg.ChannelName]
	d.mu.RUnlock()

	if !ok {
		return &ErrChannelNotFound{Channel: msg.ChannelName}
	}
	return entry.channel.Send(ctx, msg)
}

// Status returns the ChannelStatus for a named channel.
// Returns ok=false if the channel is not active.
func (d *Dispatcher) Status(name string) (ChannelStatus, bool) {
	d.mu.RLock()
	entry, ok := d.channels[name]
	d.mu.RUnlock()

	if !ok {
		return ChannelStatus{}, false
	}
	return entry.channel.Status(), true
}

// Apply reconciles the active channel set against specs. New enabled
// channels are started, removed or disabled channels are closed, and
// channels with changed config are restarted.
//
// Channel listen contexts are parented to the Dispatcher's lifecycle
// context, not to any caller context, so channels outlive the call.
func (d *Dispatcher) Apply(specs []Spec) error {
	desired := make(map[string]Spec, len(specs))
	for _, s := range specs {
		desired[s.Name] = s
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Close channels that were removed or disabled.
	for name, entry := range d.channels {
		s, exists := desired[name]
		if !exists || !s.Enabled {
			d.closeEntry(name, entry)
			delete(d.channels, name)
			continue
		}
		// Close and recreate if fingerprint changed.
		if s.fingerprint() != entry.fingerprint {
			d.closeEntry(name, entry)
			delete(d.channels, name)
		}
	}

	// Start new or restarted channels.
	for name, s := range desired {
		if !s.Enabled {
			continue
		}
		if _, active := d.channels[name]; active {
			// Already running with same fingerprint.
			continue
		}

		factory, ok := d.factories[s.Platform]
		if !ok {
			d.logger.Warn("no factory for platform",
				"channel", name, "platform", s.Platform)
			continue
		}

		ch, err := factory(name, s.Config)
		if err != nil {
			d.logger.Error("channel factory failed",
				"channel", name, "platform", s.Platform, "error", err)
			continue
		}

		listenCtx, cancel := context.WithCancel(d.lifecycleCtx)
		entry := &channelEntry{
			channel:     ch,
			cancel:      cancel,
			platform:    s.Platform,
			fingerprint: s.fingerprint(),
		}
		d.channels[name] = entry

		// Start listening for inbound messages, tracked by WaitGroup.
		entry.wg.Add(1)
		go d.dispatch(listenCtx, name, ch, &entry.wg)

		d.logger.Info("channel started",
			"channel", name, "platform", s.Platform)
	}

	d.logger.Info("channels applied",
		"active", len(d.channels),
		"configured", len(desired))

	return nil
}

// dispatch reads inbound messages from a channel and processes them through
// the InboundHandler. Outbound responses are sent back through the same channel.
func (d *Dispatcher) dispatch(ctx context.Context, name string, ch Channel, wg *sync.WaitGroup) {
	defer wg.Done()
	msgs := ch.Listen(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				d.logger.Info("channel listen closed", "channel", name)
				return
			}

			// Acquire semaphore slot if concurrency is limited.
			if d.sem != nil {
				select {
				case d.sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}

			responses, err := d.handler(ctx, msg)

			if d.sem != nil {
				<-d.sem
			}

			if err != nil {
				d.logger.Error("inbound handler failed",
					"channel", name, "sender", msg.SenderID, "error", err)
				continue
			}

			for _, resp := range responses {
				resp.ChannelName = name
				resp.Direction = Outbound
				if err := ch.Send(ctx, resp); err != nil {
					d.logger.Error("send response failed",
						"channel", name, "recipient", resp.RecipientID, "error", err)
				}
			}
		}
	}
}

// closeEntry shuts down a channel entry and waits for its dispatch goroutine
// to exit before returning, preventing goroutine leaks on rapid reapply.
func (d *Dispatcher) closeEntry(name string, entry *channelEntry) {
	entry.cancel()
	if err := entry.channel.Close(); err != nil {
		d.logger.Error("channel close failed",
			"channel", name, "platform", entry.platform, "error", err)
	} else {
		d.logger.Info("channel stopped",
			"channel", name, "platform", entry.platform)
	}
	entry.wg.Wait()
}

// Active returns a snapshot of the active channels, for ops endpoints.
func (d *Dispatcher) Active() []ChannelInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	infos := make([]ChannelInfo, 0, len(d.channels))
	for name, entry := range d.channels {
		st := entry.channel.Status()
		infos = append(infos, ChannelInfo{
			Name:      name,
			Platform:  entry.platform,
			Status:    st,
			Connected: st.Connected,
		})
	}
	return infos
}

// ChannelInfo describes an active channel as seen by the dispatcher at a
// point in time. The struct is a snapshot; the dispatcher may have
// reapplied its config since this was created.
type ChannelInfo struct {
	Name      string        `json:"name"`
	Platform  string        `json:"platform"`
	Status    ChannelStatus `json:"status"`
	Connected bool          `json:"connected"`
}

// Close shuts down all active channels and cancels the lifecycle context.
func (d *Dispatcher) Close() error {
	d.lifecycleCancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, entry := range d.channels {
		d.closeEntry(name, entry)
	}
	d.channels = make(map[string]*channelEntry)
	return nil
}
