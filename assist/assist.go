// Package assist turns inbound chat messages into conversational replies
// by driving a navigation session. It owns the command pipeline: URL
// detection, deterministic classification, LLM intent fallback, and the
// conversational error responses that keep every failure recoverable.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/webguide/channels"
	"github.com/hazyhaar/webguide/command"
	"github.com/hazyhaar/webguide/llm"
	"github.com/hazyhaar/webguide/observability"
	"github.com/hazyhaar/webguide/pagemodel"
	"github.com/hazyhaar/webguide/session"
)

const onboarding = "Share any website URL with me, and I'll help you explore it!"

// Assistant orchestrates one navigation session. It is driven by a single
// dispatcher goroutine; nothing here is safe for concurrent use.
type Assistant struct {
	session *session.Session
	llm     llm.Client
	events  *observability.EventLogger
	logger  *slog.Logger

	// imageCursor remembers where the last image batch ended so "describe
	// more images" continues instead of repeating. Reset on page change.
	imageCursor int
	imagesURL   string
}

// Options configures an Assistant. Session is required; LLM and Events
// are optional and the assistant degrades to local responses without them.
type Options struct {
	Session *session.Session
	LLM     llm.Client
	Events  *observability.EventLogger
	Logger  *slog.Logger
}

// New creates an Assistant.
func New(opts Options) *Assistant {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Assistant{
		session: opts.Session,
		llm:     opts.LLM,
		events:  opts.Events,
		logger:  opts.Logger,
	}
}

// Handler returns a channels.InboundHandler that routes message text
// through HandleMessage and replies on the same channel.
func (a *Assistant) Handler() channels.InboundHandler {
	return func(ctx context.Context, msg channels.Message) ([]channels.Message, error) {
		reply := a.HandleMessage(ctx, msg)
		if reply == "" {
			return nil, nil
		}
		return []channels.Message{{
			Text:        reply,
			RecipientID: msg.SenderID,
			ReplyTo:     msg.ID,
			Metadata:    msg.Metadata,
		}}, nil
	}
}

// HandleMessage processes one user message and returns the reply text.
// It never returns an error: every failure becomes a conversational
// response, so the transport always has something to say.
func (a *Assistant) HandleMessage(ctx context.Context, msg channels.Message) string {
	input := strings.TrimSpace(msg.Text)
	if input == "" {
		return ""
	}

	start := time.Now()
	kind, target, reply := a.dispatch(ctx, input)
	a.record(ctx, msg, kind, target, time.Since(start))
	return reply
}

// dispatch runs the command pipeline and returns the handled command
// kind and target for the audit log alongside the reply.
func (a *Assistant) dispatch(ctx context.Context, input string) (kind, target, reply string) {
	// A URL anywhere in the message wins over everything else.
	if url, ok := command.ExtractURL(input); ok {
		return "navigate", url, a.navigate(ctx, url)
	}

	if !a.session.Loaded() {
		return "onboarding", "", onboarding
	}

	cmd := command.Classify(input)
	switch cmd.Kind {
	case command.KindBack:
		return "back", "", a.back(ctx)
	case command.KindDescribeImages:
		return "describe_images", "", a.describeImages(ctx)
	case command.KindSummarize:
		return "summarize", "", a.summarize(ctx)
	case command.KindSection:
		return "section", cmd.Target, a.section(ctx, cmd.Target)
	case command.KindNavigation:
		return "click", cmd.Target, a.click(ctx, cmd.Target)
	default:
		return a.classifyWithLLM(ctx, cmd.Raw)
	}
}

func (a *Assistant) navigate(ctx context.Context, url string) string {
	if err := a.session.Navigate(ctx, url); err != nil {
		a.logger.Warn("assist: navigation failed", "url", url, "error", err)
		return fmt.Sprintf("I couldn't access that website: %v. Maybe double-check the address?", err)
	}
	return a.describePage(ctx)
}

func (a *Assistant) back(ctx context.Context) string {
	err := a.session.Back(ctx)
	if errors.Is(err, session.ErrNoHistory) {
		return "This is actually the first page we've visited. Would you like to explore something here instead?"
	}
	if err != nil {
		a.logger.Warn("assist: back failed", "error", err)
		return "I couldn't go back to the previous page. What would you like to explore here instead?"
	}
	return a.describePage(ctx)
}

func (a *Assistant) click(ctx context.Context, target string) string {
	err := a.session.Click(ctx, target)
	if errors.Is(err, session.ErrElementNotFound) {
		if len(a.session.Page().Links) == 0 {
			return "I don't see any links we can click on this page. Is there something specific you're looking for?"
		}
		return fmt.Sprintf("I couldn't find a link matching %q. Could you try describing what you're looking for differently?", target)
	}
	if err != nil {
		a.logger.Warn("assist: click failed", "target", target, "error", err)
		return fmt.Sprintf("Something went wrong while opening %q. Would you like to try something else?", target)
	}
	return a.describePage(ctx)
}

func (a *Assistant) section(ctx context.Context, name string) string {
	res, err := a.session.Section(ctx, name)
	if err != nil {
		titles := a.session.Page().Sections.Titles()
		if len(titles) == 0 {
			return "I don't see any specific sections on this page. What would you like to know about the content I can see?"
		}
		return fmt.Sprintf("I can see several sections here: %s. Which one interests you?", strings.Join(titles, ", "))
	}
	if res.Navigated {
		return a.describePage(ctx)
	}

	text := strings.Join(res.Paragraphs, "\n\n")
	if text == "" {
		text = fmt.Sprintf("The %q section doesn't have any text of its own.", res.Title)
	}
	return fmt.Sprintf("Here's the %q section:\n\n%s\n\nWhat would you like to know more about?", res.Title, text)
}

func (a *Assistant) describeImages(ctx context.Context) string {
	// Continue from the previous batch while the page is unchanged.
	if a.imagesURL != a.session.CurrentURL() {
		a.imageCursor = 0
		a.imagesURL = a.session.CurrentURL()
	}

	res, err := a.session.DescribeImages(ctx, a.imageCursor, 0)
	if err != nil {
		return "I couldn't look at the images right now. What else would you like to explore?"
	}
	if res.Total == 0 {
		return "No images found on the current page."
	}
	if len(res.Descriptions) == 0 && res.Remaining == 0 {
		a.imageCursor = 0
		return "No more images available on this page."
	}
	a.imageCursor += session.DefaultImageBatch

	var b strings.Builder
	for _, d := range res.Descriptions {
		text := d.Caption
		if text == "" {
			text = d.Alt
		}
		if text == "" {
			text = "I couldn't generate a description for this one."
		}
		fmt.Fprintf(&b, "Image %d: %s\n", d.Index, text)
	}
	if res.Remaining > 0 {
		fmt.Fprintf(&b, "\nThere are %d more images available. You can ask me to describe more.", res.Remaining)
	}
	return strings.TrimSpace(b.String())
}

func (a *Assistant) summarize(ctx context.Context) string {
	if a.llm != nil {
		md, err := pagemodel.Markdown(a.session.Source(), a.session.CurrentURL())
		if err == nil {
			if summary, err := a.llm.Summarize(ctx, md); err == nil {
				return summary
			}
		}
		a.logger.Warn("assist: summarize via llm failed, using local description")
	}
	return a.localDescription()
}

// classifyWithLLM handles messages the deterministic classifier could not
// place. A broken or unreachable model degrades to local responses.
func (a *Assistant) classifyWithLLM(ctx context.Context, raw string) (kind, target, reply string) {
	if a.llm == nil {
		return "question", "", a.fallbackResponse()
	}

	intent, err := a.llm.ClassifyIntent(ctx, raw, a.session.Page())
	if err != nil {
		// A malformed reply means the model ran but could not commit to
		// an action; treat the message as a general question.
		if errors.Is(err, llm.ErrIntentParse) {
			return "question", "", a.answer(ctx, raw)
		}
		a.logger.Warn("assist: intent classification failed", "error", err)
		return "question", "", a.fallbackResponse()
	}

	switch intent.Action {
	case "navigate":
		return "navigate", intent.Target, a.navigate(ctx, intent.Target)
	case "click":
		return "click", intent.Target, a.click(ctx, intent.Target)
	case "back":
		return "back", "", a.back(ctx)
	case "section":
		return "section", intent.Target, a.section(ctx, intent.Target)
	case "describe_images":
		return "describe_images", "", a.describeImages(ctx)
	case "summarize":
		return "summarize", "", a.summarize(ctx)
	case "question":
		question := intent.Details
		if question == "" {
			question = raw
		}
		return "question", "", a.answer(ctx, question)
	default:
		return "question", "", a.fallbackResponse()
	}
}

func (a *Assistant) answer(ctx context.Context, question string) string {
	if a.llm != nil {
		if reply, err := a.llm.Answer(ctx, question, a.session.Page()); err == nil {
			return reply
		}
		a.logger.Warn("assist: answer via llm failed, using fallback")
	}
	return a.fallbackResponse()
}

// describePage narrates the page the session just landed on. The LLM
// rendition is preferred; when it is unavailable the deterministic
// description keeps the conversation going.
func (a *Assistant) describePage(ctx context.Context) string {
	if a.llm != nil {
		if desc, err := a.llm.Describe(ctx, a.session.Page()); err == nil {
			return desc + "\n\nI can help you explore more - just let me know what interests you most. " +
				"You can ask about specific sections, images, or click on any link you'd like to explore."
		}
		a.logger.Warn("assist: describe via llm failed, using local description")
	}
	return a.localDescription()
}

// localDescription builds a deterministic page description from the model.
func (a *Assistant) localDescription() string {
	page := a.session.Page()
	var b strings.Builder

	title := page.Title
	if title == "" {
		title = a.session.CurrentURL()
	}
	fmt.Fprintf(&b, "You're on %q.", title)

	if headings := page.HeadingTitles(); len(headings) > 0 {
		shown := headings
		suffix := ""
		if len(shown) > 5 {
			shown = shown[:5]
			suffix = ", ..."
		}
		fmt.Fprintf(&b, " The main sections are: %s%s.", strings.Join(shown, ", "), suffix)
	}
	fmt.Fprintf(&b, " There are %d links and %d images on this page.", len(page.Links), len(page.Images))

	if actions := a.availableActions(); len(actions) > 0 {
		fmt.Fprintf(&b, "\n\nYou can:\n")
		for _, action := range actions {
			fmt.Fprintf(&b, "- %s\n", action)
		}
	}
	return strings.TrimSpace(b.String())
}

// availableActions lists what the user can do right now.
func (a *Assistant) availableActions() []string {
	var actions []string
	if a.session.HistoryDepth() > 0 {
		actions = append(actions, "Go back to the previous page")
	}
	page := a.session.Page()
	if page == nil {
		return actions
	}
	if len(page.Images) > 0 {
		actions = append(actions, "Get descriptions of the images on the page")
	}
	if headings := page.HeadingTitles(); len(headings) > 0 {
		actions = append(actions, "Navigate to sections: "+joinFirst(headings, 3))
	}
	if links := page.LinkTexts(); len(links) > 0 {
		actions = append(actions, "Click on links like: "+joinFirst(links, 3))
	}
	return actions
}

func (a *Assistant) fallbackResponse() string {
	return "I'm not quite sure what you'd like to do. We can explore the content here, " +
		"look at images, or navigate to different pages. What interests you?"
}

// joinFirst joins up to n items, appending "..." when more were cut.
func joinFirst(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:n], ", ") + "..."
}

// record writes the handled command to the audit log, when configured.
func (a *Assistant) record(ctx context.Context, msg channels.Message, kind, target string, d time.Duration) {
	if a.events == nil || kind == "" {
		return
	}
	a.events.Record(ctx, observability.NavEvent{
		Channel:  msg.ChannelName,
		SenderID: msg.SenderID,
		Kind:     kind,
		Target:   target,
		URL:      a.session.CurrentURL(),
		Duration: d,
	})
}
