package companion

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-mimi/pkg/automation"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/publish"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/transcript"
	"github.com/teslashibe/go-mimi/pkg/understanding"
	"github.com/teslashibe/go-mimi/pkg/voice"
)

// handle is the scheduler worker. It runs one task at a time.
func (c *Companion) handle(ctx context.Context, t *reaction.Task) error {
	switch t.Kind {
	case reaction.KindScreen:
		return c.reactToScreen(ctx, t)
	case reaction.KindComment:
		return c.comment(ctx, t)
	case reaction.KindChat:
		return c.chat(ctx, t)
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

// reactToScreen re-analyzes the newest frame, since the screen may have
// moved on while the task waited, and answers it.
func (c *Companion) reactToScreen(ctx context.Context, t *reaction.Task) error {
	frame := c.latestFrame()
	if frame == nil {
		c.logger.Debug("no frame yet, skipping reaction", "task", t.ID)
		return nil
	}

	a, err := c.deps.Analyzer.Analyze(ctx, frame)
	if err != nil {
		return fmt.Errorf("re-analyze frame %d: %w", frame.Seq, err)
	}
	c.setAnalysis(a)

	if c.shouldAskQuestion(a) {
		d := decision.Say(c.pick(screenQuestions(a)), decision.EmotionHappy)
		c.deliver(ctx, t, "question", d, a)
		return nil
	}

	var d *decision.Decision
	switch c.config.Style {
	case StyleReaction:
		history := c.deps.Transcript.History(c.config.ReactionHistory)
		text, err := c.deps.Generator.React(ctx, a.Summary, history)
		if err != nil {
			return err
		}
		if text == "" {
			return nil
		}
		d = decision.Say(text, decision.EmotionHappy)
	default:
		d, err = c.deps.Generator.Generate(ctx, a.Summary, t.Prompt)
		if err != nil {
			return err
		}
	}
	c.deliver(ctx, t, string(t.Kind), d, a)
	return nil
}

// comment speaks the task prompt, or a random idle topic when empty.
func (c *Companion) comment(ctx context.Context, t *reaction.Task) error {
	text := t.Prompt
	if text == "" {
		text = c.pick(idleTopics)
	}
	c.deliver(ctx, t, string(t.Kind), decision.Say(text, decision.EmotionHappy), nil)
	return nil
}

// chat answers a user message, carrying out direct commands first.
func (c *Companion) chat(ctx context.Context, t *reaction.Task) error {
	message := t.Prompt
	history := c.deps.Transcript.History(c.config.ChatHistory)
	c.appendEntry(transcript.Entry{
		Speaker: transcript.SpeakerUser,
		Kind:    string(t.Kind),
		Text:    message,
		TaskID:  t.ID,
	})

	a := c.Analysis()
	d, err := c.runCommand(ctx, decision.ParseCommand(message), a)
	if err != nil {
		return err
	}
	if d == nil {
		reply, err := c.deps.Generator.Chat(ctx, screenContext(a), message, history)
		if err != nil {
			return err
		}
		d = decision.Say(reply, decision.EmotionHappy)
	}
	c.deliver(ctx, t, string(t.Kind), d, a)
	return nil
}

// runCommand executes a recognized chat command and returns the line to
// say. It returns nil for ordinary conversation.
func (c *Companion) runCommand(ctx context.Context, cmd decision.Command, a *understanding.ScreenAnalysis) (*decision.Decision, error) {
	failed := func(format string, args ...any) *decision.Decision {
		return decision.Say(fmt.Sprintf(format, args...), decision.EmotionConfused)
	}

	switch cmd.Kind {
	case decision.CommandOpenYouTube:
		if c.deps.Launcher == nil || c.deps.Launcher.OpenYouTube(ctx) != nil {
			return failed("Hmm, I couldn't open YouTube... >///<"), nil
		}
		return decision.Say("Opening YouTube for you, Master! ✨", decision.EmotionExcited), nil

	case decision.CommandSearchYouTube:
		if c.deps.Launcher == nil || c.deps.Launcher.SearchYouTube(ctx, cmd.Arg) != nil {
			return failed("Hmm, I couldn't search YouTube for '%s'... >///<", cmd.Arg), nil
		}
		return decision.Say(fmt.Sprintf("Searching YouTube for '%s'! Let me find that~ ♡", cmd.Arg), decision.EmotionExcited), nil

	case decision.CommandOpenApp:
		if c.deps.Launcher == nil {
			return failed("Hmm, I don't know how to open %s... >///<", cmd.Arg), nil
		}
		if err := c.deps.Launcher.OpenApp(ctx, cmd.Arg); err != nil {
			c.logger.Info("open app failed", "app", cmd.Arg, "error", err)
			return failed("Hmm, I don't know how to open %s... >///<", cmd.Arg), nil
		}
		return decision.Say(fmt.Sprintf("Opening %s! Nya~", cmd.Arg), decision.EmotionHappy), nil

	case decision.CommandClick:
		if c.deps.Actions == nil || a == nil {
			return failed("I can't find %s on screen... Sorry! >///<", cmd.Arg), nil
		}
		if _, err := c.deps.Actions.ClickObject(ctx, a, cmd.Arg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Info("click failed", "target", cmd.Arg, "error", err)
			return failed("I can't find %s on screen... Sorry! >///<", cmd.Arg), nil
		}
		return decision.Say(fmt.Sprintf("Clicking on %s! Done~ ♡", cmd.Arg), decision.EmotionProud), nil

	case decision.CommandType:
		if c.deps.Actions == nil {
			return failed("I can't type right now... >///<"), nil
		}
		_, err := c.deps.Actions.Execute(ctx, &decision.Decision{Action: decision.ActionType, KeyboardInput: cmd.Arg})
		switch {
		case errors.Is(err, automation.ErrUnsafeInput):
			return decision.Say("That looks dangerous, so I won't type it! >///<", decision.EmotionWorried), nil
		case errors.Is(err, automation.ErrCancelled):
			return failed("Okay, I won't type that~"), nil
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("typing failed", "error", err)
			return failed("I couldn't type that... Sorry! >///<"), nil
		}
		return decision.Say("Typing that for you! ✨", decision.EmotionHappy), nil
	}
	return nil, nil
}

// deliver records, publishes and speaks a reply, then performs its action.
// Voice and action failures are logged; they never fail the task.
func (c *Companion) deliver(ctx context.Context, t *reaction.Task, kind string, d *decision.Decision, a *understanding.ScreenAnalysis) {
	t.SetResult(d)
	c.record(ctx, kind, t.ID, d, a)
	c.speak(ctx, d.Speech)

	if !d.HasAction() || c.deps.Actions == nil {
		return
	}
	res, err := c.deps.Actions.Execute(ctx, d)
	switch {
	case errors.Is(err, automation.ErrCancelled):
		c.logger.Info("action declined", "action", d.Action, "target", d.Target)
	case err != nil:
		c.logger.Warn("action failed", "action", d.Action, "target", d.Target, "error", err)
	case res.Performed:
		c.logger.Info("action performed", "action", res.Action, "target", res.Target)
	}
}

// record stores d as the latest reply, appends it to the transcript and
// publishes it.
func (c *Companion) record(ctx context.Context, kind, taskID string, d *decision.Decision, a *understanding.ScreenAnalysis) {
	scene := ""
	if a != nil {
		scene = a.SceneLabel
	}

	c.mu.Lock()
	c.lastDecision = d
	c.lastSpeech = d.Speech
	c.responses++
	c.mu.Unlock()

	c.logger.Info("reaction",
		"kind", kind,
		"speech", d.Speech,
		"emotion", d.Emotion,
		"action", d.Action)

	c.appendEntry(transcript.Entry{
		Speaker: transcript.SpeakerCompanion,
		Name:    c.config.Name,
		Kind:    kind,
		Text:    d.Speech,
		Emotion: string(d.Emotion),
		Action:  string(d.Action),
		Target:  d.Target,
		Scene:   scene,
		TaskID:  taskID,
	})

	if c.deps.Publisher != nil {
		err := c.deps.Publisher.PublishReaction(publish.Reaction{
			TaskID:      taskID,
			Kind:        kind,
			Speech:      d.Speech,
			Reasoning:   d.Reasoning,
			Emotion:     string(d.Emotion),
			Action:      string(d.Action),
			Target:      d.Target,
			Coordinates: d.Coordinates,
			Scene:       scene,
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Debug("reaction not published", "error", err)
		}
	}
	c.notify()
}

func (c *Companion) appendEntry(e transcript.Entry) {
	if err := c.deps.Transcript.Append(e); err != nil {
		c.logger.Warn("transcript append failed", "error", err)
	}
	c.obsMu.RLock()
	fns := c.onEntry
	c.obsMu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}

// speak says text and waits for it to finish. An utterance that has not
// started by the task deadline is skipped; one that has started is played
// to the end even if the deadline passes meanwhile. StopSpeaking still
// interrupts it.
func (c *Companion) speak(ctx context.Context, text string) {
	if !c.voiceEnabled() {
		return
	}
	if err := ctx.Err(); err != nil {
		c.logger.Info("reply not spoken, task out of time", "error", err)
		return
	}
	err := c.deps.Voice.Speak(context.WithoutCancel(ctx), text, true)
	switch {
	case err == nil:
	case errors.Is(err, voice.ErrInterrupted):
		c.logger.Debug("speech interrupted")
	default:
		c.logger.Warn("speech failed", "error", err)
	}
}
