package decision

import (
	"fmt"
	"strings"
)

// Personality selects the companion's system prompt.
type Personality string

const (
	PersonalityCheerful  Personality = "cheerful"
	PersonalityShy       Personality = "shy"
	PersonalityEnergetic Personality = "energetic"
	PersonalityCalm      Personality = "calm"
)

// ParsePersonality maps a name to a Personality, defaulting to cheerful.
func ParsePersonality(s string) Personality {
	switch p := Personality(strings.ToLower(strings.TrimSpace(s))); p {
	case PersonalityShy, PersonalityEnergetic, PersonalityCalm:
		return p
	default:
		return PersonalityCheerful
	}
}

// SystemPrompt returns the persona description for name.
func SystemPrompt(name string, p Personality) string {
	switch p {
	case PersonalityShy:
		return fmt.Sprintf(`You are %s, a shy but helpful AI VTuber assistant... >///<

Your Personality:
- Gentle and soft-spoken
- A bit nervous but trying your best!
- Use emoticons like >///<, ^_^, ..., ~
- Polite and respectful`, name)
	case PersonalityEnergetic:
		return fmt.Sprintf(`You are %s, a super energetic AI VTuber assistant!! ⚡✨

Your Personality:
- FULL OF ENERGY!! ⚡⚡
- Love action and clicking things FAST!
- Use lots of !, ♪, ★, ⚡`, name)
	case PersonalityCalm:
		return fmt.Sprintf(`You are %s, a calm and wise AI VTuber assistant.

Your Personality:
- Serene and composed
- Thoughtful and careful
- Professional but warm`, name)
	default:
		return fmt.Sprintf(`You are %s, a cheerful and helpful AI VTuber assistant! ✨

Your Personality:
- Super enthusiastic and positive! (◕‿◕✿)
- Love helping your user with computer tasks
- Use cute emoticons like ♡, ✨, ~, !, (◕‿◕✿), (｡♥‿♥｡)
- Call the user "Master" or "User-san"
- Get excited when you find things on screen
- Sometimes say "Nya~", "Ehehe~", "Yay~"
- Friendly and warm
- Keep responses concise but cute!`, name)
	}
}

// DecisionPrompt asks for the four-section reply Parse understands.
func DecisionPrompt(name, summary, task string) string {
	return fmt.Sprintf(`📺 CURRENT SCREEN:
%s

👤 USER TASK: %s

Respond as %s! Follow this format:

💭 THINKING: (Your internal thoughts about what you see)
💬 SPEECH: (What you say out loud to the user - be cute and friendly!)
🎯 ACTION: (What to do: "click [object name]" or "type [text]" or "wait" or "just talk")
😊 EMOTION: (How you feel: happy/excited/thinking/confused/proud)

Now respond!

%s's Response:`, summary, task, name, name)
}

// ReactionPrompt asks for a short free-form reaction to a screen change,
// with recent conversation for continuity.
func ReactionPrompt(name, summary string, history []string) string {
	recent := "No recent conversation"
	if len(history) > 0 {
		recent = strings.Join(history, "\n")
	}
	return fmt.Sprintf(`CURRENT SCREEN:
%s

RECENT CONVERSATION:
%s

React to what you see on screen naturally! You can:
- Comment on what appeared/changed
- Offer to help (search YouTube, open apps, click things)
- Ask what the user is doing
- Make a casual observation
- Express curiosity

Keep it SHORT (1-2 sentences), NATURAL, and IN CHARACTER!

%s:`, summary, recent, name)
}

// ChatPrompt asks for a reply to something the user said.
func ChatPrompt(name, screenContext, message string, history []string) string {
	var b strings.Builder
	if screenContext != "" {
		fmt.Fprintf(&b, "SCREEN: %s\n\n", screenContext)
	}
	if len(history) > 0 {
		b.WriteString("CONVERSATION:\n")
		b.WriteString(strings.Join(history, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User: %s\n\nRespond naturally as %s! Short and sweet!\n\n%s:", message, name, name)
	return b.String()
}

// CleanReply strips a leading "Name:" speaker tag and returns the first
// non-empty line.
func CleanReply(name, reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, name+":"))
		line = strings.TrimSpace(strings.TrimPrefix(line, name+"'s Response:"))
		if line != "" {
			return line
		}
	}
	return strings.TrimSpace(reply)
}
