package companion

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-mimi/pkg/change"
	"github.com/teslashibe/go-mimi/pkg/understanding"
)

var idleTopics = []string{
	"Master, what are you working on? I'm curious! (◕‿◕✿)",
	"Nya~! Do you want to take a break? I can search for some funny videos if you want!",
	"Ehehe~ I'm watching everything you do! Not in a creepy way though... >///<",
	"Hey Master! How are you feeling today? ♡",
	"I've been thinking... do you have any fun plans later? ✨",
	"Ooh! Should we listen to some music? I can open Spotify for you~",
	"Master-san, you've been staring at the screen for a while! Want me to find something fun?",
	"Random question: What's your favorite color? Mine is pink! 🌸",
	"Are you hungry? Maybe I should remind you to eat~ You need to stay healthy! ♡",
	"I wonder what the weather is like outside... Should we check?",
}

func greeting(name string) string {
	return fmt.Sprintf("Hi Master! I'm %s! I'm watching your screen and ready to chat! What would you like to do? ♡", name)
}

const farewell = "Thanks for spending time with me! Bye bye~! ♡"

// screenQuestions returns the question templates filled from a.
func screenQuestions(a *understanding.ScreenAnalysis) []string {
	return []string{
		fmt.Sprintf("I see %s. What are you looking for, Master?", a.SceneLabel),
		fmt.Sprintf("Ooh! I notice %d things on screen. What are you doing? ♡", len(a.Objects)),
		"Master, I see you're looking at something interesting~ Want me to help with anything?",
		fmt.Sprintf("Nya~! I can see %s. Need help clicking something?", strings.Join(firstLabels(a, 3), ", ")),
	}
}

// firstLabels returns the distinct labels among the first n objects.
func firstLabels(a *understanding.ScreenAnalysis, n int) []string {
	seen := make(map[string]bool)
	var out []string
	for i, o := range a.Objects {
		if i >= n {
			break
		}
		if !seen[o.Label] {
			seen[o.Label] = true
			out = append(out, o.Label)
		}
	}
	return out
}

// changePrompt describes a screen change as the task for the generator.
func changePrompt(res change.Result) string {
	if res.Bootstrap {
		return "Look at the screen and react to what the user is doing."
	}

	var b strings.Builder
	b.WriteString("Something changed on screen. React to it.")
	if res.SceneChanged {
		b.WriteString(" The scene changed.")
	}
	if len(res.Added) > 0 {
		b.WriteString(" New: " + keyLabels(res.Added) + ".")
	}
	if len(res.Removed) > 0 {
		b.WriteString(" Gone: " + keyLabels(res.Removed) + ".")
	}
	return b.String()
}

func keyLabels(keys []change.Key) string {
	seen := make(map[string]bool, len(keys))
	var labels []string
	for _, k := range keys {
		if !seen[k.Label] {
			seen[k.Label] = true
			labels = append(labels, k.Label)
		}
	}
	return strings.Join(labels, ", ")
}

// screenContext is the one-line screen description given to chat replies.
func screenContext(a *understanding.ScreenAnalysis) string {
	if a == nil {
		return "Screen information not available."
	}
	return fmt.Sprintf("Screen shows: %s. %d objects.", a.SceneLabel, len(a.Objects))
}
