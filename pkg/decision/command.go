package decision

import (
	"strings"
)

// CommandKind is a direct instruction recognized in user chat.
type CommandKind string

const (
	CommandNone          CommandKind = ""
	CommandOpenYouTube   CommandKind = "open_youtube"
	CommandSearchYouTube CommandKind = "search_youtube"
	CommandOpenApp       CommandKind = "open_app"
	CommandClick         CommandKind = "click"
	CommandType          CommandKind = "type"
)

// Command is a parsed user instruction.
type Command struct {
	Kind CommandKind
	Arg  string
}

var searchKeywords = []string{"search youtube for", "find on youtube", "search for", "find"}

// ParseCommand recognizes "open youtube", "search youtube for X",
// "open X", "click X" and "type X". Anything else is CommandNone and
// should be treated as conversation.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	if strings.Contains(lower, "youtube") {
		for _, kw := range searchKeywords {
			if i := strings.Index(lower, kw); i >= 0 && (strings.Contains(lower, "search") || strings.Contains(lower, "find")) {
				if q := strings.TrimSpace(text[i+len(kw):]); q != "" {
					return Command{Kind: CommandSearchYouTube, Arg: q}
				}
			}
		}
		if strings.Contains(lower, "open") || strings.Contains(lower, "go") {
			return Command{Kind: CommandOpenYouTube}
		}
	}

	words := strings.Fields(text)
	for i, w := range words {
		if strings.EqualFold(w, "open") && i+1 < len(words) {
			return Command{Kind: CommandOpenApp, Arg: words[i+1]}
		}
	}

	if i := strings.Index(lower, "click"); i >= 0 {
		rest := strings.TrimSpace(text[i+len("click"):])
		restLower := strings.ToLower(rest)
		for _, prefix := range []string{"on ", "the "} {
			if strings.HasPrefix(restLower, prefix) {
				rest = strings.TrimSpace(rest[len(prefix):])
				restLower = strings.ToLower(rest)
			}
		}
		if rest != "" {
			return Command{Kind: CommandClick, Arg: rest}
		}
	}

	if i := strings.Index(lower, "type"); i >= 0 {
		if rest := strings.TrimSpace(text[i+len("type"):]); rest != "" {
			return Command{Kind: CommandType, Arg: rest}
		}
	}
	return Command{}
}
