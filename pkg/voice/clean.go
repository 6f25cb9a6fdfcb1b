package voice

import "strings"

var emoticons = []string{"(◕‿◕✿)", "(｡♥‿♥｡)", ">///<", "♡", "✨"}

var textCleaner = func() *strings.Replacer {
	pairs := make([]string, 0, len(emoticons)*2+2)
	for _, e := range emoticons {
		pairs = append(pairs, e, "")
	}
	return strings.NewReplacer(append(pairs, "~", "")...)
}()

// CleanText removes kaomoji and decorations that TTS engines would read
// literally, and collapses whitespace.
func CleanText(text string) string {
	return strings.Join(strings.Fields(textCleaner.Replace(text)), " ")
}
