// Package voice speaks the companion's lines.
//
// An Output turns text into audio with a tts.Provider and plays it through an
// audioio.Sink, one utterance at a time. Speak can block until playback ends
// or return immediately; Stop drops utterances that have not started and
// interrupts the current one at the next audio buffer.
//
// # Usage
//
//	provider, _ := tts.NewEspeak()
//	sink, _ := audioio.NewSink(audioio.DefaultConfig(), nil, logger)
//	out, err := voice.New(provider, sink, voice.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer out.Close()
//
//	out.Speak(ctx, "Hello Master~ ♡", true)
//
// # Text cleaning
//
// Kaomoji and decorations such as "(◕‿◕✿)", "♡" and "~" are removed before
// synthesis because TTS engines read them out literally. See CleanText.
//
// # Lip sync
//
// Level reports the RMS level of the buffer being played, suitable for
// driving an avatar's mouth.
package voice
