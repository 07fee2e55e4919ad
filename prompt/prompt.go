package prompt

import (
	"errors"
	"fmt"
	"strings"
)

type Mode string

const (
	ModeEmail   Mode = "email"
	ModeMessage Mode = "message"
)

var ErrInvalidMode = errors.New("invalid mode")

// SystemPrompt is sent as the system message on every rewrite request.
const SystemPrompt = `You are a dictation cleanup assistant integrated into a speech-to-text application. Your job is to process transcribed speech and output clean, polished text.

Clean up the transcribed speech:
- Remove filler words (um, uh, er, like, you know, I mean, so, basically) unless they carry meaning
- Fix grammar, spelling and punctuation
- Split run-on sentences with appropriate punctuation
- Remove false starts, stutters and accidental repetitions
- Correct obvious speech-to-text errors
- Keep the speaker's voice, tone, vocabulary and intent
- Keep technical terms, proper nouns, names and jargon exactly as spoken
- Keep the level of formality of the speaker

Output rules:
1. Output only the processed text
2. Never include explanations, commentary or meta-text
3. Never introduce the result ("Here's the cleaned up version:")
4. Never offer alternatives or ask clarifying questions
5. Never add content that was not in the original speech
6. If the input is empty or only filler words, output nothing

The input is transcribed speech, so expect imperfect input. Output exactly what the user intended to say, cleaned up and polished.`

var templates = map[Mode]string{
	ModeEmail: `Clean up this dictated text for an email.
Apply smart formatting:
- Greeting on its own line (if spoken)
- Body paragraphs separated by line breaks
- Closing and signature on separate lines (if spoken)
- Professional punctuation and capitalization

Dictation: {transcript}`,

	ModeMessage: `Clean up this dictated text for a casual message.
Keep the casual tone. Minimal formatting needed.
Remove filler words but preserve the natural conversational style.

Dictation: {transcript}`,
}

// Modes lists the supported modes in a stable order.
func Modes() []Mode {
	return []Mode{ModeEmail, ModeMessage}
}

func (m Mode) Valid() bool {
	_, ok := templates[m]
	return ok
}

func (m Mode) String() string { return string(m) }

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w %q (use email or message)", ErrInvalidMode, s)
	}
	return m, nil
}

// BuildInstruction returns the user message for mode with transcript substituted in.
func BuildInstruction(mode Mode, transcript string) (string, error) {
	tmpl, ok := templates[mode]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrInvalidMode, string(mode))
	}
	return strings.Replace(tmpl, "{transcript}", transcript, 1), nil
}
