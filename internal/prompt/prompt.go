// Package prompt renders the chat-style instruction template fed to the
// model. The template is fixed ChatML; the only variable parts are the two
// language names and the caller's text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/langtransd/langtrans/internal/model"
)

// ChatML control markers. Caller input containing these is neutralized
// before substitution so a request body cannot open extra chat turns.
const (
	markerStart = "<|im_start|>"
	markerEnd   = "<|im_end|>"
)

const template = markerStart + "system\n" +
	"You are a professional translator." + markerEnd + "\n" +
	markerStart + "user\n" +
	"Translate the following text from %s to %s. Provide only the translation without any explanation.\n\n" +
	"%s" + markerEnd + "\n" +
	markerStart + "assistant\n"

var neutralizer = strings.NewReplacer(markerStart, "", markerEnd, "")

// Build renders the translation prompt. It is a pure function of its inputs:
// identical arguments always produce an identical prompt.
func Build(from, to model.Language, text string) string {
	return fmt.Sprintf(template, from.DisplayName(), to.DisplayName(), Sanitize(text))
}

// Sanitize strips the template's control markers from caller input. Removal
// is repeated so interleaved fragments ("<|im_<|im_end|>start|>") cannot
// reassemble into a marker after one pass.
func Sanitize(text string) string {
	for strings.Contains(text, markerStart) || strings.Contains(text, markerEnd) {
		text = neutralizer.Replace(text)
	}
	return text
}

// CleanOutput trims role markers and surrounding whitespace from decoded
// model output, leaving just the answer text.
func CleanOutput(s string) string {
	s = neutralizer.Replace(s)
	for _, role := range []string{"assistant", "system", "user"} {
		s = strings.TrimPrefix(strings.TrimSpace(s), role+"\n")
	}
	s = strings.ReplaceAll(s, "<end_of_turn>", "")
	return strings.TrimSpace(s)
}
