// Package services – summarization prompts
//
// This file holds the localized system/user prompt pairs handed to the model
// gateway. Prompt text is versioned together with the output schema: changing
// either means minting a new prompt version so stored raw_json rows remain
// interpretable.
package services

import (
	"fmt"

	"golang.org/x/text/language"
)

// Localized system prompts for the v1 summarization schema.
const (
	systemPromptEN = "You are a meeting/conversation summarizer. Analyze the transcript and extract structured information. Respond ONLY by calling the provided tool."
	systemPromptNL = "Je bent een gespreks-samenvatter. Analyseer het transcript en haal gestructureerde informatie eruit. Antwoord ALLEEN door de beschikbare tool te gebruiken."
)

// summaryPrompts selects the system/user prompt pair for a session language
// tag. Any tag whose base language is Dutch gets the Dutch pair; everything
// else, including unparseable or empty tags, falls back to English.
func summaryPrompts(langTag, sessionTitle, transcript string) (system, user string) {
	if isDutch(langTag) {
		return systemPromptNL,
			fmt.Sprintf("Vat dit transcript samen van sessie %q:\n\n%s", sessionTitle, transcript)
	}
	return systemPromptEN,
		fmt.Sprintf("Summarize this transcript from session %q:\n\n%s", sessionTitle, transcript)
}

// isDutch reports whether the BCP 47 tag resolves to Dutch (nl, nl-NL,
// nl-BE, ...).
func isDutch(tag string) bool {
	t, err := language.Parse(tag)
	if err != nil {
		return false
	}
	base, _ := t.Base()
	return base.String() == "nl"
}
