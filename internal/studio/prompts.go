package studio

import "strings"

// ConsistencyPreamble is prepended to edit instructions when the subject's
// identity must be preserved.
const ConsistencyPreamble = "CRITICAL INSTRUCTION: Edit the image based on the following request. " +
	"It is absolutely essential that you DO NOT change the person's face or identity. " +
	"Preserve the facial features and unique characteristics of the subject perfectly. " +
	"Now, here is the request: "

// BackgroundRemovalPrompt is the fixed instruction for background removal.
const BackgroundRemovalPrompt = "Remove the background from this image. " +
	"Keep the main subject exactly as it is, with clean edges, and make everything else fully transparent. " +
	"Return the result as a PNG image with an alpha channel."

// RefusalMessage is shown when the model answers without an image or text.
const RefusalMessage = "The model did not return an image. It might have refused the request. Please try a different prompt."

// ExamplePrompts are suggestions offered next to the prompt field.
var ExamplePrompts = []string{
	"Add sunglasses to the person.",
	"Change the background to a futuristic city.",
	"Make the shirt a vibrant red color.",
	"Give the person a pirate hat.",
	"Apply a vintage, black and white photo style.",
	"Surround them with floating magical orbs.",
}

// BuildEditPrompt returns the instruction sent for an edit request.
func BuildEditPrompt(prompt string, maintainConsistency bool) string {
	if maintainConsistency {
		return ConsistencyPreamble + prompt
	}
	return prompt
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
