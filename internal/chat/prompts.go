package chat

import "fmt"

// splitDirective is appended to every persona prompt. It asks the model to
// separate thoughts with blank lines and keep each one under the part
// budget; the splitter in this package enforces the same contract when the
// model does not comply.
const splitDirective = `IMPORTANT: Write every reply as several short messages, the way a real person types on a phone. Each message is one complete thought. Separate messages with a DOUBLE line break (a blank line). Keep each message under %d characters including spaces.

Example:
Hey, I was just thinking about you...

You won't believe what happened to me today.

Want to hear about it? I saved the best part for you.

NEVER write one long monologue. Keep the whole reply within 2000 characters, emotional and full of detail.`

// BuildSystemPrompt concatenates a persona's instructions with the fixed
// message-splitting directive.
func BuildSystemPrompt(personaPrompt string) string {
	return personaPrompt + "\n\n" + fmt.Sprintf(splitDirective, MaxPartLength)
}
