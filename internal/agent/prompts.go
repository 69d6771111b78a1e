// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/browser/dom"
)

// maxPromptHistory caps how many history records are replayed to the oracle.
const maxPromptHistory = 20

// historyJSON sorts map keys so identical history renders identical prompts.
var historyJSON = json.ConfigCompatibleWithStandardLibrary

const systemPrompt = `You are a browser-driving agent. You are given a goal, a compact text
rendering of the current web page, and the history of your previous steps.
Choose exactly ONE next action.

Page format: one line per element, indented two spaces per depth, shaped as
"<tag attr=value ...> text". Interactive elements are marked aid=aid-N so you
can tell them apart while reading. An aid is not a locator: never send it in
params. Target elements with the locator keys below, copying the data-testid,
label, placeholder or text shown in the page. When the page shows notifications
they appear first between "` + dom.AlertHeader + `" and "` + dom.AlertSeparator + `".

Actions:
- goto: open a URL. params: url (absolute or relative to the current page).
- click: click an element. params: one locator.
- fill: replace the value of a form field. params: one locator, value.
- type: append keystrokes to a field. params: one locator, value.
- press: press a key such as Enter, Tab or Escape. params: key, optional locator.
- wait: pause. params: timeout in milliseconds (default 1000).
- wait_for_load: wait for the page to finish loading. params: optional timeout.
- finish: the goal is reached or cannot be reached. params: reason.

Locators, tried in this order when several are given:
- data-testid: the value of the element's data-testid attribute.
- label: the visible text of the field's label.
- placeholder: the field's placeholder.
- role + name_text: an ARIA role (button, link, textbox, ...) and the accessible name.
- text: visible text of the element; the first match wins.
- selector: a CSS selector or an XPath expression.
Prefer data-testid and label. Only use text that appears in the page rendering.

If a previous step failed, its error_code explains why:
- AMBIGUOUS_OR_MISSING_TARGET: nothing or more than one element matched. Use a more specific locator.
- NO_LOCATOR_SPECIFIED / MISSING_REQUIRED_PARAM: add the missing parameter.
- NAVIGATION_TIMEOUT / INTERACTION_TIMEOUT: the page was slow. Consider wait_for_load.
- UNSUPPORTED_VERB: use one of the actions above.

Respond with a single JSON object and nothing else:
{"thought": "<short reasoning>", "action": {"name": "<action>", "params": {...}}}`

// buildUserPrompt renders the goal, the (already truncated) observation and
// the most recent history records.
func buildUserPrompt(goal, observation string, history []schemas.HistoryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal:\n%s\n\n", strings.TrimSpace(goal))
	fmt.Fprintf(&b, "Current page:\n%s\n\n", observation)

	if len(history) > maxPromptHistory {
		fmt.Fprintf(&b, "History (last %d of %d steps):\n", maxPromptHistory, len(history))
		history = history[len(history)-maxPromptHistory:]
	} else {
		b.WriteString("History:\n")
	}
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, rec := range history {
		line, err := historyJSON.Marshal(rec)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteString("\nWhat is the next action? Respond with JSON only.")
	return b.String()
}
