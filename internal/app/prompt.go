package app

import (
	"fmt"
	"strings"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/secondary"
)

// systemPrompt assembles the agent's standing instructions: persona,
// operator guidelines, the tools it may call, and the turn protocol.
func systemPrompt(agent models.Agent, f *flow.Flow) string {
	var b strings.Builder

	if agent.Persona != "" {
		b.WriteString(agent.Persona)
		b.WriteString("\n\n")
	}
	if agent.Instructions != "" {
		b.WriteString(agent.Instructions)
		b.WriteString("\n\n")
	}

	b.WriteString("You are handling a mail conversation. ")
	fmt.Fprintf(&b, "You have executed %d of at most %d reasoning rounds; ", f.Round, f.MaxRounds)
	b.WriteString("when the cap is reached the conversation is closed with whatever you have.\n\n")

	if len(agent.Tools) > 0 {
		b.WriteString("Available tools: ")
		b.WriteString(strings.Join(agent.Tools, ", "))
		b.WriteString(". Call at most one tool per round.\n\n")
	}

	b.WriteString(`Respond with a single JSON object:
{
  "decision": "COMPLETE" | "WAIT_FOR_USER" | "WAIT_FOR_AGENT" | "CONTINUE",
  "reply": "text to send, when the decision produces mail",
  "tool": "tool name, only with CONTINUE",
  "tool_args": { ... },
  "target_agent": "agent username, only with WAIT_FOR_AGENT",
  "subject": "subject line for a delegation request"
}
COMPLETE sends the reply and closes the conversation.
WAIT_FOR_USER sends the reply as a question and suspends until the user answers.
WAIT_FOR_AGENT sends the reply to target_agent as a request and suspends until that agent answers.
CONTINUE runs the named tool and reasons again on its result.`)

	return b.String()
}

// conversationMessages renders the flow's trigger and history into the
// chat context for the next reasoning step. The latest pending input is
// appended last.
func conversationMessages(f *flow.Flow, pendingFrom, pendingInput string) []secondary.ChatMessage {
	msgs := make([]secondary.ChatMessage, 0, 2*len(f.History)+1)

	msgs = append(msgs, secondary.ChatMessage{
		Role:    secondary.RoleUser,
		Content: renderInput(string(f.TriggerKind), f.Trigger.From, f.Trigger.Subject, f.Trigger.Body),
	})

	for _, rec := range f.History {
		// Round 0 is fed by the trigger, already rendered above.
		if rec.Index > 0 && rec.Input != "" {
			msgs = append(msgs, secondary.ChatMessage{
				Role:    secondary.RoleUser,
				Content: renderInput(string(rec.InputKind), rec.From, "", rec.Input),
			})
		}
		for _, tc := range rec.ToolCalls {
			msgs = append(msgs, secondary.ChatMessage{
				Role:    secondary.RoleAssistant,
				Content: fmt.Sprintf("[tool call] %s", tc.Name),
			})
			msgs = append(msgs, secondary.ChatMessage{
				Role:    secondary.RoleTool,
				Content: renderToolResult(tc),
			})
		}
		if rec.Reply != "" {
			msgs = append(msgs, secondary.ChatMessage{
				Role:    secondary.RoleAssistant,
				Content: rec.Reply,
			})
		}
	}

	if pendingInput != "" {
		msgs = append(msgs, secondary.ChatMessage{
			Role:    secondary.RoleUser,
			Content: renderInput("", pendingFrom, "", pendingInput),
		})
	}

	return msgs
}

func renderInput(kind, from, subject, body string) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\n", from)
	}
	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", subject)
	}
	if kind == string(flow.TriggerAgent) {
		b.WriteString("(message from another agent)\n")
	}
	b.WriteString(body)
	return b.String()
}

func renderToolResult(tc flow.ToolCall) string {
	if !tc.Success {
		return fmt.Sprintf("tool %s failed: %s", tc.Name, tc.Error)
	}
	if tc.Summary != "" {
		return fmt.Sprintf("tool %s: %s", tc.Name, tc.Summary)
	}
	return fmt.Sprintf("tool %s succeeded", tc.Name)
}
