package dispatch

import (
	"context"
	"sort"

	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// historyTailLimit bounds how many prior conversation entries feed into a
// single dispatch's message history (spec §4.4 step 1: "last-N log
// entries").
const historyTailLimit = 50

// buildMessages assembles the provider-facing message list: a system
// message (session context + registered ContextProviders, highest
// priority first) followed by the session's conversation history mapped
// onto provider roles, and finally the current user message.
func (d *Dispatcher) buildMessages(ctx context.Context, session, message string) ([]providers.Message, error) {
	sess, ok := d.sessions.Get(session)
	if !ok {
		sess = &store.Session{Name: session}
	}

	system := sess.Context
	if extra := d.assembleContextProviders(ctx, session); extra != "" {
		if system != "" {
			system += "\n\n" + extra
		} else {
			system = extra
		}
	}

	entries, err := d.sessions.ReadLog(session, historyTailLimit)
	if err != nil {
		return nil, err
	}

	messages := make([]providers.Message, 0, len(entries)+2)
	if system != "" {
		messages = append(messages, providers.Message{Role: "system", Content: system})
	}
	for _, e := range entries {
		role := "user"
		if e.Type == store.EntryResponse {
			role = "assistant"
		}
		if e.Type != store.EntryMessage && e.Type != store.EntryResponse {
			continue
		}
		messages = append(messages, providers.Message{Role: role, Content: e.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: message})

	return messages, nil
}

// assembleContextProviders runs every registered ContextProvider and
// concatenates their non-empty outputs in descending priority order.
func (d *Dispatcher) assembleContextProviders(ctx context.Context, session string) string {
	if len(d.contextProviders) == 0 {
		return ""
	}

	type contribution struct {
		text     string
		priority int
	}
	contributions := make([]contribution, 0, len(d.contextProviders))
	for _, p := range d.contextProviders {
		text, priority := p(ctx, session)
		if text == "" {
			continue
		}
		contributions = append(contributions, contribution{text: text, priority: priority})
	}
	sort.SliceStable(contributions, func(i, j int) bool { return contributions[i].priority > contributions[j].priority })

	out := ""
	for _, c := range contributions {
		if out != "" {
			out += "\n\n"
		}
		out += c.text
	}
	return out
}
