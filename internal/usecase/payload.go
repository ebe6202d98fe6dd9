package usecase

import (
	"strconv"
	"strings"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

// Templates are the notification texts. Task texts interpolate {content};
// inbox texts interpolate {count} and {items}.
type Templates struct {
	TaskTitle  string
	TaskBody   string
	InboxTitle string
	InboxBody  string
	TestTitle  string
	TestBody   string
	Icon       string
}

func DefaultTemplates() Templates {
	return Templates{
		TaskTitle:  "Task reminder ⏰",
		TaskBody:   `Don't forget: "{content}"`,
		InboxTitle: "Inbox cleanup 🧹",
		InboxBody:  "You have {count} {items} waiting for action.",
		TestTitle:  "Test notification",
		TestBody:   "This is a test message from the server!",
		Icon:       "/icon.svg",
	}
}

// withDefaults fills empty fields from DefaultTemplates.
func (t Templates) withDefaults() Templates {
	d := DefaultTemplates()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.TaskTitle, d.TaskTitle)
	fill(&t.TaskBody, d.TaskBody)
	fill(&t.InboxTitle, d.InboxTitle)
	fill(&t.InboxBody, d.InboxBody)
	fill(&t.TestTitle, d.TestTitle)
	fill(&t.TestBody, d.TestBody)
	return t
}

// ForCandidate builds the payload for a task or an inbox aggregate.
func (t Templates) ForCandidate(c domain.Candidate) domain.Payload {
	if c.IsAggregate() {
		count := len(c.Items)
		noun := "items"
		if count == 1 {
			noun = "item"
		}
		r := strings.NewReplacer("{count}", strconv.Itoa(count), "{items}", noun)
		return domain.Payload{
			Title: r.Replace(t.InboxTitle),
			Body:  r.Replace(t.InboxBody),
			Icon:  t.Icon,
		}
	}

	var content string
	if len(c.Items) > 0 {
		content = c.Items[0].Content
	}
	r := strings.NewReplacer("{content}", content)
	return domain.Payload{
		Title: r.Replace(t.TaskTitle),
		Body:  r.Replace(t.TaskBody),
		Icon:  t.Icon,
	}
}

func (t Templates) Test() domain.Payload {
	return domain.Payload{Title: t.TestTitle, Body: t.TestBody, Icon: t.Icon}
}
