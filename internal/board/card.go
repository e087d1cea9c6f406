package board

import (
	"time"

	"github.com/ldi/trellis/pkg/models"
)

// Kind is the entity type a card stands for.
type Kind string

const (
	KindTask   Kind = "task"
	KindModule Kind = "module"
)

// Noun is the capitalized entity name used in notifications.
func (k Kind) Noun() string {
	switch k {
	case KindModule:
		return "Module"
	default:
		return "Task"
	}
}

// Card is the board's read-only view of one task or module.
type Card struct {
	ID       string
	Kind     Kind
	Title    string
	Status   models.Status
	Priority models.Priority
	Progress int
	Deadline *time.Time
}

func FromTask(t *models.Task) Card {
	return Card{
		ID:       t.ID,
		Kind:     KindTask,
		Title:    t.Title,
		Status:   t.Status,
		Priority: t.Priority,
		Progress: t.Progress,
		Deadline: parseDate(t.Deadline),
	}
}

func FromModule(m *models.Module) Card {
	return Card{
		ID:       m.ID,
		Kind:     KindModule,
		Title:    m.Name,
		Status:   m.Status,
		Priority: m.Priority,
		Progress: m.Progress,
		Deadline: parseDate(m.Deadline),
	}
}

func FromTasks(tasks []*models.Task) []Card {
	cards := make([]Card, 0, len(tasks))
	for _, t := range tasks {
		cards = append(cards, FromTask(t))
	}
	return cards
}

func FromModules(modules []*models.Module) []Card {
	cards := make([]Card, 0, len(modules))
	for _, m := range modules {
		cards = append(cards, FromModule(m))
	}
	return cards
}

// FindCard returns the card with the given id.
func FindCard(cards []Card, id string) (Card, bool) {
	for _, c := range cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

func parseDate(value *string) *time.Time {
	if value == nil {
		return nil
	}
	t, err := time.Parse(DateLayout, *value)
	if err != nil {
		return nil
	}
	return &t
}

// DateLayout is the wire format of deadlines and completion dates.
const DateLayout = "2006-01-02"
