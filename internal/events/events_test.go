package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DeliversByType(t *testing.T) {
	d := NewDispatcher()
	var opened []Section
	var actions int

	Subscribe(d, func(e OpenAddForm) { opened = append(opened, e.Section) })
	Subscribe(d, func(AdminAction) { actions++ })

	n := Publish(d, OpenAddForm{Section: SectionProjects})

	assert.Equal(t, 1, n)
	assert.Equal(t, []Section{SectionProjects}, opened)
	assert.Equal(t, 0, actions)
}

func TestPublish_NoSubscribers(t *testing.T) {
	assert.Equal(t, 0, Publish(NewDispatcher(), OpenAddForm{Section: SectionTeam}))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	unsubscribe := Subscribe(d, func(OpenAddForm) { calls++ })
	Subscribe(d, func(OpenAddForm) { calls += 10 })

	Publish(d, OpenAddForm{})
	unsubscribe()
	Publish(d, OpenAddForm{})

	assert.Equal(t, 21, calls)
}

func TestForwardAdminActions(t *testing.T) {
	d := NewDispatcher()
	ForwardAdminActions(d)
	var opened []Section
	Subscribe(d, func(e OpenAddForm) { opened = append(opened, e.Section) })

	Publish(d, AdminAction{Section: SectionEvents, Intent: IntentAdd})
	Publish(d, AdminAction{Section: SectionEvents, Intent: "view"})
	Publish(d, AdminAction{Section: SectionOverview, Intent: IntentAdd})

	assert.Equal(t, []Section{SectionEvents}, opened)
}

func TestParseSection(t *testing.T) {
	assert.Equal(t, SectionTeam, ParseSection("team"))
	assert.Equal(t, SectionEvents, ParseSection("events"))
	assert.Equal(t, SectionOverview, ParseSection(""))
	assert.Equal(t, SectionOverview, ParseSection("settings"))
}
