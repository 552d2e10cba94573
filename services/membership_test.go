package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
)

func TestJoin_CapacityIsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// The organizer takes one of the four spots.
	event := f.createEvent(t, f.organizer, 4)

	for i := 0; i < 3; i++ {
		_, err := f.memberships.Join(ctx, f.member(t), event.ID, "")
		require.NoError(t, err)
	}

	_, err := f.memberships.Join(ctx, f.member(t), event.ID, "")
	assert.ErrorIs(t, err, ErrEventFull)

	stored, err := f.events.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.MembersCount())
	assert.True(t, stored.IsFull())
	assert.Equal(t, 0, stored.SpotsAvailable())
}

func TestJoin_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 5)
	m := f.member(t)

	joined, err := f.memberships.Join(ctx, m, event.ID, models.MemberPerformer)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.MembersCount())
	assert.Equal(t, models.MemberPerformer, joined.MembersJoined[1].Role)
	assert.Equal(t, testNow, joined.MembersJoined[1].JoinedAt)

	_, err = f.memberships.Join(ctx, m, event.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	stored, _ := f.events.Get(ctx, event.ID)
	assert.Equal(t, 2, stored.MembersCount())
}

func TestJoin_CreatorIsAlreadyOnRoster(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 5)

	_, err := f.memberships.Join(context.Background(), f.organizer, event.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestJoin_DefaultsToParticipant(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 5)

	joined, err := f.memberships.Join(context.Background(), f.member(t), event.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.MemberParticipant, joined.MembersJoined[1].Role)
}

func TestJoin_OrganizerRoleNeedsManageRight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 5)

	_, err := f.memberships.Join(ctx, f.member(t), event.ID, models.MemberOrganizer)
	assert.ErrorIs(t, err, ErrForbidden)

	joined, err := f.memberships.Join(ctx, f.admin, event.ID, models.MemberOrganizer)
	require.NoError(t, err)
	assert.Equal(t, models.MemberOrganizer, joined.MembersJoined[1].Role)
}

func TestJoin_InvalidRole(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 5)

	_, err := f.memberships.Join(context.Background(), f.member(t), event.ID, "drummer")
	assert.True(t, IsValidation(err))
}

func TestJoin_OnlyUpcomingEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 5)

	completed := models.EventCompleted
	_, err := f.events.Update(ctx, f.organizer, event.ID, models.EventPatch{Status: &completed})
	require.NoError(t, err)

	_, err = f.memberships.Join(ctx, f.member(t), event.ID, "")
	assert.ErrorIs(t, err, ErrEventNotJoinable)
}

func TestJoin_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.memberships.Join(context.Background(), f.member(t), primitive.NewObjectID(), "")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.True(t, IsNotFound(err))
}

func TestJoin_HistoricalOverflowIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 3)
	for i := 0; i < 2; i++ {
		_, err := f.memberships.Join(ctx, f.member(t), event.ID, "")
		require.NoError(t, err)
	}

	one := 1
	updated, err := f.events.Update(ctx, f.organizer, event.ID, models.EventPatch{MembersNeeded: &one})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.MembersCount())
	assert.Equal(t, -2, updated.SpotsAvailable())

	_, err = f.memberships.Join(ctx, f.member(t), event.ID, "")
	assert.ErrorIs(t, err, ErrEventFull)
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 5)
	a, b := f.member(t), f.member(t)

	_, err := f.memberships.Join(ctx, a, event.ID, "")
	require.NoError(t, err)
	_, err = f.memberships.Join(ctx, b, event.ID, "")
	require.NoError(t, err)

	left, err := f.memberships.Leave(ctx, a, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, left.MembersCount())
	assert.False(t, left.HasJoined(a.UserID))
	assert.True(t, left.HasJoined(b.UserID))
	assert.Equal(t, left.MembersNeeded, left.SpotsAvailable()+left.MembersCount())

	_, err = f.memberships.Leave(ctx, a, event.ID)
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestLeave_NotJoined(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 5)

	_, err := f.memberships.Leave(context.Background(), f.member(t), event.ID)
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.True(t, IsConflict(err))
}

func TestSpotsInvariantAcrossSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 6)
	users := []models.Actor{f.member(t), f.member(t), f.member(t)}

	steps := []struct {
		join bool
		who  int
	}{{true, 0}, {true, 1}, {false, 0}, {true, 2}, {true, 0}, {false, 1}}

	for _, st := range steps {
		var e *models.Event
		var err error
		if st.join {
			e, err = f.memberships.Join(ctx, users[st.who], event.ID, "")
		} else {
			e, err = f.memberships.Leave(ctx, users[st.who], event.ID)
		}
		require.NoError(t, err)
		assert.Equal(t, e.MembersNeeded, e.SpotsAvailable()+e.MembersCount())
	}
}

func TestJoin_ConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 5)

	const racers = 20
	actors := make([]models.Actor, racers)
	for i := range actors {
		actors[i] = f.member(t)
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.memberships.Join(ctx, actors[i], event.ID, "")
		}(i)
	}
	wg.Wait()

	ok, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrEventFull):
			full++
		}
	}
	assert.Equal(t, 4, ok)
	assert.Equal(t, racers-4, full)

	stored, _ := f.events.Get(ctx, event.ID)
	assert.Equal(t, 5, stored.MembersCount())
}

func TestMembershipScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.member(t), f.member(t)

	event := f.createEvent(t, f.organizer, 2)
	assert.Equal(t, 1, event.MembersCount())
	assert.Equal(t, models.MemberOrganizer, event.MembersJoined[0].Role)

	e, err := f.memberships.Join(ctx, a, event.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, e.MembersCount())
	assert.True(t, e.IsFull())

	_, err = f.memberships.Join(ctx, b, event.ID, "")
	assert.ErrorIs(t, err, ErrEventFull)

	e, err = f.memberships.Leave(ctx, a, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.MembersCount())
	assert.False(t, e.IsFull())

	e, err = f.memberships.Join(ctx, b, event.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, e.MembersCount())
}
