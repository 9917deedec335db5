package room

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunwoo-s/soupgame/internal/models"
	"github.com/hyunwoo-s/soupgame/internal/protocol"
)

var testScenario = models.Scenario{
	Title:    "The Elevator",
	Content:  "A man rides the elevator only partway up every day.",
	Solution: "He is too short to reach the top button.",
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRegistry() *Registry {
	return NewRegistry(testLogger(), Options{
		HintBudget: 2,
		MaxGuesses: 3,
		Draw:       func() models.Scenario { return testScenario },
	})
}

// drain empties a connection's outbound channel without blocking.
func drain(c *protocol.Conn) []protocol.ServerEvent {
	var evs []protocol.ServerEvent
	for {
		select {
		case ev := <-c.Out:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func lastOfType(evs []protocol.ServerEvent, typ string) *protocol.ServerEvent {
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == typ {
			return &evs[i]
		}
	}
	return nil
}

func hasType(evs []protocol.ServerEvent, typ string) bool {
	return lastOfType(evs, typ) != nil
}

// setupRoom creates a registry with one room holding host + n-1 joiners.
// Connection ids are "p0" (host) through "p{n-1}"; nicknames match the ids.
func setupRoom(t *testing.T, n int) (*Registry, *Room, []*protocol.Conn) {
	t.Helper()
	reg := newTestRegistry()

	conns := make([]*protocol.Conn, n)
	conns[0] = protocol.NewConn("p0", 64)
	rm, err := reg.Create(conns[0], protocol.CreateRoomPayload{
		Title:      "soup night",
		Nickname:   "p0",
		MaxPlayers: n,
	})
	require.NoError(t, err)

	for i := 1; i < n; i++ {
		conns[i] = protocol.NewConn("p"+string(rune('0'+i)), 64)
		_, err := reg.Join(conns[i], rm.ID(), conns[i].ID, "")
		require.NoError(t, err)
	}
	for _, c := range conns {
		drain(c)
	}
	return reg, rm, conns
}

// startGame walks a two-player room through role selection, readiness, start
// request, and scenario commit. conns[1] becomes the Questioner.
func startGame(t *testing.T, reg *Registry, rm *Room, conns []*protocol.Conn, custom *models.Scenario) {
	t.Helper()
	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))
	for _, c := range conns[1:] {
		require.NoError(t, rm.SetReady(c.ID, true))
	}
	require.NoError(t, rm.RequestStart(conns[0].ID))
	require.NoError(t, rm.SubmitScenario(conns[1].ID, custom, func() models.Scenario { return testScenario }))
	for _, c := range conns {
		drain(c)
	}
}

func TestCreateAssignsHostAnswererReady(t *testing.T) {
	reg := newTestRegistry()
	conn := protocol.NewConn("host", 64)
	rm, err := reg.Create(conn, protocol.CreateRoomPayload{Title: "t", Nickname: "Hana"})
	require.NoError(t, err)

	state := rm.Snapshot()
	require.Len(t, state.Players, 1)
	p := state.Players[0]
	assert.True(t, p.IsHost)
	assert.True(t, p.IsReady)
	assert.Equal(t, models.RoleAnswerer, p.Role)
	assert.Equal(t, conn.ID, state.HostID)
	assert.Equal(t, StatusWaiting, state.Status)

	evs := drain(conn)
	assert.True(t, hasType(evs, protocol.EvRoomCreated))
}

func TestJoinBroadcastsAndRespectsCapacity(t *testing.T) {
	reg := newTestRegistry()
	host := protocol.NewConn("host", 64)
	rm, err := reg.Create(host, protocol.CreateRoomPayload{Title: "t", Nickname: "Hana", MaxPlayers: 2})
	require.NoError(t, err)
	drain(host)

	joiner := protocol.NewConn("j1", 64)
	_, err = reg.Join(joiner, rm.ID(), "Bora", "")
	require.NoError(t, err)

	assert.True(t, hasType(drain(joiner), protocol.EvJoinedRoom))
	assert.True(t, hasType(drain(host), protocol.EvPlayerJoined))

	third := protocol.NewConn("j2", 64)
	_, err = reg.Join(third, rm.ID(), "Chul", "")
	require.Error(t, err)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindCapacity, ge.Kind)
}

func TestJoinPasswordCheck(t *testing.T) {
	reg := newTestRegistry()
	host := protocol.NewConn("host", 64)
	rm, err := reg.Create(host, protocol.CreateRoomPayload{Title: "t", Nickname: "Hana", Password: "s3cret"})
	require.NoError(t, err)

	joiner := protocol.NewConn("j1", 64)
	_, err = reg.Join(joiner, rm.ID(), "Bora", "wrong")
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindAuth, ge.Kind)

	_, err = reg.Join(joiner, rm.ID(), "Bora", "s3cret")
	require.NoError(t, err)
}

func TestNicknameValidation(t *testing.T) {
	assert.Error(t, validateNickname(""))
	assert.NoError(t, validateNickname("abcdefghijklmnop"))          // 16 Latin runes
	assert.Error(t, validateNickname("abcdefghijklmnopq"))           // 17 Latin runes
	assert.NoError(t, validateNickname("거북이수프게임참가자")) // 10 wide runes
	assert.Error(t, validateNickname("거북이수프게임참가자명")) // 11 wide runes
}

func TestQuestionerSlotExclusive(t *testing.T) {
	_, rm, conns := setupRoom(t, 3)

	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))

	err := rm.SetRole(conns[2].ID, models.RoleQuestioner)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindConflict, ge.Kind)

	// Re-selecting your own role is allowed.
	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))

	// Vacating the slot frees it for someone else.
	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleAnswerer))
	require.NoError(t, rm.SetRole(conns[2].ID, models.RoleQuestioner))
}

func TestRequestStartGate(t *testing.T) {
	_, rm, conns := setupRoom(t, 3)

	// Not the host.
	err := rm.RequestStart(conns[1].ID)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindForbidden, ge.Kind)

	// No questioner yet.
	err = rm.RequestStart(conns[0].ID)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)

	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))
	require.NoError(t, rm.SetReady(conns[1].ID, true))

	// conns[2] is still not ready.
	err = rm.RequestStart(conns[0].ID)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)

	require.NoError(t, rm.SetReady(conns[2].ID, true))
	for _, c := range conns {
		drain(c)
	}

	require.NoError(t, rm.RequestStart(conns[0].ID))

	// Questioner is privately prompted, everyone else told to wait. Status
	// has not moved yet.
	assert.True(t, hasType(drain(conns[1]), protocol.EvInputScenario))
	assert.True(t, hasType(drain(conns[0]), protocol.EvWaitingScenario))
	assert.True(t, hasType(drain(conns[2]), protocol.EvWaitingScenario))
	state := rm.Snapshot()
	assert.Equal(t, StatusWaiting, state.Status)
	assert.True(t, state.PendingStart)

	// A second start request while pending is rejected.
	err = rm.RequestStart(conns[0].ID)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)
}

func TestHostReadinessAlwaysCounts(t *testing.T) {
	_, rm, conns := setupRoom(t, 2)
	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))
	require.NoError(t, rm.SetReady(conns[1].ID, true))

	// The host flips their own flag off; the gate still passes.
	require.NoError(t, rm.SetReady(conns[0].ID, false))
	require.NoError(t, rm.RequestStart(conns[0].ID))
}

func TestSubmitScenarioCatalogDraw(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	startGame(t, reg, rm, conns, nil)

	state := rm.Snapshot()
	assert.Equal(t, StatusPlaying, state.Status)
	assert.False(t, state.PendingStart)
	require.NotNil(t, state.Scenario)
	assert.Equal(t, testScenario, *state.Scenario)
	assert.Equal(t, 2, state.HintsLeft)
	assert.NotZero(t, state.StartedAt)
}

func TestSubmitScenarioCustomPreservedVerbatim(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	custom := &models.Scenario{
		Title:    "  spaced title\t",
		Content:  "line one\nline two  ",
		Solution: "\tthe solution ",
	}
	startGame(t, reg, rm, conns, custom)

	state := rm.Snapshot()
	require.NotNil(t, state.Scenario)
	assert.Equal(t, *custom, *state.Scenario)
}

func TestSubmitScenarioRejectsIncomplete(t *testing.T) {
	_, rm, conns := setupRoom(t, 2)
	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))
	require.NoError(t, rm.SetReady(conns[1].ID, true))
	require.NoError(t, rm.RequestStart(conns[0].ID))

	err := rm.SubmitScenario(conns[1].ID, &models.Scenario{Title: "t", Content: "c"}, nil)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindValidation, ge.Kind)

	// Room is still pending; a valid commit succeeds afterwards.
	assert.True(t, rm.Snapshot().PendingStart)
	require.NoError(t, rm.SubmitScenario(conns[1].ID, nil, func() models.Scenario { return testScenario }))
}

func TestSubmitScenarioOnlyWhilePending(t *testing.T) {
	_, rm, conns := setupRoom(t, 2)
	err := rm.SubmitScenario(conns[1].ID, nil, func() models.Scenario { return testScenario })
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)
}

func TestChatAndQuestionDelivery(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	startGame(t, reg, rm, conns, nil)

	require.NoError(t, rm.SendChat(conns[0].ID, "was it raining?", models.KindQuestion))

	ev := lastOfType(drain(conns[1]), protocol.EvMessageReceived)
	require.NotNil(t, ev)
	msg := ev.Data.(models.Message)
	assert.Equal(t, models.KindQuestion, msg.Kind)
	assert.Equal(t, "was it raining?", msg.Body)
	assert.Equal(t, conns[0].ID, msg.AuthorID)
	assert.NotZero(t, msg.ID)
}

func TestChatRejectedOutsidePlaying(t *testing.T) {
	_, rm, conns := setupRoom(t, 2)
	err := rm.SendChat(conns[0].ID, "hello", models.KindChat)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)
}

func TestHintBudget(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	startGame(t, reg, rm, conns, nil) // budget 2, questioner is conns[1]

	// Answerers cannot spend hints.
	err := rm.SendChat(conns[0].ID, "hint?", models.KindHint)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindForbidden, ge.Kind)

	require.NoError(t, rm.SendChat(conns[1].ID, "think about height", models.KindHint))
	require.NoError(t, rm.SendChat(conns[1].ID, "think about buttons", models.KindHint))
	assert.Equal(t, 0, rm.Snapshot().HintsLeft)

	err = rm.SendChat(conns[1].ID, "one more", models.KindHint)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)
}

func TestAnswerQuestionVerdicts(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	startGame(t, reg, rm, conns, nil)

	// Only the questioner answers.
	err := rm.AnswerQuestion(conns[0].ID, 1, models.VerdictYes)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindForbidden, ge.Kind)

	// CORRECT is reserved for the single-player arbiter.
	err = rm.AnswerQuestion(conns[1].ID, 1, models.VerdictCorrect)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindValidation, ge.Kind)

	require.NoError(t, rm.SendChat(conns[0].ID, "is he short?", models.KindQuestion))
	qEv := lastOfType(drain(conns[1]), protocol.EvMessageReceived)
	require.NotNil(t, qEv)
	question := qEv.Data.(models.Message)

	require.NoError(t, rm.AnswerQuestion(conns[1].ID, question.ID, models.VerdictCritical))
	aEv := lastOfType(drain(conns[0]), protocol.EvMessageReceived)
	require.NotNil(t, aEv)
	answer := aEv.Data.(models.Message)
	assert.Equal(t, models.KindAnswer, answer.Kind)
	assert.Equal(t, string(models.VerdictCritical), answer.Body)
	assert.Equal(t, question.ID, answer.TargetID)
}

func TestGuessQueueFIFO(t *testing.T) {
	reg, rm, conns := setupRoom(t, 3)
	startGame(t, reg, rm, conns, nil) // questioner conns[1], answerers conns[0] and conns[2]

	require.NoError(t, rm.SubmitGuess(conns[0].ID, "he is a child"))
	require.NoError(t, rm.SubmitGuess(conns[2].ID, "he is too short"))

	// Guesses go privately to the questioner, in order.
	qEvs := drain(conns[1])
	var pending []models.PendingGuess
	for _, ev := range qEvs {
		if ev.Type == protocol.EvGuessSubmitted {
			pending = append(pending, ev.Data.(models.PendingGuess))
		}
	}
	require.Len(t, pending, 2)
	assert.Equal(t, conns[0].ID, pending[0].GuesserID)
	assert.Equal(t, conns[2].ID, pending[1].GuesserID)
	// Other answerers saw nothing.
	assert.False(t, hasType(drain(conns[2]), protocol.EvGuessSubmitted))

	// Judging out of order is rejected.
	err := rm.JudgeGuess(conns[1].ID, conns[2].ID, false)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindConflict, ge.Kind)

	// Front guess wrong: guesser loses one guess, everyone hears about it.
	require.NoError(t, rm.JudgeGuess(conns[1].ID, conns[0].ID, false))
	evs := drain(conns[2])
	assert.True(t, hasType(evs, protocol.EvGuessFailed))
	sys := lastOfType(evs, protocol.EvMessageReceived)
	require.NotNil(t, sys)
	assert.Equal(t, models.KindSystem, sys.Data.(models.Message).Kind)

	state := rm.Snapshot()
	for _, p := range state.Players {
		if p.ConnID == conns[0].ID {
			assert.Equal(t, 2, p.GuessesLeft)
		}
	}

	// Second guess correct: round over, winner recorded.
	require.NoError(t, rm.JudgeGuess(conns[1].ID, conns[2].ID, true))
	state = rm.Snapshot()
	assert.Equal(t, StatusFinished, state.Status)
	assert.Equal(t, "p2", state.Winner)
	assert.True(t, hasType(drain(conns[0]), protocol.EvGameOver))
}

func TestJudgeRequiresQuestionerAndPending(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	startGame(t, reg, rm, conns, nil)

	err := rm.JudgeGuess(conns[1].ID, conns[0].ID, false)
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)

	require.NoError(t, rm.SubmitGuess(conns[0].ID, "ghosts"))
	err = rm.JudgeGuess(conns[0].ID, conns[0].ID, false)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindForbidden, ge.Kind)
}

func TestGuessExhaustion(t *testing.T) {
	reg := NewRegistry(testLogger(), Options{
		HintBudget: 2,
		MaxGuesses: 1,
		Draw:       func() models.Scenario { return testScenario },
	})
	host := protocol.NewConn("p0", 64)
	rm, err := reg.Create(host, protocol.CreateRoomPayload{Title: "t", Nickname: "p0"})
	require.NoError(t, err)
	joiner := protocol.NewConn("p1", 64)
	_, err = reg.Join(joiner, rm.ID(), "p1", "")
	require.NoError(t, err)
	conns := []*protocol.Conn{host, joiner}
	startGame(t, reg, rm, conns, nil)

	require.NoError(t, rm.SubmitGuess(host.ID, "wrong idea"))
	require.NoError(t, rm.JudgeGuess(joiner.ID, host.ID, false))

	err = rm.SubmitGuess(host.ID, "another idea")
	var ge *protocol.GameError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, protocol.KindPrecondition, ge.Kind)
}

func TestHostTransferOnLeave(t *testing.T) {
	reg, rm, conns := setupRoom(t, 3)

	reg.Leave(conns[0].ID)

	state := rm.Snapshot()
	require.Len(t, state.Players, 2)
	assert.Equal(t, conns[1].ID, state.HostID)
	assert.True(t, state.Players[0].IsHost)
	// The new host's readiness is forced so the start gate cannot wedge.
	assert.True(t, state.Players[0].IsReady)
	assert.True(t, hasType(drain(conns[2]), protocol.EvPlayerLeft))
}

func TestQuestionerLeaveClearsPendingStart(t *testing.T) {
	reg, rm, conns := setupRoom(t, 3)
	require.NoError(t, rm.SetRole(conns[1].ID, models.RoleQuestioner))
	require.NoError(t, rm.SetReady(conns[1].ID, true))
	require.NoError(t, rm.SetReady(conns[2].ID, true))
	require.NoError(t, rm.RequestStart(conns[0].ID))
	require.True(t, rm.Snapshot().PendingStart)

	reg.Leave(conns[1].ID)
	assert.False(t, rm.Snapshot().PendingStart)
}

func TestResetReturnsToWaiting(t *testing.T) {
	reg, rm, conns := setupRoom(t, 2)
	startGame(t, reg, rm, conns, nil)
	require.NoError(t, rm.SubmitGuess(conns[0].ID, "too short"))
	require.NoError(t, rm.JudgeGuess(conns[1].ID, conns[0].ID, true))
	require.Equal(t, StatusFinished, rm.Snapshot().Status)
	for _, c := range conns {
		drain(c)
	}

	// Any member may reset, not just the host.
	require.NoError(t, rm.Reset(conns[1].ID))

	state := rm.Snapshot()
	assert.Equal(t, StatusWaiting, state.Status)
	assert.Empty(t, state.Messages)
	assert.Nil(t, state.Scenario)
	assert.Empty(t, state.Winner)
	for _, p := range state.Players {
		assert.Equal(t, p.IsHost, p.IsReady)
	}
	assert.True(t, hasType(drain(conns[0]), protocol.EvRoomReset))

	// Reset outside FINISHED is a silent no-op.
	require.NoError(t, rm.Reset(conns[1].ID))
	assert.Equal(t, StatusWaiting, rm.Snapshot().Status)
}

// TestFullRound drives one complete round end to end: create, join, roles,
// readiness, start, scenario, question/answer, hint, a wrong guess, and a
// winning guess.
func TestFullRound(t *testing.T) {
	reg := newTestRegistry()
	alice := protocol.NewConn("alice", 64)
	rm, err := reg.Create(alice, protocol.CreateRoomPayload{Title: "friday soup", Nickname: "Alice"})
	require.NoError(t, err)
	bob := protocol.NewConn("bob", 64)
	_, err = reg.Join(bob, rm.ID(), "Bob", "")
	require.NoError(t, err)

	require.NoError(t, rm.SetRole(bob.ID, models.RoleQuestioner))
	require.NoError(t, rm.SetReady(bob.ID, true))
	require.NoError(t, rm.RequestStart(alice.ID))
	require.NoError(t, rm.SubmitScenario(bob.ID, nil, func() models.Scenario { return testScenario }))
	drain(alice)
	drain(bob)

	require.NoError(t, rm.SendChat(alice.ID, "is the man unusual somehow?", models.KindQuestion))
	qEv := lastOfType(drain(bob), protocol.EvMessageReceived)
	require.NotNil(t, qEv)
	require.NoError(t, rm.AnswerQuestion(bob.ID, qEv.Data.(models.Message).ID, models.VerdictYes))

	require.NoError(t, rm.SendChat(bob.ID, "think about reach", models.KindHint))
	assert.Equal(t, 1, rm.Snapshot().HintsLeft)

	require.NoError(t, rm.SubmitGuess(alice.ID, "he is blind"))
	require.NoError(t, rm.JudgeGuess(bob.ID, alice.ID, false))

	require.NoError(t, rm.SubmitGuess(alice.ID, "he cannot reach the top button"))
	require.NoError(t, rm.JudgeGuess(bob.ID, alice.ID, true))

	state := rm.Snapshot()
	assert.Equal(t, StatusFinished, state.Status)
	assert.Equal(t, "Alice", state.Winner)
	assert.True(t, hasType(drain(alice), protocol.EvGameOver))
}
