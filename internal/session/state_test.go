package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/history"
)

func user(text string) history.Message { return history.Message{Sender: history.SenderUser, Text: text} }
func bot(text string) history.Message  { return history.Message{Sender: history.SenderAssistant, Text: text} }

func TestReduceAsk(t *testing.T) {
	const question = "What is the interest rate on a savings account?"

	t.Run("ShouldAutoNameAndPersistFirstAnswer", func(t *testing.T) {
		s, eff := Reduce(Initial(nil), Submit{Text: question})
		assert.Equal(t, question, eff.Ask)
		assert.True(t, s.Pending)

		s, eff = Reduce(s, AnswerReady{Text: "3.0% p.a.", Sources: []string{"Savings_Account"}})
		assert.True(t, eff.Persist)
		assert.Equal(t, "What is the interest rate on a", s.Current)
		assert.Equal(t, []history.Message{user(question), bot("3.0% p.a.")}, s.Messages)
		assert.Equal(t, s.Messages, s.History[s.Current])
		assert.False(t, s.Pending)
	})

	t.Run("ShouldSuffixWhenNameTaken", func(t *testing.T) {
		start := Initial(history.History{"What is the interest rate on a": {user("old")}})
		s, _ := Reduce(start, Submit{Text: question})
		s, _ = Reduce(s, AnswerReady{Text: "3.0%"})
		assert.Equal(t, "What is the interest rate on a_1", s.Current)
		assert.Len(t, s.History, 2)
		assert.Len(t, start.History, 1)
	})

	t.Run("ShouldKeepUserMessageOnFailure", func(t *testing.T) {
		s, _ := Reduce(Initial(nil), Submit{Text: "Hello?"})
		s, eff := Reduce(s, AnswerFailed{Err: errors.New("generate answer: connection refused")})
		assert.False(t, eff.Persist)
		assert.Equal(t, []history.Message{user("Hello?")}, s.Messages)
		assert.Equal(t, NewChatName, s.Current)
		assert.Empty(t, s.History)
		require.Error(t, s.Err)
		assert.Contains(t, s.Status, "connection refused")
	})

	t.Run("ShouldIgnoreBlankSubmit", func(t *testing.T) {
		s, eff := Reduce(Initial(nil), Submit{Text: "  \n"})
		assert.Empty(t, eff.Ask)
		assert.Empty(t, s.Messages)
	})

	t.Run("ShouldAllowOneRequestInFlight", func(t *testing.T) {
		s, _ := Reduce(Initial(nil), Submit{Text: "first"})
		s, eff := Reduce(s, Submit{Text: "second"})
		assert.Empty(t, eff.Ask)
		assert.Len(t, s.Messages, 1)
		s, _ = Reduce(s, NewChat{})
		assert.Len(t, s.Messages, 1)
	})

	t.Run("ShouldAppendToNamedConversation", func(t *testing.T) {
		s, _ := Reduce(Initial(history.History{"Rates": {user("q1"), bot("a1")}}), Open{Name: "Rates"})
		s, _ = Reduce(s, Submit{Text: "q2"})
		s, eff := Reduce(s, AnswerReady{Text: "a2"})
		assert.True(t, eff.Persist)
		assert.Equal(t, "Rates", s.Current)
		assert.Len(t, s.History["Rates"], 4)
	})
}

func TestReduceNewChat(t *testing.T) {
	t.Run("ShouldSaveUnsavedMessages", func(t *testing.T) {
		s, _ := Reduce(Initial(nil), Submit{Text: "Kids account?"})
		s, _ = Reduce(s, AnswerFailed{Err: errors.New("down")})
		s, eff := Reduce(s, NewChat{})
		assert.True(t, eff.Persist)
		assert.Equal(t, NewChatName, s.Current)
		assert.Empty(t, s.Messages)
		assert.Equal(t, []history.Message{user("Kids account?")}, s.History["Kids account?"])
		assert.NoError(t, s.Err)
	})

	t.Run("ShouldNotPersistEmptyChat", func(t *testing.T) {
		_, eff := Reduce(Initial(nil), NewChat{})
		assert.False(t, eff.Persist)
	})

	t.Run("ShouldNotResaveNamedConversation", func(t *testing.T) {
		s, _ := Reduce(Initial(history.History{"Rates": {user("q")}}), Open{Name: "Rates"})
		s, eff := Reduce(s, NewChat{})
		assert.False(t, eff.Persist)
		assert.Len(t, s.History, 1)
	})
}

func TestReduceManage(t *testing.T) {
	base := func() State {
		s, _ := Reduce(Initial(history.History{
			"Rates": {user("q"), bot("a")},
			"Kids":  {user("k")},
		}), Open{Name: "Rates"})
		return s
	}

	t.Run("ShouldMoveCurrentOnRename", func(t *testing.T) {
		s, _ := Reduce(base(), BeginRename{Name: "Rates"})
		assert.Equal(t, "Rates", s.RenameTarget)
		s, eff := Reduce(s, CommitRename{New: " FD Rates "})
		assert.True(t, eff.Persist)
		assert.Equal(t, "FD Rates", s.Current)
		assert.Empty(t, s.RenameTarget)
		assert.Equal(t, []string{"FD Rates", "Kids"}, s.History.Names())
	})

	t.Run("ShouldIgnoreRenameToSelf", func(t *testing.T) {
		s, _ := Reduce(base(), BeginRename{Name: "Rates"})
		s, eff := Reduce(s, CommitRename{New: "Rates"})
		assert.False(t, eff.Persist)
		assert.Equal(t, "Rates", s.Current)
		assert.Empty(t, s.RenameTarget)
	})

	t.Run("ShouldKeepCurrentWhenRenamingOther", func(t *testing.T) {
		s, _ := Reduce(base(), BeginRename{Name: "Kids"})
		s, _ = Reduce(s, CommitRename{New: "Children"})
		assert.Equal(t, "Rates", s.Current)
		assert.True(t, s.History.Has("Children"))
	})

	t.Run("ShouldCancelRename", func(t *testing.T) {
		s, _ := Reduce(base(), BeginRename{Name: "Kids"})
		s, eff := Reduce(s, CancelRename{})
		assert.Empty(t, s.RenameTarget)
		assert.False(t, eff.Persist)
	})

	t.Run("ShouldResetWhenDeletingActive", func(t *testing.T) {
		s, eff := Reduce(base(), Delete{Name: "Rates"})
		assert.True(t, eff.Persist)
		assert.Equal(t, NewChatName, s.Current)
		assert.Empty(t, s.Messages)
		assert.Equal(t, []string{"Kids"}, s.History.Names())
	})

	t.Run("ShouldKeepActiveWhenDeletingOther", func(t *testing.T) {
		s, _ := Reduce(base(), Delete{Name: "Kids"})
		assert.Equal(t, "Rates", s.Current)
		assert.Len(t, s.Messages, 2)
	})

	t.Run("ShouldToggleMenu", func(t *testing.T) {
		s, _ := Reduce(base(), ToggleMenu{Name: "Kids"})
		assert.Equal(t, "Kids", s.MenuOpen)
		s, _ = Reduce(s, ToggleMenu{Name: "Kids"})
		assert.Empty(t, s.MenuOpen)
	})

	t.Run("ShouldReportUnknownConversation", func(t *testing.T) {
		s, _ := Reduce(base(), Open{Name: "Nope"})
		assert.Equal(t, "Rates", s.Current)
		assert.Contains(t, s.Status, "Nope")
	})
}

func TestReduceBuild(t *testing.T) {
	t.Run("ShouldRefuseSubmitWhileBuilding", func(t *testing.T) {
		s, eff := Reduce(Initial(nil), BuildStarted{})
		assert.True(t, eff.Build)
		assert.True(t, s.Building)

		s, eff = Reduce(s, Submit{Text: "Rates?"})
		assert.Empty(t, eff.Ask)
		assert.Empty(t, s.Messages)
		assert.False(t, s.Pending)
		assert.Contains(t, s.Status, "build")

		s, _ = Reduce(s, BuildDone{})
		assert.False(t, s.Building)
		_, eff = Reduce(s, Submit{Text: "Rates?"})
		assert.Equal(t, "Rates?", eff.Ask)
	})

	t.Run("ShouldRefuseBuildWhileAsking", func(t *testing.T) {
		s, _ := Reduce(Initial(nil), Submit{Text: "Rates?"})
		s, eff := Reduce(s, BuildStarted{})
		assert.False(t, eff.Build)
		assert.False(t, s.Building)
		assert.True(t, s.Pending)
	})

	t.Run("ShouldRefuseSecondBuild", func(t *testing.T) {
		s, _ := Reduce(Initial(nil), BuildStarted{})
		_, eff := Reduce(s, BuildStarted{})
		assert.False(t, eff.Build)
	})

	t.Run("ShouldReportBuildFailure", func(t *testing.T) {
		s, _ := Reduce(Initial(nil), BuildStarted{})
		s, _ = Reduce(s, BuildDone{Err: errors.New("missing dir")})
		assert.False(t, s.Building)
		require.Error(t, s.Err)
		assert.Contains(t, s.Status, "missing dir")
	})

	t.Run("ShouldIgnoreStrayBuildDone", func(t *testing.T) {
		s, eff := Reduce(Initial(nil), BuildDone{Err: errors.New("late")})
		assert.False(t, eff.Persist)
		assert.NoError(t, s.Err)
	})
}

func TestReduceSubmitKeepsText(t *testing.T) {
	s, eff := Reduce(Initial(nil), Submit{Text: "  Rates?  "})
	assert.Equal(t, "  Rates?  ", eff.Ask)
	assert.Equal(t, []history.Message{user("  Rates?  ")}, s.Messages)
}
