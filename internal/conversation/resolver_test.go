// internal/conversation/resolver_test.go
package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-orchestrator/internal/common/database"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/models"
)

func newTestResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(&database.PostgresClient{DB: db}, logger.NewTestLogger(t))
	return NewResolver(store, 21, logger.NewTestLogger(t)), mock
}

func turnRows(turns ...models.ConversationTurn) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "user_id", "role", "content", "metadata", "created_at"})
	// RecentTurns reads newest first; feed rows in reverse.
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		rows.AddRow(turn.ID, turn.ConversationID, turn.UserID, string(turn.Role), turn.Content, []byte("{}"), time.Now())
	}
	return rows
}

func TestResolve_Regeneration(t *testing.T) {
	resolver, mock := newTestResolver(t)

	history := []models.ConversationTurn{
		{ID: "t1", ConversationID: "c1", Role: models.TurnRoleUser, Content: "old question"},
		{ID: "t2", ConversationID: "c1", Role: models.TurnRoleAssistant, Content: "old answer"},
		{ID: "t3", ConversationID: "c1", Role: models.TurnRoleUser, Content: "current question"},
		{ID: "t4", ConversationID: "c1", Role: models.TurnRoleAssistant, Content: "stale answer"},
	}
	mock.ExpectQuery("SELECT id, conversation_id").
		WithArgs("c1", 21).
		WillReturnRows(turnRows(history...))
	mock.ExpectExec("DELETE FROM conversation_turns").
		WithArgs("t4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := resolver.Resolve(context.Background(), "c1", "u1", "current question", 21)
	require.NoError(t, err)

	assert.Equal(t, ActionRegenerate, res.Action)
	assert.Equal(t, "c1", res.ConversationID)
	// The superseded pair is trimmed from the pipeline's view of history.
	require.Len(t, res.History, 2)
	assert.Equal(t, "old answer", res.History[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_RetryAddsNoUserTurn(t *testing.T) {
	resolver, mock := newTestResolver(t)

	history := []models.ConversationTurn{
		{ID: "t1", ConversationID: "c1", Role: models.TurnRoleUser, Content: "unanswered question"},
	}
	mock.ExpectQuery("SELECT id, conversation_id").
		WithArgs("c1", 21).
		WillReturnRows(turnRows(history...))

	res, err := resolver.Resolve(context.Background(), "c1", "u1", "unanswered question", 21)
	require.NoError(t, err)

	assert.Equal(t, ActionRetry, res.Action)
	assert.Empty(t, res.History)
	// No insert and no delete expectations were registered; any write
	// would fail ExpectationsWereMet.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_NewTurn(t *testing.T) {
	resolver, mock := newTestResolver(t)

	history := []models.ConversationTurn{
		{ID: "t1", ConversationID: "c1", Role: models.TurnRoleUser, Content: "old question"},
		{ID: "t2", ConversationID: "c1", Role: models.TurnRoleAssistant, Content: "old answer"},
	}
	mock.ExpectQuery("SELECT id, conversation_id").
		WithArgs("c1", 21).
		WillReturnRows(turnRows(history...))
	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := resolver.Resolve(context.Background(), "c1", "u1", "a new question", 21)
	require.NoError(t, err)

	assert.Equal(t, ActionNew, res.Action)
	assert.Len(t, res.History, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_ForeignKeyRetryPreservesClientID(t *testing.T) {
	resolver, mock := newTestResolver(t)

	mock.ExpectQuery("SELECT id, conversation_id").
		WithArgs("client-id", 21).
		WillReturnRows(turnRows())
	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("client-id", "u1", "first question", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := resolver.Resolve(context.Background(), "client-id", "u1", "first question", 21)
	require.NoError(t, err)

	assert.Equal(t, ActionNew, res.Action)
	assert.Equal(t, "client-id", res.ConversationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_EmptyConversationIDStartsFresh(t *testing.T) {
	resolver, mock := newTestResolver(t)

	mock.ExpectExec("INSERT INTO conversations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := resolver.Resolve(context.Background(), "", "u1", "first question", 21)
	require.NoError(t, err)

	assert.Equal(t, ActionNew, res.Action)
	assert.NotEmpty(t, res.ConversationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAssistantTurn_EmptyContentFallback(t *testing.T) {
	resolver, mock := newTestResolver(t)

	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs(sqlmock.AnyArg(), "c1", "u1", "assistant", "[No Response]", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resolver.SaveAssistantTurn(context.Background(), "c1", "u1", "", map[string]interface{}{"logs": []string{}})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	user := func(content string) models.ConversationTurn {
		return models.ConversationTurn{Role: models.TurnRoleUser, Content: content}
	}
	assistant := func(content string) models.ConversationTurn {
		return models.ConversationTurn{Role: models.TurnRoleAssistant, Content: content}
	}

	tests := []struct {
		name     string
		history  []models.ConversationTurn
		query    string
		expected Action
	}{
		{name: "empty history", history: nil, query: "q", expected: ActionNew},
		{name: "regeneration", history: []models.ConversationTurn{user("q"), assistant("a")}, query: "q", expected: ActionRegenerate},
		{name: "retry", history: []models.ConversationTurn{user("q")}, query: "q", expected: ActionRetry},
		{name: "different query is new", history: []models.ConversationTurn{user("q"), assistant("a")}, query: "other", expected: ActionNew},
		{name: "trailing user with different content is new", history: []models.ConversationTurn{user("other")}, query: "q", expected: ActionNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, _ := classify(tt.history, tt.query)
			assert.Equal(t, tt.expected, action)
		})
	}
}
