package message_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawmart/clawmart/internal/agent"
	agentrepo "github.com/clawmart/clawmart/internal/agent/repositoryimpl"
	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/message"
	"github.com/clawmart/clawmart/internal/message/repositoryimpl"
	"github.com/clawmart/clawmart/internal/template"
	templaterepo "github.com/clawmart/clawmart/internal/template/repositoryimpl"
	"github.com/clawmart/clawmart/internal/user"
	userrepo "github.com/clawmart/clawmart/internal/user/repositoryimpl"
	"github.com/clawmart/clawmart/internal/workforce"
	workforcerepo "github.com/clawmart/clawmart/internal/workforce/repositoryimpl"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/storage"
)

type env struct {
	messages *message.Server
	agents   *agent.Server
	w1, w2   *workforce.Summary
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	users := user.NewServer(userrepo.NewYAMLRepository(st), eventbus.Discard{})
	_, _, err := users.Ensure(ctx, user.EnsureInput{ExternalID: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = users.UpdatePlan(ctx, "A", user.PlanPro, "")
	require.NoError(t, err)

	agents := agentrepo.NewYAMLRepository(st)
	msgs := repositoryimpl.NewYAMLRepository(st)
	wfRepo := workforcerepo.NewYAMLRepository(st)
	graph, err := workforce.NewOwnershipGraph(wfRepo, agents, msgs)
	require.NoError(t, err)
	templates := template.NewServer(templaterepo.NewYAMLRepository(st))
	wf := workforce.NewServer(wfRepo, agents, msgs, templates, users, graph, eventbus.Discard{})
	as := agent.NewServer(agents, wf, graph)

	e := &env{messages: message.NewServer(msgs, as, wf), agents: as}
	e.w1, err = wf.Create(ctx, "A", workforce.CreateInput{Name: "one"})
	require.NoError(t, err)
	e.w2, err = wf.Create(ctx, "A", workforce.CreateInput{Name: "two"})
	require.NoError(t, err)
	return e
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	a1, err := e.agents.Create(ctx, "A", e.w1.ID, agent.CreateInput{Name: "one", Role: "r"})
	require.NoError(t, err)
	a2, err := e.agents.Create(ctx, "A", e.w2.ID, agent.CreateInput{Name: "two", Role: "r"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   message.SendInput
	}{
		{name: "bad role", in: message.SendInput{AgentID: a1.ID, Role: "robot", Content: "hi"}},
		{name: "empty content", in: message.SendInput{AgentID: a1.ID, Role: message.RoleUser, Content: "  "}},
		{name: "agent of another workforce", in: message.SendInput{AgentID: a2.ID, Role: message.RoleUser, Content: "hi"}},
		{name: "unknown agent", in: message.SendInput{AgentID: "nope", Role: message.RoleUser, Content: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.messages.Send(ctx, "A", e.w1.ID, tt.in)
			require.Error(t, err)
			assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), err.Error())
		})
	}

	list, err := e.messages.List(ctx, "A", e.w1.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	a, err := e.agents.Create(ctx, "A", e.w1.ID, agent.CreateInput{Name: "one", Role: "r"})
	require.NoError(t, err)

	var sent []*message.Message
	for _, role := range []message.Role{message.RoleSystem, message.RoleUser, message.RoleAgent, message.RoleUser} {
		m, err := e.messages.Send(ctx, "A", e.w1.ID, message.SendInput{AgentID: a.ID, Role: role, Content: string(role)})
		require.NoError(t, err)
		sent = append(sent, m)
	}

	all, err := e.messages.List(ctx, "A", e.w1.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := range all {
		assert.Equal(t, sent[len(sent)-1-i].ID, all[i].ID)
	}

	two, err := e.messages.List(ctx, "A", e.w1.ID, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, sent[3].ID, two[0].ID)

	other, err := e.messages.List(ctx, "A", e.w2.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, other)

	got, err := e.agents.Lookup(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessagesProcessed, "only agent-authored messages count")
}
