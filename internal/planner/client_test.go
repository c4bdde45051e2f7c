package planner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kastheco/opsdash/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *planner.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return planner.NewClient(srv.URL, "test-token", 0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListGroups_PassesSkipTokenVerbatim(t *testing.T) {
	var gotToken string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/planner/groups", r.URL.Path)
		gotToken = r.URL.Query().Get("skipToken")
		writeJSON(w, http.StatusOK, map[string]any{
			"groups":          []map[string]string{{"id": "g3", "displayName": "Gamma"}},
			"source":          "all",
			"hasAzureMapping": false,
		})
	})

	page, err := c.ListGroups(context.Background(), "a+b/c=&d")
	require.NoError(t, err)
	assert.Equal(t, "a+b/c=&d", gotToken)
	assert.Equal(t, planner.SourceAll, page.Source)
	assert.False(t, page.HasAzureMapping)
	assert.Empty(t, page.NextLink)
	require.Len(t, page.Groups, 1)
	assert.Equal(t, "Gamma", page.Groups[0].DisplayName)
}

func TestListGroups_FirstPageHasNoQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]any{"groups": []any{}, "nextLink": "T1"})
	})

	page, err := c.ListGroups(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "T1", page.NextLink)
	assert.Equal(t, planner.SourceUser, page.Source, "missing source defaults to user scope")
}

func TestClient_SendsAuthAndRequestID(t *testing.T) {
	var auth, reqID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		reqID = r.Header.Get("X-Request-Id")
		writeJSON(w, http.StatusOK, []planner.Plan{})
	})

	_, err := c.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", auth)
	assert.Len(t, reqID, 36)
}

func TestCreateChannel_PostsBody(t *testing.T) {
	var body planner.CreateChannelRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/planner/teams/t1/channels", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, planner.Channel{ID: "c1", DisplayName: body.DisplayName})
	})

	ch, err := c.CreateChannel(context.Background(), "t1", planner.CreateChannelRequest{
		DisplayName:    "Delivery",
		MembershipType: planner.MembershipStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", ch.ID)
	assert.Equal(t, "standard", body.MembershipType)
}

func TestCreatePlan_DefaultsOwner(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/planner/groups/g1/plans", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"id": "p1", "title": "Launch"})
	})

	p, err := c.CreatePlan(context.Background(), "g1", planner.CreatePlanRequest{Title: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, "g1", p.Owner)
}

func TestCreateTab_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/planner/teams/t1/channels/c1/tabs", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.CreateTab(context.Background(), "t1", "c1", planner.CreateTabRequest{PlanID: "p1", PlanTitle: "Launch"})
	assert.NoError(t, err)
}

func TestLinkProject_ForcesBidirectional(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/planner-connection", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, planner.Connection{PlanID: "p1", PlanTitle: "Launch", SyncDirection: "bidirectional", SyncEnabled: true})
	})

	conn, err := c.LinkProject(context.Background(), "42", planner.LinkRequest{PlanID: "p1", PlanTitle: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, "bidirectional", body["syncDirection"])
	_, hasGroup := body["groupId"]
	assert.False(t, hasGroup, "empty optional ids are omitted")
	assert.True(t, conn.SyncEnabled)
}

func TestSetConnectionFlags_OnlySendsSetFlag(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, planner.Connection{SyncEnabled: false})
	})

	off := false
	_, err := c.SetConnectionFlags(context.Background(), "42", planner.ConnectionFlags{SyncEnabled: &off})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"syncEnabled": false}, body)
}

func TestTriggerSync_MissingCountersAreZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/planner-sync", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]int{"created": 2})
	})

	res, err := c.TriggerSync(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, planner.SyncResult{Created: 2}, res)
}

func TestUnlink(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/projects/42/planner-connection", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Unlink(context.Background(), "42"))
	assert.Equal(t, 1, calls)
}

func TestClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   map[string]any
		kind   planner.Kind
		hint   string
	}{
		{"server error", http.StatusBadGateway, map[string]any{"message": "upstream down"}, planner.KindTransport, ""},
		{"forbidden", http.StatusForbidden, map[string]any{"message": "grant Group.ReadWrite.All"}, planner.KindPermission, "grant Group.ReadWrite.All"},
		{"explicit hint", http.StatusBadRequest, map[string]any{"permissionIssue": true, "hint": "ask an admin"}, planner.KindPermission, "ask an admin"},
		{"not configured", http.StatusServiceUnavailable, map[string]any{"configured": false}, planner.KindConfiguration, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			_, err := c.CreateTeam(context.Background(), planner.CreateTeamRequest{DisplayName: "Acme"})
			require.Error(t, err)
			assert.Equal(t, tc.kind, planner.Classify(err))
			assert.Equal(t, tc.hint, planner.Hint(err))

			var ie *planner.IntegrationError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, "create team", ie.Op)
			assert.Contains(t, ie.Payload, `"displayName":"Acme"`)
			assert.NotEmpty(t, ie.RequestID)
		})
	}
}

func TestStatus_NeverFails(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, planner.IntegrationStatus{Configured: true, Connected: true})
		})
		st := c.Status(context.Background())
		assert.True(t, st.Usable())
	})

	t.Run("unreachable", func(t *testing.T) {
		c := planner.NewClient("http://127.0.0.1:1", "", 0)
		st := c.Status(context.Background())
		assert.False(t, st.Configured)
		assert.False(t, st.Connected)
		assert.NotEmpty(t, st.Error)
	})

	t.Run("forbidden", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "consent required"})
		})
		st := c.Status(context.Background())
		assert.True(t, st.PermissionIssue)
		assert.Equal(t, "consent required", st.Message)
		assert.False(t, st.Usable())
	})
}
