package reconciler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/internal/idm/idmtest"
	"github.com/agentstation/relink/internal/transport"
	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

const mapping = "systemAdUsers_managedUser"

// newTenant builds the standard fixture: a run reporting three flagged
// entries served over two pages (2 then 1), each with one matching link.
// A link of another mapping shares s1's endpoint.
func newTenant(t *testing.T) *idmtest.Server {
	t.Helper()
	server := idmtest.New(t)
	server.SetPageSize(2)
	server.AddRecon(idm.ReconciliationRun{ID: "old", Mapping: mapping, Started: "2026-10-01T00:00:00Z",
		SituationSummary: map[string]int{constants.SituationFoundAlreadyLinked: 9}})
	server.AddRecon(idm.ReconciliationRun{ID: "r1", Mapping: mapping, Started: "2026-10-14T06:00:00Z", State: "SUCCESS",
		SituationSummary: map[string]int{constants.SituationFoundAlreadyLinked: 3, "CONFIRMED": 10}})
	for _, id := range []string{"1", "2", "3"} {
		server.AddEntries("r1", idm.ReconEntry{
			SourceObjectID: "s" + id,
			TargetObjectID: "t" + id,
			Situation:      constants.SituationFoundAlreadyLinked,
		})
	}
	server.AddLink(idm.LinkRecord{ID: "l1", FirstID: "s1", SecondID: "t1", LinkType: mapping})
	server.AddLink(idm.LinkRecord{ID: "l2", FirstID: "t2", SecondID: "s2", LinkType: mapping})
	server.AddLink(idm.LinkRecord{ID: "l3", FirstID: "s3", SecondID: "t3", LinkType: mapping})
	server.AddLink(idm.LinkRecord{ID: "lx", FirstID: "s1", SecondID: "z9", LinkType: "otherMapping"})
	return server
}

func newService(server *idmtest.Server, tokens auth.TokenSource) *idm.Service {
	if tokens == nil {
		tokens = auth.StaticTokenSource(idmtest.StaticToken)
	}
	client := transport.New(server.IDMURL(), tokens, transport.WithHTTPClient(server.Client()))
	return idm.NewService(client)
}

func run(t *testing.T, server *idmtest.Server, opts Options) (*Summary, error) {
	t.Helper()
	if opts.Mapping == "" {
		opts.Mapping = mapping
	}
	r, err := New(newService(server, nil), opts)
	require.NoError(t, err)
	return r.Run(context.Background())
}

func deleteRequests(server *idmtest.Server) int {
	n := 0
	for _, r := range server.Requests() {
		if r.Method == "DELETE" {
			n++
		}
	}
	return n
}

func TestRun_DeletesAllFlaggedLinks(t *testing.T) {
	server := newTenant(t)

	summary, err := run(t, server, Options{SampleSize: constants.SampleAll})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, summary.Outcome)
	assert.Equal(t, ModeAll, summary.Mode)
	assert.Equal(t, "r1", summary.ReconID)
	assert.Equal(t, 3, summary.Reported)
	assert.Equal(t, 3, summary.Entries)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Deleted)
	assert.Equal(t, 0, summary.NotFound)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, ActionDeleted, summary.Results[1].Action)
	assert.Equal(t, "l2", summary.Results[1].LinkID)

	remaining := server.Links()
	require.Len(t, remaining, 1)
	assert.Equal(t, "lx", remaining[0].ID, "links of other mappings are never touched")

	var entryPages int
	for _, r := range server.Requests() {
		if r.Path == "/openidm/recon/assoc/r1/entry" {
			entryPages++
		}
	}
	assert.Equal(t, 2, entryPages)
}

func TestRun_EntryWithoutLink(t *testing.T) {
	server := newTenant(t)
	svc := newService(server, nil)
	links, err := svc.ResolveLinks(context.Background(), "s2", "t2", mapping)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteLink(context.Background(), links[0]))

	summary, err := run(t, server, Options{SampleSize: -1})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Deleted)
	assert.Equal(t, 1, summary.NotFound)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, ActionNotFound, summary.Results[1].Action)
	assert.Empty(t, summary.Results[1].LinkID)
}

func TestRun_StaleRevisionIsCountedAndRunContinues(t *testing.T) {
	server := newTenant(t)
	server.RaceDelete("l2")

	summary, err := run(t, server, Options{SampleSize: -1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 2, summary.Deleted)
	assert.Equal(t, 0, summary.NotFound)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Processed)

	assert.Equal(t, ActionFailed, summary.Results[1].Action)
	assert.Contains(t, summary.Results[1].Error, "412")
	assert.Equal(t, ActionDeleted, summary.Results[2].Action)
}

func TestRun_DryRunNeverDeletes(t *testing.T) {
	server := newTenant(t)

	summary, err := run(t, server, Options{SampleSize: constants.SampleDryRun})
	require.NoError(t, err)
	assert.True(t, summary.DryRun())
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.LinksFound)
	assert.Equal(t, 3, summary.WouldDelete)
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, 0, deleteRequests(server))
	assert.Equal(t, 0, server.DeleteCalls())
	assert.Len(t, server.Links(), 4)
}

func TestRun_SampleSize(t *testing.T) {
	for _, tt := range []struct {
		sample, want int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{50, 3},
	} {
		server := newTenant(t)
		summary, err := run(t, server, Options{SampleSize: tt.sample})
		require.NoError(t, err)
		assert.Equal(t, ModeSample, summary.Mode)
		assert.Equal(t, tt.want, summary.Processed, "sample %d", tt.sample)
		assert.Equal(t, tt.want, summary.Deleted)
		assert.Equal(t, 3, summary.Entries)
	}
}

func TestRun_Idempotent(t *testing.T) {
	server := newTenant(t)

	first, err := run(t, server, Options{SampleSize: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Deleted)

	second, err := run(t, server, Options{SampleSize: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 3, second.NotFound)
	assert.Equal(t, 0, second.Failed)
}

func TestRun_NothingToDo(t *testing.T) {
	server := idmtest.New(t)
	server.AddRecon(idm.ReconciliationRun{ID: "r1", Mapping: mapping, Started: "2026-10-14T06:00:00Z",
		SituationSummary: map[string]int{"CONFIRMED": 10}})

	summary, err := run(t, server, Options{SampleSize: -1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, summary.Outcome)
	assert.Len(t, server.Requests(), 1, "no entry pages are requested")
}

func TestRun_NoEntriesDespiteCount(t *testing.T) {
	server := idmtest.New(t)
	server.AddRecon(idm.ReconciliationRun{ID: "r1", Mapping: mapping, Started: "2026-10-14T06:00:00Z",
		SituationSummary: map[string]int{constants.SituationFoundAlreadyLinked: 2}})

	tl := logging.NewTestLogger(t)
	r, err := New(newService(server, nil), Options{Mapping: mapping, SampleSize: -1})
	require.NoError(t, err)
	summary, err := r.Run(logging.WithLogger(context.Background(), tl.Logger))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoEntries, summary.Outcome)
	assert.Equal(t, 2, summary.Reported)
	assert.Equal(t, 0, summary.Entries)
	tl.AssertContains(t, "persistAssociations")
}

func TestRun_CountMismatchIsTolerated(t *testing.T) {
	server := newTenant(t)
	server.AddRecon(idm.ReconciliationRun{ID: "r2", Mapping: mapping, Started: "2026-10-15T06:00:00Z",
		SituationSummary: map[string]int{constants.SituationFoundAlreadyLinked: 5}})
	server.AddEntries("r2",
		idm.ReconEntry{SourceObjectID: "s1", TargetObjectID: "t1", Situation: constants.SituationFoundAlreadyLinked})

	tl := logging.NewTestLogger(t)
	r, err := New(newService(server, nil), Options{Mapping: mapping, SampleSize: -1})
	require.NoError(t, err)
	summary, err := r.Run(logging.WithLogger(context.Background(), tl.Logger))
	require.NoError(t, err)
	assert.Equal(t, "r2", summary.ReconID)
	assert.Equal(t, 5, summary.Reported)
	assert.Equal(t, 1, summary.Entries)
	assert.Equal(t, 1, summary.Deleted)
	tl.AssertContains(t, "Entry count differs")
}

func TestRun_MissingReconIsFatal(t *testing.T) {
	server := newTenant(t)

	_, err := run(t, server, Options{Mapping: "unknownMapping", SampleSize: -1})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRun_RefreshesExpiredTokenMidRun(t *testing.T) {
	server := newTenant(t)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens, err := auth.NewServiceAccountTokenSource(auth.ServiceAccountConfig{
		TokenURL:  server.TokenURL(),
		AccountID: "sa-1",
		Key:       &auth.SigningKey{Private: key},
		HTTP:      server.Client(),
	})
	require.NoError(t, err)

	r, err := New(newService(server, tokens), Options{
		Mapping:    mapping,
		SampleSize: -1,
		OnEntry: func(p Progress) {
			if p.Index == 1 {
				server.ExpireTokens()
			}
		},
	})
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Deleted)
	assert.Equal(t, 2, server.TokenRequests())
}

func TestRun_RejectedCredentialAborts(t *testing.T) {
	server := newTenant(t)

	r, err := New(newService(server, nil), Options{
		Mapping:    mapping,
		SampleSize: -1,
		OnEntry: func(p Progress) {
			if p.Index == 1 {
				server.RejectTokens(true)
			}
		},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
	assert.Len(t, server.Links(), 3, "only the first link was deleted")
}

// deleteRejecter resolves through the real service but fails every delete
// with a credential error.
type deleteRejecter struct {
	*idm.Service
}

func (d deleteRejecter) DeleteLink(context.Context, idm.LinkRecord) error {
	return errors.NewAuthenticationError("token", "jwt-bearer", "token endpoint rejected the assertion", nil)
}

func TestRun_AuthErrorOnDeleteAborts(t *testing.T) {
	server := newTenant(t)
	r, err := New(deleteRejecter{newService(server, nil)}, Options{Mapping: mapping, SampleSize: -1})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	var authErr *errors.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
}

// deleteForbidder resolves through the real service but refuses every delete
// with a 403.
type deleteForbidder struct {
	*idm.Service
}

func (d deleteForbidder) DeleteLink(_ context.Context, link idm.LinkRecord) error {
	return errors.WrapResource("delete", "link", link.ID, errors.NewAPIError("idm", http.StatusForbidden, "Forbidden"))
}

func TestRun_ForbiddenDeleteIsCountedAndRunContinues(t *testing.T) {
	server := newTenant(t)
	r, err := New(deleteForbidder{newService(server, nil)}, Options{Mapping: mapping, SampleSize: -1})
	require.NoError(t, err)

	tl := logging.NewTestLogger(t)
	summary, err := r.Run(logging.WithLogger(context.Background(), tl.Logger))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, 3, summary.Failed)
	for _, result := range summary.Results {
		assert.Equal(t, ActionFailed, result.Action)
		assert.Contains(t, result.Error, "403")
	}
	tl.AssertContains(t, `"link_id":"l1"`)
	tl.AssertContains(t, `"source":"s1"`)
	tl.AssertContains(t, "Failed to delete link")
	tl.AssertContains(t, "status 403")
}

func TestRun_Canceled(t *testing.T) {
	server := newTenant(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []int
	r, err := New(newService(server, nil), Options{
		Mapping:    mapping,
		SampleSize: -1,
		OnEntry: func(p Progress) {
			seen = append(seen, p.Index)
			assert.Equal(t, 3, p.Total)
			cancel()
		},
	})
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, seen)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Options{Mapping: mapping})
	assert.True(t, errors.IsValidationError(err))

	_, err = New(&idm.Service{}, Options{})
	assert.True(t, errors.IsValidationError(err))
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeAll, ModeFor(-1))
	assert.Equal(t, ModeAll, ModeFor(-20))
	assert.Equal(t, ModeDryRun, ModeFor(0))
	assert.Equal(t, ModeSample, ModeFor(7))
}
