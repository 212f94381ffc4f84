package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/handlers/testutil"
)

type auditRecord struct {
	RegistrantID *string `json:"registrant_id"`
	Actor        string  `json:"actor"`
	Action       string  `json:"action"`
	Result       string  `json:"result"`
	IPAddress    string  `json:"ip_address"`
}

func TestAuditListRecordsRequestActor(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Authenticate(testutil.Asha)
	env.Authenticate(testutil.Vikram)

	w := env.AdminRequest(http.MethodGet, "/api/admin/audit?action=voter.authenticate&per_page=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 2, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.TotalPages)
	require.Equal(t, 1, resp.Meta.PerPage)

	var logs []auditRecord
	testutil.DecodeInto(t, resp.Data, &logs)
	require.Len(t, logs, 1)
	require.Equal(t, "voter", logs[0].Actor)
	require.Equal(t, "voter.authenticate", logs[0].Action)
	require.Equal(t, "198.51.100.7", logs[0].IPAddress)
}

func TestAuditListFiltersByRegistrant(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Authenticate(testutil.Asha)
	env.Authenticate(testutil.Vikram)
	id := env.Registrant(testutil.Vikram).ID

	w := env.AdminRequest(http.MethodGet, "/api/admin/audit?registrant_id="+id, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var logs []auditRecord
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &logs)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].RegistrantID)
	require.Equal(t, id, *logs[0].RegistrantID)
}

func TestAuditListRejectsBadTimestamp(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.AdminRequest(http.MethodGet, "/api/admin/audit?since=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestAuditListRequiresAdminToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/admin/audit", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
}
