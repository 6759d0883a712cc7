package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeUserAdminStore struct {
	users       []models.User
	roleChanges map[string]models.Role
	deleted     []string
}

func (f *fakeUserAdminStore) List(context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeUserAdminStore) UpdateRole(_ context.Context, id string, role models.Role) error {
	if f.roleChanges == nil {
		f.roleChanges = map[string]models.Role{}
	}
	f.roleChanges[id] = role
	return nil
}

func (f *fakeUserAdminStore) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func teamleadUser() models.User {
	return models.User{ID: "lead-1", Name: "Lena Lead", Role: models.RoleTeamlead}
}

func TestAdminUserList_RoleGate(t *testing.T) {
	store := &fakeUserAdminStore{users: []models.User{{ID: "u1"}}}
	h := NewUserAdminHandler(store, testLogger())

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/admin/users", nil), teamleadUser())
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newTestContext(jsonRequest(http.MethodGet, "/api/admin/users", nil), agentUser())
	err := h.List(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestAdminUpdateRole(t *testing.T) {
	store := &fakeUserAdminStore{}
	h := NewUserAdminHandler(store, testLogger())

	body := models.UpdateUserRoleRequest{Role: "Teamlead"}
	c, rec := newTestContext(jsonRequest(http.MethodPatch, "/api/admin/users/u2", body), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("u2")

	require.NoError(t, h.UpdateRole(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleTeamlead, store.roleChanges["u2"])
}

func TestAdminUpdateRole_SelfChangeForbidden(t *testing.T) {
	store := &fakeUserAdminStore{}
	h := NewUserAdminHandler(store, testLogger())

	body := models.UpdateUserRoleRequest{Role: "Agent"}
	c, _ := newTestContext(jsonRequest(http.MethodPatch, "/api/admin/users/admin-1", body), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("admin-1")

	err := h.UpdateRole(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, store.roleChanges)
}

func TestAdminUpdateRole_TeamleadForbidden(t *testing.T) {
	store := &fakeUserAdminStore{}
	h := NewUserAdminHandler(store, testLogger())

	body := models.UpdateUserRoleRequest{Role: "Admin"}
	c, _ := newTestContext(jsonRequest(http.MethodPatch, "/api/admin/users/u2", body), teamleadUser())
	c.SetParamNames("id")
	c.SetParamValues("u2")

	err := h.UpdateRole(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestAdminDeleteUser(t *testing.T) {
	store := &fakeUserAdminStore{}
	h := NewUserAdminHandler(store, testLogger())

	c, rec := newTestContext(jsonRequest(http.MethodDelete, "/api/admin/users/u2", nil), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("u2")

	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u2"}, store.deleted)
}

func TestAdminDeleteUser_SelfForbidden(t *testing.T) {
	store := &fakeUserAdminStore{}
	h := NewUserAdminHandler(store, testLogger())

	c, _ := newTestContext(jsonRequest(http.MethodDelete, "/api/admin/users/admin-1", nil), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("admin-1")

	err := h.Delete(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, store.deleted)
}
