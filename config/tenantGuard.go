package config

import (
	"context"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	groupColumn       = "group_id"
	acrossGroupsKey   = "tenant_guard:across_groups"
	tenantGuardPrefix = "tenant_guard:"
)

// TenantGuardPlugin scopes statements on group-owned tables (rename_schedules,
// histories) to the request's group. Canonical catalogs (schedules, states,
// cities, tax rates, account types) carry no group_id and pass through.
//
// Raw SQL is not scoped. Admins, the skip flag and group-less contexts
// (tools, background work) bypass the guard.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
		readOnly bool
	}{
		{"query", cb.Query().Before("gorm:query").Register, true},
		{"row", cb.Row().Before("gorm:row").Register, true},
		{"update", cb.Update().Before("gorm:update").Register, false},
		{"delete", cb.Delete().Before("gorm:delete").Register, false},
	}
	for _, s := range steps {
		if err := s.register(tenantGuardPrefix+s.name, scopeToGroup(s.readOnly)); err != nil {
			return err
		}
	}
	return nil
}

// AcrossGroups lets one read see every group's rows, e.g. counting renames
// that block deleting a canonical schedule. Updates and deletes ignore it.
func AcrossGroups(tx *gorm.DB) *gorm.DB {
	return tx.Set(acrossGroupsKey, true)
}

func scopeToGroup(readOnly bool) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db == nil || db.Statement == nil || db.Statement.Context == nil {
			return
		}
		if readOnly {
			if v, ok := db.Get(acrossGroupsKey); ok && v == true {
				return
			}
		}
		groupId, scoped := tenantScope(db.Statement.Context)
		if !scoped {
			return
		}
		if db.Statement.Schema == nil || db.Statement.Schema.LookUpField(groupColumn) == nil {
			return
		}
		// an explicit group filter wins
		if whereHasGroupID(db.Statement.Clauses["WHERE"]) {
			return
		}
		db.Statement.AddClause(clause.Where{
			Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: groupColumn}, Value: groupId},
			},
		})
	}
}

// tenantScope returns the group a statement is limited to, if any.
func tenantScope(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); ok && v {
		return "", false
	}
	if v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool); ok && v {
		return "", false
	}
	groupId, _ := ctx.Value(appctx.ContextKeyGroupId).(string)
	return groupId, groupId != ""
}

func whereHasGroupID(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasGroupID(e) {
			return true
		}
	}
	return false
}

func exprHasGroupID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsGroupID(v.Column)
	case clause.Neq:
		return colIsGroupID(v.Column)
	case clause.IN:
		return colIsGroupID(v.Column)
	case clause.AndConditions:
		return anyHasGroupID(v.Exprs)
	case clause.OrConditions:
		return anyHasGroupID(v.Exprs)
	case clause.Expr:
		// Where("group_id = ?", ...) and friends
		return strings.Contains(strings.ToLower(v.SQL), groupColumn)
	default:
		return false
	}
}

func anyHasGroupID(exprs []clause.Expression) bool {
	for _, x := range exprs {
		if exprHasGroupID(x) {
			return true
		}
	}
	return false
}

func colIsGroupID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, groupColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, groupColumn)
	default:
		return false
	}
}
