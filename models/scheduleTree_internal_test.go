package models

import (
	"testing"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sched(id, code, name, parent string, editable bool) *Schedule {
	s := &Schedule{
		ID:           id,
		ScheduleCode: code,
		Name:         name,
		IsActive:     utils.NewTrue(),
		IsEditable:   &editable,
	}
	if parent != "" {
		s.ParentScheduleId = &parent
	}
	return s
}

func codes(nodes []*ScheduleTreeNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Code)
		out = append(out, codes(n.Children)...)
	}
	return out
}

func TestBuildScheduleTree_CycleMembersBecomeRoots(t *testing.T) {
	schedules := []*Schedule{
		sched("a", "A", "A", "b", false),
		sched("b", "B", "B", "a", false),
		sched("c", "C", "C", "a", false),
		sched("s", "S", "Self", "s", false),
	}

	roots := BuildScheduleTree(schedules, nil, "")
	assert.Equal(t, []string{"A", "C", "B", "S"}, codes(roots))
	require.Len(t, roots, 3)
	assert.Equal(t, NodeTypeLabel, roots[0].NodeType)

	// search walks terminate on the same data
	roots = BuildScheduleTree(schedules, nil, "c")
	assert.Equal(t, []string{"A", "C"}, codes(roots))
}

func TestBuildScheduleTree_HidesUnrenamedEditableAndInactive(t *testing.T) {
	inactive := sched("i", "I", "Inactive", "", false)
	inactive.IsActive = utils.NewFalse()
	schedules := []*Schedule{
		sched("r", "R", "Root", "", false),
		sched("e", "E", "Editable", "r", true),
		sched("f", "F", "Renamed", "r", true),
		inactive,
	}

	roots := BuildScheduleTree(schedules, map[string]string{"f": "Mine"}, "")
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "Mine", roots[0].Children[0].DisplayName)
	assert.Equal(t, "F - Mine", roots[0].Children[0].Info)
}

func TestBuildScheduleTree_ChildOfHiddenParentIsRoot(t *testing.T) {
	schedules := []*Schedule{
		sched("p", "P", "Hidden", "", true),
		sched("c", "C", "Child", "p", false),
	}
	roots := BuildScheduleTree(schedules, nil, "")
	assert.Equal(t, []string{"C"}, codes(roots))
}

func TestResolveParentLinks(t *testing.T) {
	root := &Schedule{ID: "r", Code: 1, ScheduleCode: "1"}
	mid := &Schedule{ID: "m", Code: 2, ScheduleCode: "1.2", UnderCode: "1.2"}
	leaf := &Schedule{ID: "l", Code: 3, ScheduleCode: "1.2.3", UnderCode: "1.2.3"}
	byInt := &Schedule{ID: "i", Code: 4, ScheduleCode: "X", UnderCode: "7"}
	mapped := &Schedule{ID: "q", Code: 7, ScheduleCode: "Q"}
	lost := &Schedule{ID: "o", Code: 5, ScheduleCode: "Y", UnderCode: "ZZ.1"}
	zero := &Schedule{ID: "z", Code: 6, ScheduleCode: "Z", UnderCode: "0"}

	res := ResolveParentLinks([]*Schedule{root, mid, leaf, byInt, mapped, lost, zero}, map[int]string{7: "q"})

	assert.Equal(t, "r", utils.DereferencePtr(mid.ParentScheduleId))
	assert.Equal(t, "m", utils.DereferencePtr(leaf.ParentScheduleId))
	assert.Equal(t, "q", utils.DereferencePtr(byInt.ParentScheduleId))
	assert.Nil(t, lost.ParentScheduleId)
	assert.Nil(t, zero.ParentScheduleId)
	assert.Len(t, res.Changed, 3)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "o", res.Unresolved[0].ID)

	// already linked rows are not reported again
	res = ResolveParentLinks([]*Schedule{root, mid, leaf}, nil)
	assert.Empty(t, res.Changed)
}

func TestResolveParentLinks_IntegerFallsBackToOrdinal(t *testing.T) {
	parent := &Schedule{ID: "p", Code: 12, ScheduleCode: "P"}
	child := &Schedule{ID: "c", Code: 13, ScheduleCode: "C", UnderCode: "12"}

	ResolveParentLinks([]*Schedule{parent, child}, map[int]string{})
	assert.Equal(t, "p", utils.DereferencePtr(child.ParentScheduleId))
}

func TestParentCodeOf(t *testing.T) {
	assert.Equal(t, "1.2", parentCodeOf("1.2.3"))
	assert.Equal(t, "1", parentCodeOf("1.2"))
	assert.Equal(t, "ABC", parentCodeOf(" ABC "))
	assert.True(t, isRootUnderCode(""))
	assert.True(t, isRootUnderCode("0"))
	assert.False(t, isRootUnderCode("00"))
}

func TestParseImportRow(t *testing.T) {
	parsed, err := parseImportRow([]string{"5", "A.1", "R1", "Name", "T", "A", "BS", "Bank", "1", "0"})
	require.NoError(t, err)
	assert.Equal(t, 5, parsed.input.Code)
	assert.Equal(t, "A.1", parsed.input.ScheduleCode)
	assert.Equal(t, "Bank", parsed.accountTypeRef)
	assert.True(t, *parsed.input.IsActive)
	assert.False(t, *parsed.input.IsEditable)

	_, err = parseImportRow([]string{"5", "A.1", "R1", "Name"})
	assert.Error(t, err, "missing flags are not 0/1")
}

func TestValidateRenameUpsert(t *testing.T) {
	editableParent := sched("p", "P", "Parent", "", true)
	fixedParent := sched("f", "F", "Fixed", "", false)
	child := sched("c", "C", "Child", "p", true)
	fixed := sched("x", "X", "Fixed child", "p", false)

	cases := []struct {
		name   string
		target renameTarget
		code   string
	}{
		{"missing", renameTarget{}, utils.ErrCodeScheduleNotFound},
		{"not editable", renameTarget{schedule: fixed, parent: editableParent}, utils.ErrCodeScheduleNotEditable},
		{"parent not renamed", renameTarget{schedule: child, parent: editableParent}, utils.ErrCodeParentNotRenamed},
		{"sibling clash", renameTarget{schedule: child, parent: editableParent, parentRenamed: true, siblingNames: []string{"NEW"}}, utils.ErrCodeDuplicateSiblingName},
		{"fixed parent", renameTarget{schedule: child, parent: fixedParent}, ""},
		{"root", renameTarget{schedule: child}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRenameUpsert("c", tc.target, "new")
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, utils.IsErrorCode(err, tc.code), "got %v", err)
		})
	}
}

func TestValidateRenameDelete(t *testing.T) {
	parent := sched("p", "P", "Parent", "", true)
	assert.NoError(t, validateRenameDelete(parent, nil))

	err := validateRenameDelete(parent, []*Schedule{sched("c", "C1", "One", "p", true), sched("d", "C2", "Two", "p", true)})
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeHasRenamedChildren))
	assert.Contains(t, err.Error(), "C1 - One, C2 - Two")
}
