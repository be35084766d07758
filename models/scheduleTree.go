package models

import (
	"context"
	"sort"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	NodeTypeLabel = "label"
	NodeTypeData  = "data"
)

type ScheduleTreeNode struct {
	ScheduleId  string              `json:"schedule_id"`
	Code        string              `json:"code"`
	DisplayName string              `json:"display_name"`
	Info        string              `json:"info"`
	NodeType    string              `json:"node_type"`
	Children    []*ScheduleTreeNode `json:"children"`

	refNo string
}

// GetActiveScheduleTree returns the group's effective schedule forest.
// A non-empty search keeps matches plus their ancestors and descendants.
func GetActiveScheduleTree(ctx context.Context, groupId string, search *string) ([]*ScheduleTreeNode, error) {
	ctx, span := otel.Tracer("models").Start(ctx, "GetActiveScheduleTree")
	defer span.End()
	span.SetAttributes(attribute.String("group_id", groupId))

	db := config.GetDB()

	renames := make([]*RenameSchedule, 0)
	if err := db.WithContext(ctx).Where("group_id = ?", groupId).Find(&renames).Error; err != nil {
		return nil, err
	}

	schedules := make([]*Schedule, 0)
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("is_editable = ? OR id IN (?)", false,
			db.Model(&RenameSchedule{}).Select("schedule_id").Where("group_id = ?", groupId)).
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}

	term := ""
	if search != nil {
		term = *search
	}
	roots := BuildScheduleTree(schedules, renameMap(renames), term)
	span.SetAttributes(attribute.Int("schedules", len(schedules)), attribute.Int("roots", len(roots)))
	return roots, nil
}

// BuildScheduleTree builds the forest from active schedules and a
// scheduleId -> display name overlay. Editable schedules without an overlay
// entry are hidden. Schedules on a parent cycle are detached into roots.
func BuildScheduleTree(schedules []*Schedule, renames map[string]string, search string) []*ScheduleTreeNode {
	byId := make(map[string]*Schedule, len(schedules))
	for _, s := range schedules {
		if s == nil || !s.active() {
			continue
		}
		if _, renamed := renames[s.ID]; s.editable() && !renamed {
			continue
		}
		byId[s.ID] = s
	}

	parents := effectiveParents(byId)

	children := make(map[string][]string, len(byId))
	for id, parentId := range parents {
		children[parentId] = append(children[parentId], id)
	}

	displayName := func(s *Schedule) string {
		if name, ok := renames[s.ID]; ok && name != "" {
			return name
		}
		return s.Name
	}

	included := make(map[string]bool, len(byId))
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		for id := range byId {
			included[id] = true
		}
	} else {
		matches := make([]string, 0)
		for id, s := range byId {
			if strings.Contains(strings.ToLower(s.Name), term) ||
				strings.Contains(strings.ToLower(displayName(s)), term) {
				matches = append(matches, id)
			}
		}
		for _, id := range matches {
			included[id] = true
			// parents has no cycles, so the walk terminates
			for p, ok := parents[id]; ok; p, ok = parents[p] {
				included[p] = true
			}
		}
		queue := append([]string(nil), matches...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, child := range children[id] {
				if !included[child] {
					included[child] = true
					queue = append(queue, child)
				}
			}
		}
	}

	nodes := make(map[string]*ScheduleTreeNode, len(included))
	for id := range included {
		s := byId[id]
		name := displayName(s)
		nodes[id] = &ScheduleTreeNode{
			ScheduleId:  s.ID,
			Code:        s.ScheduleCode,
			DisplayName: name,
			Info:        s.ScheduleCode + " - " + name,
			NodeType:    NodeTypeData,
			Children:    make([]*ScheduleTreeNode, 0),
			refNo:       s.RefNo,
		}
	}

	roots := make([]*ScheduleTreeNode, 0)
	for id, node := range nodes {
		parentId, ok := parents[id]
		if !ok || nodes[parentId] == nil {
			roots = append(roots, node)
			continue
		}
		parent := nodes[parentId]
		parent.Children = append(parent.Children, node)
		parent.NodeType = NodeTypeLabel
	}

	sortTreeNodes(roots)
	return roots
}

// effectiveParents maps each schedule to a parent inside the set.
// Parents outside the set are dropped and every schedule lying on a
// parent cycle loses its link.
func effectiveParents(byId map[string]*Schedule) map[string]string {
	const (
		unvisited = iota
		inPath
		done
	)
	parents := make(map[string]string, len(byId))
	for id, s := range byId {
		// a self reference is a cycle of one and is never linked
		if p := s.parentId(); p != "" && p != id && byId[p] != nil {
			parents[id] = p
		}
	}

	state := make(map[string]int, len(byId))
	for start := range byId {
		if state[start] != unvisited {
			continue
		}
		path := make([]string, 0)
		current := start
		for {
			if state[current] == inPath {
				// everything from current onwards in path is a cycle
				for i := len(path) - 1; i >= 0; i-- {
					delete(parents, path[i])
					if path[i] == current {
						break
					}
				}
				break
			}
			if state[current] == done {
				break
			}
			state[current] = inPath
			path = append(path, current)
			next, ok := parents[current]
			if !ok {
				break
			}
			current = next
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return parents
}

// sortTreeNodes orders siblings by ref no (empty last), then schedule code.
func sortTreeNodes(nodes []*ScheduleTreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if (a.refNo == "") != (b.refNo == "") {
			return a.refNo != ""
		}
		if a.refNo != b.refNo {
			return a.refNo < b.refNo
		}
		return a.Code < b.Code
	})
	for _, node := range nodes {
		sortTreeNodes(node.Children)
	}
}
